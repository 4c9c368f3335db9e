package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

func newTestEngine(t *testing.T, baseURL string) *Engine {
	t.Helper()
	acc := engine.NewAccount("test", ProviderID, "sk-test")
	acc.BaseURL = baseURL
	e, err := New(acc)
	require.NoError(t, err)
	return e.(*Engine)
}

func pngAttachment(t *testing.T, st storage.Storage, name string) *attachment.Attachment {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	require.NoError(t, storage.WriteFile(context.Background(), st, name, buf.Bytes()))
	a, err := attachment.ResolveIn(context.Background(), st, name)
	require.NoError(t, err)
	return a
}

func newBlock(t *testing.T, provider string, text string, stream bool, atts ...*attachment.Attachment) *conversation.MessageBlock {
	t.Helper()
	req, err := conversation.NewMessage(conversation.RoleUser, text, conversation.WithAttachments(atts...))
	require.NoError(t, err)
	model, err := engine.NewAIModelInfo(provider, "gpt-4o")
	require.NoError(t, err)
	b, err := conversation.NewMessageBlock(req, model, conversation.WithStream(stream), conversation.WithTemperature(0.5))
	require.NoError(t, err)
	return b
}

func TestEngineMetadata(t *testing.T) {
	e := newTestEngine(t, "")
	assert.Equal(t, ProviderID, e.ProviderID())
	assert.True(t, e.Capabilities().Has(engine.CapabilityText|engine.CapabilityImage|engine.CapabilitySTT|engine.CapabilityTTS))
	assert.False(t, e.Capabilities().Has(engine.CapabilityDocument))
	assert.NotContains(t, e.SupportedAttachmentFormats(), "application/pdf")

	m, err := e.GetModel(context.Background(), "gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Vision)

	_, err = NewWithConfig(engine.NewAccount("x", "anthropic", "k"), Config{ProviderID: ProviderID, Catalog: staticCatalog(openAIModels)})
	assert.Error(t, err)
}

func TestConvertMessage(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "")
	st := storage.NewMemory("t")
	img := pngAttachment(t, st, "pic.png")
	remote := attachment.NewURL("https://example.com/cat.jpg")

	msg, err := e.ConvertMessage(ctx, newBlock(t, ProviderID, "describe", false, img, remote).Request)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "user", got["role"])

	parts := got["content"].([]interface{})
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
	assert.Equal(t, "describe", parts[0].(map[string]interface{})["text"])

	local := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(local["url"].(string), "data:image/png;base64,"))
	url := parts[2].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "https://example.com/cat.jpg", url["url"])
}

func TestConvertMessageRejectsDocuments(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "")
	st := storage.NewMemory("t")
	require.NoError(t, storage.WriteFile(ctx, st, "doc.pdf", []byte("%PDF-1.4\n%%EOF\n")))
	doc, err := attachment.ResolveIn(ctx, st, "doc.pdf")
	require.NoError(t, err)

	_, err = e.ConvertMessage(ctx, newBlock(t, ProviderID, "read", false, doc).Request)
	require.Error(t, err)
	assert.True(t, errors.Is(err, attachment.ErrCapability))
}

func TestGetMessagesWithSystem(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "")
	conv := conversation.New()
	prev := newBlock(t, ProviderID, "hi", false)
	resp, err := conversation.NewMessage(conversation.RoleAssistant, "hello")
	require.NoError(t, err)
	prev.Response = resp
	system := conversation.NewSystemMessage("be brief")
	require.NoError(t, conv.AddBlock(prev, system))

	msgs, err := e.GetMessages(ctx, newBlock(t, ProviderID, "again", false), conv, system)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "hello", msgs[2].Content)
	assert.Equal(t, "again", msgs[3].MultiContent[0].Text)
}

func TestCompletionWithoutStream(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"It is a cat."},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	block := newBlock(t, ProviderID, "what is it?", false)
	out, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: block}, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.Equal(t, "It is a cat.", out.Response.Content)
	assert.Equal(t, conversation.RoleAssistant, out.Response.Role)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.5, body["temperature"], 1e-6)
	assert.Len(t, body["messages"], 1)
}

func TestCompletionWithStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"It ", "", "is ", "a cat."} {
			_, _ = fmt.Fprintf(w,
				"data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n",
				chunk)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	block := newBlock(t, ProviderID, "what is it?", true)
	var fragments []string
	out, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: block}, func(f engine.Fragment) error {
		fragments = append(fragments, f.Text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"It ", "is ", "a cat."}, fragments)
	assert.Equal(t, "It is a cat.", out.Response.Content)
}

func TestCompletionProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	_, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: newBlock(t, ProviderID, "hi", false)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenRouterModels(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"id":"openai/gpt-4o","object":"model","created":1,"owned_by":"openai"},
			{"id":"anthropic/claude-3.5-sonnet","object":"model","created":1,"owned_by":"anthropic"}]}`)
	}))
	defer server.Close()

	acc := engine.NewAccount("router", OpenRouterProviderID, "sk-or")
	acc.BaseURL = server.URL
	e, err := NewOpenRouter(acc)
	require.NoError(t, err)
	assert.Equal(t, OpenRouterProviderID, e.ProviderID())

	models, err := e.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", models[0].ID)
	assert.Equal(t, "openai", models[1].Extra["owned_by"])

	_, err = e.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTranscribeAndSpeak(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/transcriptions":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":"hello there"}`)
		case "/audio/speech":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3fake"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	e := newTestEngine(t, server.URL)
	st := storage.NewMemory("audio")
	require.NoError(t, storage.WriteFile(ctx, st, "note.mp3", []byte("ID3fake")))

	text, err := e.Transcribe(ctx, attachment.NewFile(st, "note.mp3"), "en")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	a, err := e.Speak(ctx, "hello there", "", st, "out/speech.mp3")
	require.NoError(t, err)
	mt, err := a.MimeType(ctx)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mt)
	data, err := storage.ReadFile(ctx, st, "out/speech.mp3")
	require.NoError(t, err)
	assert.Equal(t, "ID3fake", string(data))

	_, err = e.Transcribe(ctx, attachment.NewURL("https://example.com/a.mp3"), "")
	assert.Error(t, err)
}
