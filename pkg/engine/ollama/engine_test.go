package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

func newTestEngine(t *testing.T, baseURL string) *Engine {
	t.Helper()
	acc := engine.NewAccount("local", ProviderID, "")
	acc.BaseURL = baseURL
	e, err := NewEngine(acc)
	require.NoError(t, err)
	return e
}

func newBlock(t *testing.T, text string, stream bool, atts ...*attachment.Attachment) *conversation.MessageBlock {
	t.Helper()
	req, err := conversation.NewMessage(conversation.RoleUser, text, conversation.WithAttachments(atts...))
	require.NoError(t, err)
	model, err := engine.NewAIModelInfo(ProviderID, "llama3:latest")
	require.NoError(t, err)
	b, err := conversation.NewMessageBlock(req, model, conversation.WithStream(stream))
	require.NoError(t, err)
	return b
}

func TestConvertMessage(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "")
	st := storage.NewMemory("t")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, storage.WriteFile(ctx, st, "pic.png", buf.Bytes()))
	img, err := attachment.ResolveIn(ctx, st, "pic.png")
	require.NoError(t, err)

	msg, err := e.ConvertMessage(ctx, newBlock(t, "look", false, img).Request)
	require.NoError(t, err)
	assert.Equal(t, llms.ChatMessageTypeHuman, msg.Role)
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, llms.TextContent{Text: "look"}, msg.Parts[0])
	bin, ok := msg.Parts[1].(llms.BinaryContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", bin.MIMEType)
	assert.Equal(t, buf.Bytes(), bin.Data)

	_, err = e.ConvertMessage(ctx, newBlock(t, "look", false, attachment.NewURL("https://example.com/a.png")).Request)
	assert.True(t, errors.Is(err, attachment.ErrCapability))
}

func TestGetMessagesRoles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "")
	conv := conversation.New()
	prev := newBlock(t, "hi", false)
	resp, err := conversation.NewMessage(conversation.RoleAssistant, "hello")
	require.NoError(t, err)
	prev.Response = resp
	require.NoError(t, conv.AddBlock(prev, nil))

	msgs, err := e.GetMessages(ctx, newBlock(t, "again", false), conv, conversation.NewSystemMessage("sys"))
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
}

func TestModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[
			{"name":"llava:7b","model":"llava:7b","size":10,"details":{"family":"llama","families":["llama","clip"],"parameter_size":"7B"}},
			{"name":"llama3:latest","model":"llama3:latest","size":20,"details":{"family":"llama","parameter_size":"8B"}}]}`)
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	models, err := e.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:latest", models[0].ID)
	assert.False(t, models[0].Vision)
	assert.True(t, models[1].Vision)
	assert.Equal(t, "7B", models[1].Description)
}

func TestCompletionWithoutStream(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"model":"llama3:latest","message":{"role":"assistant","content":"Hi there"},"done":true}`)
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	out, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: newBlock(t, "hi", false)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out.Response.Content)
	assert.Equal(t, "llama3:latest", body["model"])
}

func TestCompletionWithStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range []string{
			`{"model":"llama3:latest","message":{"role":"assistant","content":"Hi"},"done":false}`,
			`{"model":"llama3:latest","message":{"role":"assistant","content":" there"},"done":false}`,
			`{"model":"llama3:latest","message":{"role":"assistant","content":""},"done":true}`,
		} {
			_, _ = io.WriteString(w, line+"\n")
		}
	}))
	defer server.Close()

	e := newTestEngine(t, server.URL)
	var fragments []string
	out, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: newBlock(t, "hi", true)}, func(f engine.Fragment) error {
		fragments = append(fragments, f.Text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, fragments)
	assert.Equal(t, "Hi there", out.Response.Content)
}

func TestStreamCloseStopsGeneration(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"model":"m","message":{"role":"assistant","content":"one"},"done":false}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	e := newTestEngine(t, server.URL)
	c, err := e.Completion(context.Background(), &engine.CompletionRequest{Block: newBlock(t, "hi", true)})
	require.NoError(t, err)
	s, err := e.CompletionResponseWithStream(c)
	require.NoError(t, err)
	f, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "one", f.Text)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
