package cmds

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/settings"
)

type scriptedEngine struct {
	*engine.Base
	answers []string
}

var _ engine.Engine = (*scriptedEngine)(nil)

func newScriptedEngine(t *testing.T, answers ...string) *scriptedEngine {
	t.Helper()
	b, err := engine.NewBase(engine.NewAccount("test", "openai", "sk-test"), func(context.Context) ([]engine.ModelInfo, error) {
		return []engine.ModelInfo{{ID: "gpt-4o"}}, nil
	})
	require.NoError(t, err)
	return &scriptedEngine{Base: b, answers: answers}
}

func (e *scriptedEngine) Capabilities() engine.Capability {
	return engine.CapabilityText | engine.CapabilityImage
}

func (e *scriptedEngine) SupportedAttachmentFormats() []string {
	return []string{"image/png", "image/jpeg"}
}

func (e *scriptedEngine) Completion(context.Context, *engine.CompletionRequest) (*engine.Completion, error) {
	answer := e.answers[0]
	e.answers = e.answers[1:]
	return engine.NewResponseCompletion(answer), nil
}

func (e *scriptedEngine) CompletionResponseWithStream(*engine.Completion) (engine.Stream, error) {
	return nil, engine.ErrNotStreaming
}

func (e *scriptedEngine) CompletionResponseWithoutStream(c *engine.Completion, block *conversation.MessageBlock) (*conversation.MessageBlock, error) {
	resp, err := conversation.NewMessage(conversation.RoleAssistant, c.Native().(string))
	if err != nil {
		return nil, err
	}
	block.Response = resp
	return block, nil
}

func testSettings() *settings.Settings {
	s := settings.New()
	s.Storage.Type = settings.StorageMemory
	s.Conversation.Stream = false
	return s
}

func TestChatTwiceWithoutExtension(t *testing.T) {
	ctx := context.Background()
	s := testSettings()
	e := newScriptedEngine(t, "first answer", "second answer")
	path := filepath.Join(t.TempDir(), "notes")

	var out bytes.Buffer
	_, err := chatTurn(ctx, s, e, path, chatOptions{Prompt: "one", System: "be brief"}, &out)
	require.NoError(t, err)
	conv, err := chatTurn(ctx, s, e, path, chatOptions{Prompt: "two"}, &out)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)

	_, err = os.Stat(path + ".bskc")
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	reopened, err := openConversation(ctx, s, path)
	require.NoError(t, err)
	require.Len(t, reopened.Messages, 2)
	assert.Equal(t, "one", reopened.Messages[0].Request.Content)
	assert.Equal(t, "second answer", reopened.Messages[1].Response.Content)
	// the second turn reuses the system of the first
	assert.Len(t, reopened.Systems, 1)
	assert.Equal(t, reopened.Systems[0], reopened.SystemFor(reopened.Messages[1]))
	assert.Equal(t, "first answer\nsecond answer\n", out.String())
}

func TestChatRequiresPrompt(t *testing.T) {
	_, err := chatTurn(context.Background(), testSettings(), newScriptedEngine(t), filepath.Join(t.TempDir(), "x"), chatOptions{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPromptURLAttachmentsKeepsSupportedTypes(t *testing.T) {
	e := newScriptedEngine(t)
	atts := promptURLAttachments(context.Background(), e,
		"compare https://example.com/cat.png with https://example.com/article.html and https://127.0.0.1/dog.jpg")
	require.Len(t, atts, 1)
	assert.Equal(t, "https://example.com/cat.png", atts[0].Location)
}

func TestChatSkipsUnsupportedPromptURLs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "links.bskc")
	conv, err := chatTurn(ctx, testSettings(), newScriptedEngine(t, "ok"), path,
		chatOptions{Prompt: "summarize https://example.com/post.html", AttachURLs: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, conv.Messages[0].Request.Attachments)
}
