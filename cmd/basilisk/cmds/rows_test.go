package cmds

import (
	"testing"

	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
)

func field(t *testing.T, row types.Row, name string) interface{} {
	t.Helper()
	v, ok := row.Get(name)
	require.True(t, ok, "missing field %s", name)
	return v
}

func TestConversationRows(t *testing.T) {
	req, err := conversation.NewMessage(conversation.RoleUser, "hi",
		conversation.WithAttachments(attachment.NewURL("https://example.com/cat.png")))
	require.NoError(t, err)
	resp, err := conversation.NewMessage(conversation.RoleAssistant, "hello\n")
	require.NoError(t, err)
	model, err := conversation.NewAIModelInfo("openai", "gpt-4o")
	require.NoError(t, err)
	b, err := conversation.NewMessageBlock(req, model, conversation.WithResponse(resp))
	require.NoError(t, err)
	conv := conversation.New()
	conv.SetTitle("Greetings")
	require.NoError(t, conv.AddBlock(b, conversation.NewSystemMessage("be brief")))

	rows := conversationRows(conv)
	require.Len(t, rows, 3)
	assert.Equal(t, "system", field(t, rows[0], "role"))
	assert.Equal(t, "be brief", field(t, rows[0], "content"))
	assert.Equal(t, "user", field(t, rows[1], "role"))
	assert.Equal(t, "https://example.com/cat.png", field(t, rows[1], "attachments"))
	assert.Equal(t, "hello", field(t, rows[2], "content"))
	assert.Equal(t, "openai/gpt-4o", field(t, rows[2], "model"))
	assert.Equal(t, 1, field(t, rows[2], "block"))
	assert.Equal(t, "Greetings", field(t, rows[2], "title"))
}

func TestModelRows(t *testing.T) {
	rows := modelRows("openai", []engine.ModelInfo{{ID: "gpt-4o", ContextWindow: 128000, Vision: true}, {ID: "o3-mini", Name: "o3 mini"}})
	require.Len(t, rows, 2)
	assert.Equal(t, "gpt-4o", field(t, rows[0], "name"))
	assert.Equal(t, 128000, field(t, rows[0], "context_window"))
	assert.Equal(t, true, field(t, rows[0], "vision"))
	assert.Equal(t, "o3 mini", field(t, rows[1], "name"))
}

func TestProviderRows(t *testing.T) {
	rows, err := providerRows()
	require.NoError(t, err)
	require.Len(t, rows, len(engine.Providers()))

	byID := map[string]types.Row{}
	for _, r := range rows {
		byID[field(t, r, "id").(string)] = r
	}
	require.Contains(t, byID, "mistralai")
	assert.Contains(t, field(t, byID["mistralai"], "formats"), "application/pdf")
	assert.Equal(t, false, field(t, byID["ollama"], "api_key"))
}
