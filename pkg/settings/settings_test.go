package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

const sampleYAML = `
storage:
  type: memory
accounts:
  - name: work
    provider: openai
    api_key: sk-work
    organization: org-1
  - name: claude
    provider: anthropic
    api_key_env: TEST_CLAUDE_KEY
  - name: local
    provider: ollama
    base_url: http://localhost:11434
images:
  resize_enabled: true
  max_width: 800
  max_height: 600
  quality: 70
conversation:
  default_account: claude
  default_model: claude-3-5-haiku-latest
  stream: false
  temperature: 0.3
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, s.Storage.Type)
	require.Len(t, s.Accounts, 3)
	assert.False(t, s.Conversation.Stream)
	require.NotNil(t, s.Conversation.Temperature)
	assert.Equal(t, 0.3, *s.Conversation.Temperature)
	assert.Len(t, s.EngineOptions(), 1)

	st, err := s.OpenStorage(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &storage.FS{}, st)
}

func TestDefaults(t *testing.T) {
	s, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, s.Storage.Type)
	assert.True(t, s.Conversation.Stream)
	assert.Empty(t, s.EngineOptions())
	_, err = s.Account("")
	assert.Error(t, err)
}

func TestAccountKeys(t *testing.T) {
	t.Setenv("TEST_CLAUDE_KEY", "sk-ant-env")
	t.Setenv("OLLAMA_API_KEY", "")
	s, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	acc, err := s.Account("")
	require.NoError(t, err)
	assert.Equal(t, "claude", acc.Name)
	assert.Equal(t, "sk-ant-env", acc.APIKey.Value())

	work, err := s.Account("work")
	require.NoError(t, err)
	assert.Equal(t, "sk-work", work.APIKey.Value())
	assert.Equal(t, "org-1", work.Organization)
	again, err := s.Account("work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, again.ID)
	assert.NotEqual(t, work.ID, acc.ID)

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	fallback, err := AccountSettings{Name: "x", Provider: "openai"}.ToAccount()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", fallback.APIKey.Value())

	_, err = s.Account("missing")
	assert.Error(t, err)
	_, err = AccountSettings{Name: "x", Provider: "openai", ID: "not-a-uuid"}.ToAccount()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown storage", "storage: {type: ftp}"},
		{"s3 without bucket", "storage: {type: s3}"},
		{"account without name", "accounts: [{provider: openai}]"},
		{"duplicate account", "accounts: [{name: a, provider: openai}, {name: a, provider: anthropic}]"},
		{"unknown provider", "accounts: [{name: a, provider: cohere}]"},
		{"missing default", "conversation: {default_account: nope}"},
		{"bad quality", "images: {resize_enabled: true, quality: 0}"},
		{"bad bounds", "images: {resize_enabled: true, max_width: 0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("accounts: [{name: a, provider: cohere}]"))
	assert.True(t, errors.Is(err, engine.ErrUnknownProvider))
}

func TestClone(t *testing.T) {
	s, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	c := s.Clone()
	c.Accounts[0].Name = "changed"
	*c.Conversation.Temperature = 1
	assert.Equal(t, "work", s.Accounts[0].Name)
	assert.Equal(t, 0.3, *s.Conversation.Temperature)
}

func TestViper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	t.Setenv("BASILISK_IMAGES_QUALITY", "55")

	v, err := NewViper(path)
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, s.Storage.Type)
	assert.Len(t, s.Accounts, 3)
	assert.Equal(t, 55, s.Images.Quality)
	assert.Equal(t, "claude", s.Conversation.DefaultAccount)

	_, err = NewViper(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basilisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude", s.Conversation.DefaultAccount)
}
