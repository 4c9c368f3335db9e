package infomaniak

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/openai"
)

func newBlock(t *testing.T) *conversation.MessageBlock {
	t.Helper()
	req, err := conversation.NewMessage(conversation.RoleUser, "bonjour")
	require.NoError(t, err)
	model, err := engine.NewAIModelInfo(ProviderID, "mixtral")
	require.NoError(t, err)
	b, err := conversation.NewMessageBlock(req, model)
	require.NoError(t, err)
	return b
}

func TestCompletionUsesProductURL(t *testing.T) {
	lookups := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ik-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/":
			lookups++
			_, _ = io.WriteString(w, `{"result":"success","data":[{"product_id":4242,"name":"ai"}]}`)
		case "/4242/openai/chat/completions":
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"mixtral",
				"choices":[{"index":0,"message":{"role":"assistant","content":"salut"},"finish_reason":"stop"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	acc := engine.NewAccount("ik", ProviderID, "ik-key")
	acc.BaseURL = server.URL + "/"
	e, err := New(acc)
	require.NoError(t, err)
	assert.Equal(t, ProviderID, e.ProviderID())
	assert.False(t, e.Capabilities().Has(engine.CapabilityDocument))

	for i := 0; i < 2; i++ {
		out, err := engine.Run(context.Background(), e, &engine.CompletionRequest{Block: newBlock(t)}, nil)
		require.NoError(t, err)
		assert.Equal(t, "salut", out.Response.Content)
	}
	assert.Equal(t, 1, lookups)

	client, err := e.(*openai.Engine).Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestProductIDErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "no products",
			status: http.StatusOK,
			body:   `{"data":[]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrProductNotFound))
			},
		},
		{
			name:   "several products",
			status: http.StatusOK,
			body:   `{"data":[{"product_id":1},{"product_id":2}]}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "multiple")
			},
		},
		{
			name:   "missing product id",
			status: http.StatusOK,
			body:   `{"data":[{"name":"ai"}]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrProductNotFound))
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"result":"error","error":{"code":"not_authorized","description":"bad token"}}`,
			check: func(t *testing.T, err error) {
				var pe *engine.ProviderError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := ProductID(context.Background(), server.Client(), server.URL, "k", "")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestModels(t *testing.T) {
	e, err := New(engine.NewAccount("ik", ProviderID, "k"))
	require.NoError(t, err)
	models, err := e.Models(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 3)
	m, err := e.GetModel(context.Background(), "llama3")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 8000, m.MaxOutputTokens)
}
