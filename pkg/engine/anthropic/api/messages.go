package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/sse"
	"github.com/go-go-golems/basilisk/pkg/security"
)

const (
	DefaultAPIVersion = "2023-06-01"
	providerName      = "anthropic"
)

type MessageRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) MarshalZerologObject(e *zerolog.Event) {
	e.Int("input_tokens", u.InputTokens)
	e.Int("output_tokens", u.OutputTokens)
}

type MessageResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []ResponseContent `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence string            `json:"stop_sequence"`
	Usage        Usage             `json:"usage"`
}

func (m MessageResponse) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", m.ID)
	e.Str("model", m.Model)
	e.Int("content_blocks", len(m.Content))
	if m.StopReason != "" {
		e.Str("stop_reason", m.StopReason)
	}
	e.Object("usage", m.Usage)
}

// Text joins the text blocks of the answer.
func (m *MessageResponse) Text() string {
	var sb strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// Client talks to the messages API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
	UserAgent  string
}

func NewClient(httpClient *http.Client, apiKey string, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		APIVersion: DefaultAPIVersion,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

func (c *Client) post(ctx context.Context, body interface{}) (*http.Response, error) {
	if err := security.ValidateOutboundURL(c.BaseURL, security.OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}); err != nil {
		return nil, errors.Wrap(err, "invalid anthropic base URL")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	// #nosec G704 -- URL is validated above with ValidateOutboundURL.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		return nil, engine.NewProviderError(providerName, resp)
	}
	return resp, nil
}

// SendMessage sends a non streaming request.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	var ret MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return nil, errors.Wrap(err, "could not decode anthropic response")
	}
	log.Debug().Object("response", ret).Msg("anthropic message")
	return &ret, nil
}

// StreamMessage sends a streaming request. The returned stream owns the
// connection until Close.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (*MessageStream, error) {
	req.Stream = true
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return &MessageStream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}
