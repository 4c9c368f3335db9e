package api

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/engine/sse"
)

type ContentType string

const (
	ContentTypeText        ContentType = "text"
	ContentTypeImageURL    ContentType = "image_url"
	ContentTypeDocumentURL ContentType = "document_url"
)

type ContentPart struct {
	Type        ContentType `json:"type"`
	Text        string      `json:"text,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	DocumentURL string      `json:"document_url,omitempty"`
}

func NewTextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// MessageContent is either a plain string or a list of chunks.
type MessageContent json.RawMessage

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	*m = append((*m)[0:0], data...)
	return nil
}

// Text returns the textual content, joining text chunks.
func (m MessageContent) Text() string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	var parts []ContentPart
	if err := json.Unmarshal(m, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range parts {
		if p.Type == ContentTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

type ResponseMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	Delta        ResponseMessage `json:"delta"`
	FinishReason string          `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

func (r ChatResponse) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", r.ID)
	e.Str("model", r.Model)
	e.Int("choices", len(r.Choices))
	if r.Usage != nil {
		e.Int("total_tokens", r.Usage.TotalTokens)
	}
}

// Text is the content of the first choice.
func (r *ChatResponse) Text() (string, error) {
	if len(r.Choices) == 0 {
		return "", errors.New("mistral returned no choices")
	}
	return r.Choices[0].Message.Content.Text(), nil
}

func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	resp, err := c.postJSON(ctx, "/v1/chat/completions", req)
	if err != nil {
		return nil, err
	}
	var ret ChatResponse
	if err := decode(resp, &ret); err != nil {
		return nil, err
	}
	log.Debug().Object("response", ret).Msg("mistral chat")
	return &ret, nil
}

// ChatStream sends a streaming request. The returned stream owns the
// connection until Close.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest) (*ChatStream, error) {
	req.Stream = true
	resp, err := c.postJSON(ctx, "/v1/chat/completions", req)
	if err != nil {
		return nil, err
	}
	return &ChatStream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

type ChatStream struct {
	body   io.ReadCloser
	reader *sse.Reader
	once   sync.Once
	err    error
}

// Recv returns the next chunk, io.EOF after [DONE].
func (s *ChatStream) Recv() (*ChatResponse, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		if sse.IsDone(ev) {
			return nil, io.EOF
		}
		var chunk ChatResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			log.Trace().Str("data", ev.Data).Err(err).Msg("skipping unparsable mistral chunk")
			continue
		}
		return &chunk, nil
	}
}

func (s *ChatStream) Close() error {
	s.once.Do(func() {
		s.err = s.body.Close()
	})
	return s.err
}
