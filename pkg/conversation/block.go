package conversation

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AIModelInfo names the provider and model a block was (or will be) sent to.
type AIModelInfo struct {
	ProviderID string `json:"provider_id" jsonschema:"required"`
	ModelID    string `json:"model_id" jsonschema:"required"`
}

func NewAIModelInfo(providerID string, modelID string) (AIModelInfo, error) {
	m := AIModelInfo{ProviderID: providerID, ModelID: modelID}
	if err := m.Validate(); err != nil {
		return AIModelInfo{}, err
	}
	return m, nil
}

func (m AIModelInfo) Validate() error {
	if m.ProviderID == "" {
		return invalid("model.provider_id", "provider id is required")
	}
	if m.ModelID == "" {
		return invalid("model.model_id", "model id is required")
	}
	return nil
}

func (m AIModelInfo) String() string {
	return fmt.Sprintf("%s/%s", m.ProviderID, m.ModelID)
}

// MessageBlock is one user request and its optional assistant response.
// SystemIndex points into Conversation.Systems and is maintained by the
// conversation, not by callers.
type MessageBlock struct {
	Request     *Message
	Response    *Message
	Model       AIModelInfo
	SystemIndex *int

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      bool
}

type BlockOption func(*MessageBlock)

func WithResponse(response *Message) BlockOption {
	return func(b *MessageBlock) {
		b.Response = response
	}
}

func WithTemperature(t float64) BlockOption {
	return func(b *MessageBlock) {
		b.Temperature = &t
	}
}

func WithTopP(p float64) BlockOption {
	return func(b *MessageBlock) {
		b.TopP = &p
	}
}

func WithMaxTokens(n int) BlockOption {
	return func(b *MessageBlock) {
		b.MaxTokens = &n
	}
}

func WithStream(stream bool) BlockOption {
	return func(b *MessageBlock) {
		b.Stream = stream
	}
}

func NewMessageBlock(request *Message, model AIModelInfo, options ...BlockOption) (*MessageBlock, error) {
	b := &MessageBlock{Request: request, Model: model}
	for _, option := range options {
		option(b)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *MessageBlock) Validate() error {
	if b.Request == nil {
		return invalid("request", "request is required")
	}
	if err := b.Request.Validate(); err != nil {
		return err
	}
	if b.Request.Role != RoleUser {
		return invalid("request.role", "expected %q, got %q", RoleUser, b.Request.Role)
	}
	if b.Response != nil {
		if err := b.Response.Validate(); err != nil {
			return err
		}
		if b.Response.Role != RoleAssistant {
			return invalid("response.role", "expected %q, got %q", RoleAssistant, b.Response.Role)
		}
		if len(b.Response.Attachments) > 0 {
			return invalid("response.attachments", "responses cannot carry attachments")
		}
	}
	if err := b.Model.Validate(); err != nil {
		return err
	}
	if b.SystemIndex != nil && *b.SystemIndex < 0 {
		return invalid("system_index", "negative index %d", *b.SystemIndex)
	}
	if b.Temperature != nil && *b.Temperature < 0 {
		return invalid("temperature", "must be >= 0, got %v", *b.Temperature)
	}
	if b.TopP != nil && (*b.TopP < 0 || *b.TopP > 1) {
		return invalid("top_p", "must be within [0, 1], got %v", *b.TopP)
	}
	if b.MaxTokens != nil && *b.MaxTokens < 0 {
		return invalid("max_tokens", "must be >= 0, got %d", *b.MaxTokens)
	}
	return nil
}

func (b *MessageBlock) MarshalZerologObject(e *zerolog.Event) {
	e.Str("model", b.Model.String())
	if b.Request != nil {
		e.Object("request", b.Request)
	}
	if b.Response != nil {
		e.Object("response", b.Response)
	}
	if b.SystemIndex != nil {
		e.Int("system_index", *b.SystemIndex)
	}
	e.Bool("stream", b.Stream)
}
