package mistral

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/mistral/api"
)

const ProviderID = "mistralai"

var supportedFormats = []string{
	"image/gif",
	"image/jpeg",
	"image/png",
	"image/webp",
	"application/pdf",
}

type Engine struct {
	*engine.Base

	mu     sync.Mutex
	client *api.Client
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Converter[api.Message] = (*Engine)(nil)

func New(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return NewEngine(account, options...)
}

func NewEngine(account *engine.Account, options ...engine.Option) (*Engine, error) {
	base, err := engine.NewBase(account, func(context.Context) ([]engine.ModelInfo, error) {
		return models(), nil
	}, options...)
	if err != nil {
		return nil, err
	}
	return &Engine{Base: base}, nil
}

func (e *Engine) Capabilities() engine.Capability {
	return engine.CapabilityText | engine.CapabilityImage | engine.CapabilityDocument | engine.CapabilityOCR
}

func (e *Engine) SupportedAttachmentFormats() []string {
	return supportedFormats
}

func (e *Engine) Client() *api.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		account := e.Account()
		e.client = api.NewClient(e.Options().Client(), account.APIKey.Value(), account.EffectiveBaseURL())
		e.client.UserAgent = e.UserAgent()
	}
	return e.client
}

// GetAttachmentSource returns the URL the API fetches an attachment from,
// a data URL for stored files.
func (e *Engine) GetAttachmentSource(ctx context.Context, a *attachment.Attachment) (string, error) {
	if a.Kind == attachment.KindURL {
		return a.Location, nil
	}
	enc, err := engine.EncodeAttachment(ctx, a, e.Options())
	if err != nil {
		return "", err
	}
	return enc.DataURL(), nil
}

func (e *Engine) ConvertMessage(ctx context.Context, msg *conversation.Message) (api.Message, error) {
	content := make([]api.ContentPart, 0, len(msg.Attachments)+1)
	content = append(content, api.NewTextPart(msg.Content))
	for _, a := range msg.Attachments {
		mt, err := attachment.CheckFormat(ctx, ProviderID, a, supportedFormats)
		if err != nil {
			return api.Message{}, err
		}
		src, err := e.GetAttachmentSource(ctx, a)
		if err != nil {
			return api.Message{}, err
		}
		if strings.HasPrefix(mt, "image/") {
			content = append(content, api.ContentPart{Type: api.ContentTypeImageURL, ImageURL: src})
		} else {
			content = append(content, api.ContentPart{Type: api.ContentTypeDocumentURL, DocumentURL: src})
		}
	}
	return api.Message{Role: string(msg.Role), Content: content}, nil
}

func (e *Engine) PrepareSystemMessage(_ context.Context, system *conversation.SystemMessage) (api.Message, error) {
	return api.Message{
		Role:    string(conversation.RoleSystem),
		Content: []api.ContentPart{api.NewTextPart(system.Content)},
	}, nil
}

func (e *Engine) PrepareMessageRequest(ctx context.Context, msg *conversation.Message) (api.Message, error) {
	return e.ConvertMessage(ctx, msg)
}

func (e *Engine) PrepareMessageResponse(_ context.Context, msg *conversation.Message) (api.Message, error) {
	return api.Message{
		Role:    string(conversation.RoleAssistant),
		Content: []api.ContentPart{api.NewTextPart(msg.Content)},
	}, nil
}

func (e *Engine) GetMessages(
	ctx context.Context,
	newBlock *conversation.MessageBlock,
	conv *conversation.Conversation,
	system *conversation.SystemMessage,
) ([]api.Message, error) {
	return engine.GetMessages[api.Message](ctx, e, newBlock, conv, system)
}

func (e *Engine) Completion(ctx context.Context, req *engine.CompletionRequest) (*engine.Completion, error) {
	messages, err := e.GetMessages(ctx, req.Block, req.History(), req.System)
	if err != nil {
		return nil, err
	}
	b := req.Block
	r := &api.ChatRequest{
		Model:       b.Model.ModelID,
		Messages:    messages,
		Temperature: b.Temperature,
		TopP:        b.TopP,
	}
	if b.MaxTokens != nil && *b.MaxTokens > 0 {
		r.MaxTokens = b.MaxTokens
	}
	log.Debug().Str("model", r.Model).Int("messages", len(messages)).Bool("stream", b.Stream).Msg("mistral completion")

	if b.Stream {
		stream, err := e.Client().ChatStream(ctx, r)
		if err != nil {
			return nil, err
		}
		return engine.NewStreamCompletion(stream), nil
	}
	resp, err := e.Client().Chat(ctx, r)
	if err != nil {
		return nil, err
	}
	return engine.NewResponseCompletion(resp), nil
}

func (e *Engine) CompletionResponseWithStream(c *engine.Completion) (engine.Stream, error) {
	s, ok := c.Native().(*api.ChatStream)
	if !ok {
		return nil, engine.ErrNotStreaming
	}
	return &stream{s: s}, nil
}

func (e *Engine) CompletionResponseWithoutStream(
	c *engine.Completion,
	block *conversation.MessageBlock,
) (*conversation.MessageBlock, error) {
	resp, ok := c.Native().(*api.ChatResponse)
	if !ok {
		return nil, engine.ErrStreaming
	}
	text, err := resp.Text()
	if err != nil {
		return nil, errors.Wrap(err, "mistral completion")
	}
	msg, err := conversation.NewMessage(conversation.RoleAssistant, text)
	if err != nil {
		return nil, err
	}
	block.Response = msg
	return block, nil
}

type stream struct {
	s *api.ChatStream
}

func (s *stream) Recv() (engine.Fragment, error) {
	for {
		chunk, err := s.s.Recv()
		if err != nil {
			return engine.Fragment{}, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content.Text(); text != "" {
			return engine.Fragment{Text: text}, nil
		}
	}
}

func (s *stream) Close() error {
	return s.s.Close()
}
