package anthropic

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/anthropic/api"
)

const ProviderID = "anthropic"

const defaultMaxTokens = 4096

var supportedFormats = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
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
	return engine.CapabilityText | engine.CapabilityImage | engine.CapabilityDocument | engine.CapabilityCitation
}

func (e *Engine) SupportedAttachmentFormats() []string {
	return supportedFormats
}

// Client returns the API client, built on first use.
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

// GetAttachmentSource describes where the provider reads an attachment from.
func (e *Engine) GetAttachmentSource(ctx context.Context, a *attachment.Attachment) (*api.Source, error) {
	if a.Kind == attachment.KindURL {
		return &api.Source{Type: api.SourceURL, URL: a.Location}, nil
	}
	enc, err := engine.EncodeAttachment(ctx, a, e.Options())
	if err != nil {
		return nil, err
	}
	if enc.MimeType == "text/plain" {
		return &api.Source{Type: api.SourceText, MediaType: enc.MimeType, Data: string(enc.Data)}, nil
	}
	return &api.Source{Type: api.SourceBase64, MediaType: enc.MimeType, Data: enc.Base64()}, nil
}

// ConvertMessage renders a message as a text block followed by one block per
// attachment.
func (e *Engine) ConvertMessage(ctx context.Context, msg *conversation.Message) (api.Message, error) {
	content := make([]api.Content, 0, len(msg.Attachments)+1)
	content = append(content, api.NewTextContent(msg.Content))

	for _, a := range msg.Attachments {
		mt, err := attachment.CheckFormat(ctx, ProviderID, a, supportedFormats)
		if err != nil {
			return api.Message{}, err
		}
		source, err := e.GetAttachmentSource(ctx, a)
		if err != nil {
			return api.Message{}, err
		}
		if mt == "application/pdf" || mt == "text/plain" {
			content = append(content, api.NewDocumentContent(*source, a.Name, true))
		} else {
			content = append(content, api.NewImageContent(*source))
		}
	}
	return api.Message{Role: string(msg.Role), Content: content}, nil
}

func (e *Engine) PrepareSystemMessage(_ context.Context, system *conversation.SystemMessage) (api.Message, error) {
	return api.Message{
		Role:    string(conversation.RoleSystem),
		Content: []api.Content{api.NewTextContent(system.Content)},
	}, nil
}

func (e *Engine) PrepareMessageRequest(ctx context.Context, msg *conversation.Message) (api.Message, error) {
	return e.ConvertMessage(ctx, msg)
}

func (e *Engine) PrepareMessageResponse(_ context.Context, msg *conversation.Message) (api.Message, error) {
	return api.Message{
		Role:    string(conversation.RoleAssistant),
		Content: []api.Content{api.NewTextContent(msg.Content)},
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

func (e *Engine) buildRequest(ctx context.Context, req *engine.CompletionRequest) (*api.MessageRequest, error) {
	// the system prompt travels outside of the message list
	messages, err := e.GetMessages(ctx, req.Block, req.History(), nil)
	if err != nil {
		return nil, err
	}
	model, err := e.GetModel(ctx, req.Block.Model.ModelID)
	if err != nil {
		return nil, err
	}

	ret := &api.MessageRequest{
		Model:       req.Block.Model.ModelID,
		Messages:    messages,
		MaxTokens:   model.MaxTokensOr(defaultMaxTokens),
		Temperature: req.Block.Temperature,
		TopP:        req.Block.TopP,
	}
	if req.Block.MaxTokens != nil && *req.Block.MaxTokens > 0 {
		ret.MaxTokens = *req.Block.MaxTokens
	}
	if req.System != nil {
		ret.System = req.System.Content
	}
	return ret, nil
}

func (e *Engine) Completion(ctx context.Context, req *engine.CompletionRequest) (*engine.Completion, error) {
	r, err := e.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("model", r.Model).Int("messages", len(r.Messages)).Bool("stream", req.Block.Stream).Msg("anthropic completion")

	if req.Block.Stream {
		stream, err := e.Client().StreamMessage(ctx, r)
		if err != nil {
			return nil, err
		}
		return engine.NewStreamCompletion(stream), nil
	}
	resp, err := e.Client().SendMessage(ctx, r)
	if err != nil {
		return nil, err
	}
	return engine.NewResponseCompletion(resp), nil
}

func (e *Engine) CompletionResponseWithStream(c *engine.Completion) (engine.Stream, error) {
	s, ok := c.Native().(*api.MessageStream)
	if !ok {
		return nil, engine.ErrNotStreaming
	}
	return &stream{s: s}, nil
}

func (e *Engine) CompletionResponseWithoutStream(
	c *engine.Completion,
	block *conversation.MessageBlock,
) (*conversation.MessageBlock, error) {
	resp, ok := c.Native().(*api.MessageResponse)
	if !ok {
		return nil, engine.ErrStreaming
	}

	var citations []conversation.Citation
	for _, content := range resp.Content {
		for _, cite := range content.Citations {
			citations = append(citations, cite)
		}
	}
	var opts []conversation.MessageOption
	if citations != nil {
		opts = append(opts, conversation.WithCitations(citations...))
	}
	msg, err := conversation.NewMessage(conversation.RoleAssistant, resp.Text(), opts...)
	if err != nil {
		return nil, err
	}
	block.Response = msg
	return block, nil
}

type stream struct {
	s *api.MessageStream
}

func (s *stream) Recv() (engine.Fragment, error) {
	for {
		ev, err := s.s.Recv()
		if err != nil {
			return engine.Fragment{}, err
		}
		if ev.Type != api.ContentBlockDeltaType || ev.Delta == nil {
			continue
		}
		switch ev.Delta.Type {
		case api.TextDeltaType:
			if ev.Delta.Text == "" {
				continue
			}
			return engine.Fragment{Text: ev.Delta.Text}, nil
		case api.CitationsDeltaType:
			if ev.Delta.Citation == nil {
				continue
			}
			return engine.Fragment{Citation: ev.Delta.Citation}, nil
		}
	}
}

func (s *stream) Close() error {
	return s.s.Close()
}
