package ollama

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	lc_ollama "github.com/tmc/langchaingo/llms/ollama"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
)

const ProviderID = "ollama"

var supportedFormats = []string{"image/png", "image/jpeg"}

// Engine drives a local Ollama server through langchaingo.
type Engine struct {
	*engine.Base

	mu     sync.Mutex
	client *lc_ollama.LLM
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Converter[llms.MessageContent] = (*Engine)(nil)

func New(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return NewEngine(account, options...)
}

func NewEngine(account *engine.Account, options ...engine.Option) (*Engine, error) {
	e := &Engine{}
	base, err := engine.NewBase(account, func(ctx context.Context) ([]engine.ModelInfo, error) {
		return e.listModels(ctx)
	}, options...)
	if err != nil {
		return nil, err
	}
	e.Base = base
	return e, nil
}

func (e *Engine) Capabilities() engine.Capability {
	return engine.CapabilityText | engine.CapabilityImage
}

func (e *Engine) SupportedAttachmentFormats() []string {
	return supportedFormats
}

func (e *Engine) serverURL() string {
	return strings.TrimRight(e.Account().EffectiveBaseURL(), "/")
}

// Client returns the langchaingo client, built on first use. The model is
// chosen per call.
func (e *Engine) Client() (*lc_ollama.LLM, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	opts := []lc_ollama.Option{lc_ollama.WithServerURL(e.serverURL())}
	if hc := e.Options().HTTPClient; hc != nil {
		opts = append(opts, lc_ollama.WithHTTPClient(hc))
	}
	client, err := lc_ollama.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	e.client = client
	return client, nil
}

// GetAttachmentSource inlines a stored image. Ollama cannot fetch URLs.
func (e *Engine) GetAttachmentSource(ctx context.Context, a *attachment.Attachment) (llms.ContentPart, error) {
	if a.Kind == attachment.KindURL {
		return nil, &attachment.CapabilityError{Provider: ProviderID, MimeType: "url", Allowed: supportedFormats}
	}
	enc, err := engine.EncodeAttachment(ctx, a, e.Options())
	if err != nil {
		return nil, err
	}
	return llms.BinaryPart(enc.MimeType, enc.Data), nil
}

func (e *Engine) ConvertMessage(ctx context.Context, msg *conversation.Message) (llms.MessageContent, error) {
	parts := make([]llms.ContentPart, 0, len(msg.Attachments)+1)
	parts = append(parts, llms.TextPart(msg.Content))
	for _, a := range msg.Attachments {
		if a.Kind != attachment.KindURL {
			if _, err := attachment.CheckFormat(ctx, ProviderID, a, supportedFormats); err != nil {
				return llms.MessageContent{}, err
			}
		}
		part, err := e.GetAttachmentSource(ctx, a)
		if err != nil {
			return llms.MessageContent{}, err
		}
		parts = append(parts, part)
	}
	return llms.MessageContent{Role: chatMessageType(msg.Role), Parts: parts}, nil
}

func chatMessageType(role conversation.Role) llms.ChatMessageType {
	switch role {
	case conversation.RoleSystem:
		return llms.ChatMessageTypeSystem
	case conversation.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (e *Engine) PrepareSystemMessage(_ context.Context, system *conversation.SystemMessage) (llms.MessageContent, error) {
	return llms.TextParts(llms.ChatMessageTypeSystem, system.Content), nil
}

func (e *Engine) PrepareMessageRequest(ctx context.Context, msg *conversation.Message) (llms.MessageContent, error) {
	return e.ConvertMessage(ctx, msg)
}

func (e *Engine) PrepareMessageResponse(_ context.Context, msg *conversation.Message) (llms.MessageContent, error) {
	return llms.TextParts(llms.ChatMessageTypeAI, msg.Content), nil
}

func (e *Engine) GetMessages(
	ctx context.Context,
	newBlock *conversation.MessageBlock,
	conv *conversation.Conversation,
	system *conversation.SystemMessage,
) ([]llms.MessageContent, error) {
	return engine.GetMessages[llms.MessageContent](ctx, e, newBlock, conv, system)
}

func callOptions(b *conversation.MessageBlock) []llms.CallOption {
	ret := []llms.CallOption{llms.WithModel(b.Model.ModelID)}
	if b.Temperature != nil {
		ret = append(ret, llms.WithTemperature(*b.Temperature))
	}
	if b.TopP != nil {
		ret = append(ret, llms.WithTopP(*b.TopP))
	}
	if b.MaxTokens != nil && *b.MaxTokens > 0 {
		ret = append(ret, llms.WithMaxTokens(*b.MaxTokens))
	}
	return ret
}

func (e *Engine) Completion(ctx context.Context, req *engine.CompletionRequest) (*engine.Completion, error) {
	messages, err := e.GetMessages(ctx, req.Block, req.History(), req.System)
	if err != nil {
		return nil, err
	}
	client, err := e.Client()
	if err != nil {
		return nil, err
	}
	opts := callOptions(req.Block)
	log.Debug().Str("model", req.Block.Model.ModelID).Int("messages", len(messages)).Bool("stream", req.Block.Stream).Msg("ollama completion")

	if req.Block.Stream {
		return engine.NewStreamCompletion(startStream(ctx, client, messages, opts)), nil
	}
	resp, err := client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return engine.NewResponseCompletion(resp), nil
}

func (e *Engine) CompletionResponseWithStream(c *engine.Completion) (engine.Stream, error) {
	s, ok := c.Native().(*chunkStream)
	if !ok {
		return nil, engine.ErrNotStreaming
	}
	return s, nil
}

func (e *Engine) CompletionResponseWithoutStream(
	c *engine.Completion,
	block *conversation.MessageBlock,
) (*conversation.MessageBlock, error) {
	resp, ok := c.Native().(*llms.ContentResponse)
	if !ok {
		return nil, engine.ErrStreaming
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ollama returned no choices")
	}
	msg, err := conversation.NewMessage(conversation.RoleAssistant, resp.Choices[0].Content)
	if err != nil {
		return nil, err
	}
	block.Response = msg
	return block, nil
}
