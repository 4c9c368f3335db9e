package openai

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
)

const ProviderID = "openai"

var imageFormats = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Config describes one OpenAI compatible provider.
type Config struct {
	ProviderID   string
	Capabilities engine.Capability
	Formats      []string
	// Catalog builds the model catalog of the provider.
	Catalog func(e *Engine) engine.CatalogFunc
	// BaseURL resolves the API root. Nil means the account base URL.
	BaseURL func(ctx context.Context, e *Engine) (string, error)
}

// Engine serves providers speaking the OpenAI chat completions API.
type Engine struct {
	*engine.Base
	config Config

	mu     sync.Mutex
	client *go_openai.Client
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Converter[go_openai.ChatCompletionMessage] = (*Engine)(nil)

func New(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return NewWithConfig(account, Config{
		ProviderID:   ProviderID,
		Capabilities: engine.CapabilityText | engine.CapabilityImage | engine.CapabilitySTT | engine.CapabilityTTS,
		Formats:      imageFormats,
		Catalog:      staticCatalog(openAIModels),
	}, options...)
}

func NewWithConfig(account *engine.Account, config Config, options ...engine.Option) (*Engine, error) {
	if account != nil && account.ProviderID != config.ProviderID {
		return nil, errors.Errorf("account provider %s does not match engine %s", account.ProviderID, config.ProviderID)
	}
	if config.Catalog == nil {
		return nil, errors.Errorf("%s: no model catalog", config.ProviderID)
	}
	e := &Engine{config: config}
	base, err := engine.NewBase(account, func(ctx context.Context) ([]engine.ModelInfo, error) {
		return config.Catalog(e)(ctx)
	}, options...)
	if err != nil {
		return nil, err
	}
	e.Base = base
	return e, nil
}

func staticCatalog(models func() []engine.ModelInfo) func(*Engine) engine.CatalogFunc {
	return func(*Engine) engine.CatalogFunc {
		return func(context.Context) ([]engine.ModelInfo, error) {
			return models(), nil
		}
	}
}

func (e *Engine) Capabilities() engine.Capability {
	return e.config.Capabilities
}

func (e *Engine) SupportedAttachmentFormats() []string {
	return e.config.Formats
}

// Client returns the go-openai client, built on first use. A failed build
// (for instance a base URL lookup) is retried on the next call.
func (e *Engine) Client(ctx context.Context) (*go_openai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}

	account := e.Account()
	baseURL := account.EffectiveBaseURL()
	if e.config.BaseURL != nil {
		var err error
		if baseURL, err = e.config.BaseURL(ctx, e); err != nil {
			return nil, err
		}
	}

	config := go_openai.DefaultConfig(account.APIKey.Value())
	config.BaseURL = strings.TrimRight(baseURL, "/")
	config.OrgID = account.Organization
	if hc := e.Options().HTTPClient; hc != nil {
		config.HTTPClient = hc
	}
	e.client = go_openai.NewClientWithConfig(config)
	log.Debug().Str("provider", e.ProviderID()).Str("base_url", config.BaseURL).Msg("created openai client")
	return e.client, nil
}

// GetAttachmentSource returns the image URL handed to the API: the remote
// URL itself or a data URL of the stored image.
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

// ConvertMessage renders a request as a text part followed by one image part
// per attachment.
func (e *Engine) ConvertMessage(ctx context.Context, msg *conversation.Message) (go_openai.ChatCompletionMessage, error) {
	parts := make([]go_openai.ChatMessagePart, 0, len(msg.Attachments)+1)
	parts = append(parts, go_openai.ChatMessagePart{
		Type: go_openai.ChatMessagePartTypeText,
		Text: msg.Content,
	})
	for _, a := range msg.Attachments {
		if _, err := attachment.CheckFormat(ctx, e.ProviderID(), a, e.config.Formats); err != nil {
			return go_openai.ChatCompletionMessage{}, err
		}
		url, err := e.GetAttachmentSource(ctx, a)
		if err != nil {
			return go_openai.ChatCompletionMessage{}, err
		}
		parts = append(parts, go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeImageURL,
			ImageURL: &go_openai.ChatMessageImageURL{
				URL:    url,
				Detail: go_openai.ImageURLDetailAuto,
			},
		})
	}
	return go_openai.ChatCompletionMessage{Role: string(msg.Role), MultiContent: parts}, nil
}

func (e *Engine) PrepareSystemMessage(_ context.Context, system *conversation.SystemMessage) (go_openai.ChatCompletionMessage, error) {
	return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: system.Content}, nil
}

func (e *Engine) PrepareMessageRequest(ctx context.Context, msg *conversation.Message) (go_openai.ChatCompletionMessage, error) {
	return e.ConvertMessage(ctx, msg)
}

func (e *Engine) PrepareMessageResponse(_ context.Context, msg *conversation.Message) (go_openai.ChatCompletionMessage, error) {
	return go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: msg.Content}, nil
}

func (e *Engine) GetMessages(
	ctx context.Context,
	newBlock *conversation.MessageBlock,
	conv *conversation.Conversation,
	system *conversation.SystemMessage,
) ([]go_openai.ChatCompletionMessage, error) {
	return engine.GetMessages[go_openai.ChatCompletionMessage](ctx, e, newBlock, conv, system)
}

func (e *Engine) Completion(ctx context.Context, req *engine.CompletionRequest) (*engine.Completion, error) {
	messages, err := e.GetMessages(ctx, req.Block, req.History(), req.System)
	if err != nil {
		return nil, err
	}
	client, err := e.Client(ctx)
	if err != nil {
		return nil, err
	}

	b := req.Block
	r := go_openai.ChatCompletionRequest{
		Model:    b.Model.ModelID,
		Messages: messages,
		Stream:   b.Stream,
	}
	if b.Temperature != nil {
		r.Temperature = float32(*b.Temperature)
	}
	if b.TopP != nil {
		r.TopP = float32(*b.TopP)
	}
	if b.MaxTokens != nil {
		r.MaxTokens = *b.MaxTokens
	}
	log.Debug().Str("provider", e.ProviderID()).Str("model", r.Model).Int("messages", len(messages)).Bool("stream", r.Stream).Msg("chat completion")

	if b.Stream {
		stream, err := client.CreateChatCompletionStream(ctx, r)
		if err != nil {
			return nil, err
		}
		return engine.NewStreamCompletion(stream), nil
	}
	resp, err := client.CreateChatCompletion(ctx, r)
	if err != nil {
		return nil, err
	}
	return engine.NewResponseCompletion(&resp), nil
}

func (e *Engine) CompletionResponseWithStream(c *engine.Completion) (engine.Stream, error) {
	s, ok := c.Native().(*go_openai.ChatCompletionStream)
	if !ok {
		return nil, engine.ErrNotStreaming
	}
	return &stream{s: s}, nil
}

func (e *Engine) CompletionResponseWithoutStream(
	c *engine.Completion,
	block *conversation.MessageBlock,
) (*conversation.MessageBlock, error) {
	resp, ok := c.Native().(*go_openai.ChatCompletionResponse)
	if !ok {
		return nil, engine.ErrStreaming
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Errorf("%s returned no choices", e.ProviderID())
	}
	msg, err := conversation.NewMessage(conversation.RoleAssistant, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	block.Response = msg
	return block, nil
}

type stream struct {
	s    *go_openai.ChatCompletionStream
	once sync.Once
}

func (s *stream) Recv() (engine.Fragment, error) {
	for {
		resp, err := s.s.Recv()
		if err != nil {
			return engine.Fragment{}, err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return engine.Fragment{Text: resp.Choices[0].Delta.Content}, nil
	}
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.s.Close()
	})
	return nil
}
