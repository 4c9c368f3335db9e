package engine

import (
	"context"
	"io"

	"github.com/go-go-golems/basilisk/pkg/conversation"
)

// Engine is the provider independent face of a chat provider.
type Engine interface {
	ProviderID() string
	Capabilities() Capability
	// SupportedAttachmentFormats lists accepted attachment mime types.
	SupportedAttachmentFormats() []string
	Models(ctx context.Context) ([]ModelInfo, error)
	// GetModel returns nil without error when the model is unknown.
	GetModel(ctx context.Context, id string) (*ModelInfo, error)
	UserAgent() string

	// Completion sends the request and returns the provider response,
	// still unread when the block asks for streaming.
	Completion(ctx context.Context, req *CompletionRequest) (*Completion, error)
	CompletionResponseWithStream(c *Completion) (Stream, error)
	// CompletionResponseWithoutStream stores the assistant response on block
	// and returns it.
	CompletionResponseWithoutStream(c *Completion, block *conversation.MessageBlock) (*conversation.MessageBlock, error)
}

// CompletionRequest is a new block to answer, in the context of the
// conversation so far and an optional system prompt.
type CompletionRequest struct {
	Block        *conversation.MessageBlock
	Conversation *conversation.Conversation
	System       *conversation.SystemMessage
}

// History is the conversation the request continues, never nil.
func (r *CompletionRequest) History() *conversation.Conversation {
	if r.Conversation == nil {
		return conversation.New()
	}
	return r.Conversation
}

// Completion wraps whatever the provider client returned.
type Completion struct {
	Stream bool
	native interface{}
}

func NewStreamCompletion(native interface{}) *Completion {
	return &Completion{Stream: true, native: native}
}

func NewResponseCompletion(native interface{}) *Completion {
	return &Completion{native: native}
}

// Native is the provider client value, for example a stream reader.
func (c *Completion) Native() interface{} {
	return c.native
}

// Close releases an unconsumed stream.
func (c *Completion) Close() error {
	if closer, ok := c.native.(io.Closer); ok {
		return closer.Close()
	}
	if closer, ok := c.native.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

// Fragment is one piece of a streamed answer: some text or a citation.
type Fragment struct {
	Text     string
	Citation conversation.Citation
}

// Stream yields fragments until io.EOF. It cannot be restarted and Close
// must be called on every path.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}
