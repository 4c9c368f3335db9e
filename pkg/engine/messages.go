package engine

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
)

// Converter turns conversation messages into a provider message type T.
type Converter[T any] interface {
	PrepareSystemMessage(ctx context.Context, system *conversation.SystemMessage) (T, error)
	PrepareMessageRequest(ctx context.Context, msg *conversation.Message) (T, error)
	PrepareMessageResponse(ctx context.Context, msg *conversation.Message) (T, error)
}

// GetMessages flattens a conversation for a provider: the system prompt if
// any, each block's request and response, then the new request last.
func GetMessages[T any](
	ctx context.Context,
	c Converter[T],
	newBlock *conversation.MessageBlock,
	conv *conversation.Conversation,
	system *conversation.SystemMessage,
) ([]T, error) {
	if newBlock == nil || newBlock.Request == nil {
		return nil, errors.New("new block has no request")
	}

	n := 1
	if conv != nil {
		n += 2 * len(conv.Messages)
	}
	ret := make([]T, 0, n+1)

	if system != nil {
		m, err := c.PrepareSystemMessage(ctx, system)
		if err != nil {
			return nil, err
		}
		ret = append(ret, m)
	}

	if conv != nil {
		for _, b := range conv.Messages {
			m, err := c.PrepareMessageRequest(ctx, b.Request)
			if err != nil {
				return nil, err
			}
			ret = append(ret, m)
			if b.Response == nil {
				continue
			}
			m, err = c.PrepareMessageResponse(ctx, b.Response)
			if err != nil {
				return nil, err
			}
			ret = append(ret, m)
		}
	}

	m, err := c.PrepareMessageRequest(ctx, newBlock.Request)
	if err != nil {
		return nil, err
	}
	return append(ret, m), nil
}

// EncodedAttachment is attachment content ready to be inlined.
type EncodedAttachment struct {
	MimeType string
	Data     []byte
}

func (e *EncodedAttachment) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURL renders the content as a data: URL.
func (e *EncodedAttachment) DataURL() string {
	return "data:" + e.MimeType + ";base64," + e.Base64()
}

// EncodeAttachment reads a stored attachment, resizing images when the
// options ask for it.
func EncodeAttachment(ctx context.Context, a *attachment.Attachment, opts *Options) (*EncodedAttachment, error) {
	if a.Kind == attachment.KindURL {
		return nil, errors.Errorf("url attachment %s cannot be inlined", a.Location)
	}
	if a.Kind == attachment.KindImage && opts != nil && opts.ImageResize != nil {
		data, mt, err := a.Resize(ctx, *opts.ImageResize)
		if err != nil {
			return nil, err
		}
		return &EncodedAttachment{MimeType: mt, Data: data}, nil
	}

	mt, err := a.MimeType(ctx)
	if err != nil {
		return nil, err
	}
	data, err := a.ReadAll(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read attachment %s", a.URI())
	}
	return &EncodedAttachment{MimeType: mt, Data: data}, nil
}
