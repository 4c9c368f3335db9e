package engine

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/conversation"
)

// Run sends req and collects the answer into req.Block.Response, streaming
// or not depending on the block. onFragment, when set, sees every streamed
// fragment as it arrives.
func Run(
	ctx context.Context,
	e Engine,
	req *CompletionRequest,
	onFragment func(Fragment) error,
) (*conversation.MessageBlock, error) {
	if req == nil || req.Block == nil {
		return nil, errors.New("completion request has no block")
	}
	if err := req.Block.Validate(); err != nil {
		return nil, err
	}

	c, err := e.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	if !c.Stream {
		return e.CompletionResponseWithoutStream(c, req.Block)
	}

	s, err := e.CompletionResponseWithStream(c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	defer func(s Stream) {
		_ = s.Close()
	}(s)

	var text strings.Builder
	var citations []conversation.Citation
	for {
		f, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		text.WriteString(f.Text)
		if f.Citation != nil {
			citations = append(citations, f.Citation)
		}
		if onFragment != nil {
			if err := onFragment(f); err != nil {
				return nil, err
			}
		}
	}

	var opts []conversation.MessageOption
	if citations != nil {
		opts = append(opts, conversation.WithCitations(citations...))
	}
	resp, err := conversation.NewMessage(conversation.RoleAssistant, text.String(), opts...)
	if err != nil {
		return nil, err
	}
	req.Block.Response = resp
	log.Debug().Object("block", req.Block).Msg("completed streamed block")
	return req.Block, nil
}

// GenerateTitle asks the model of the last block for a conversation title.
func GenerateTitle(ctx context.Context, e Engine, conv *conversation.Conversation) (string, error) {
	if conv == nil || len(conv.Messages) == 0 {
		return "", errors.New("cannot title an empty conversation")
	}
	last := conv.Messages[len(conv.Messages)-1]

	prompt, err := conversation.NewMessage(conversation.RoleUser, conversation.TitlePrompt)
	if err != nil {
		return "", err
	}
	block, err := conversation.NewMessageBlock(prompt, last.Model)
	if err != nil {
		return "", err
	}

	block, err = Run(ctx, e, &CompletionRequest{Block: block, Conversation: conv}, nil)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(block.Response.Content)
	title = strings.Trim(title, "\"'`")
	return strings.TrimSpace(title), nil
}
