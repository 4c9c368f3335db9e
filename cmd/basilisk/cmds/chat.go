package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/settings"
)

type chatOptions struct {
	Model  string
	Prompt string
	System string
	Attach []string
	// Stream overrides the configured default when set.
	Stream        *bool
	AttachURLs    bool
	GenerateTitle bool
}

func NewChatCommand() *cobra.Command {
	var (
		account string
		opts    chatOptions
		stream  bool
	)
	cmd := &cobra.Command{
		Use:   "chat <file.bskc>",
		Short: "Send a request in a conversation and save the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			e, err := newEngine(s, account)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("stream") {
				opts.Stream = &stream
			}
			_, err = chatTurn(cmd.Context(), s, e, args[0], opts, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account name (default: configured default)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Model id")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "User request")
	cmd.Flags().StringVar(&opts.System, "system", "", "System prompt")
	cmd.Flags().StringSliceVar(&opts.Attach, "attach", nil, "Files or URLs to attach")
	cmd.Flags().BoolVar(&opts.AttachURLs, "attach-urls", true, "Attach URLs found in the prompt when the provider accepts their type")
	cmd.Flags().BoolVar(&stream, "stream", true, "Stream the answer")
	cmd.Flags().BoolVar(&opts.GenerateTitle, "title", false, "Generate a title for untitled conversations")
	return cmd
}

// chatTurn opens (or starts) the conversation at path, runs one request
// through e, prints the answer to out and saves the conversation.
func chatTurn(
	ctx context.Context,
	s *settings.Settings,
	e engine.Engine,
	path string,
	opts chatOptions,
	out io.Writer,
) (*conversation.Conversation, error) {
	if opts.Prompt == "" {
		return nil, errors.New("--prompt is required")
	}
	conv, err := openOrNewConversation(ctx, s, path)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = s.Conversation.DefaultModel
	}
	if model == "" {
		models, err := e.Models(ctx)
		if err != nil {
			return nil, err
		}
		if len(models) == 0 {
			return nil, errors.Errorf("%s has no models, pass --model", e.ProviderID())
		}
		model = models[0].ID
	}
	info, err := engine.NewAIModelInfo(e.ProviderID(), model)
	if err != nil {
		return nil, err
	}

	atts, err := resolveAttachments(ctx, opts.Attach)
	if err != nil {
		return nil, err
	}
	if opts.AttachURLs {
		atts = append(atts, promptURLAttachments(ctx, e, opts.Prompt)...)
	}
	req, err := conversation.NewMessage(conversation.RoleUser, opts.Prompt, conversation.WithAttachments(atts...))
	if err != nil {
		return nil, err
	}

	stream := s.Conversation.Stream
	if opts.Stream != nil {
		stream = *opts.Stream
	}
	blockOpts := []conversation.BlockOption{conversation.WithStream(stream)}
	if t := s.Conversation.Temperature; t != nil {
		blockOpts = append(blockOpts, conversation.WithTemperature(*t))
	}
	if p := s.Conversation.TopP; p != nil {
		blockOpts = append(blockOpts, conversation.WithTopP(*p))
	}
	if n := s.Conversation.MaxTokens; n != nil {
		blockOpts = append(blockOpts, conversation.WithMaxTokens(*n))
	}
	block, err := conversation.NewMessageBlock(req, info, blockOpts...)
	if err != nil {
		return nil, err
	}

	var sys *conversation.SystemMessage
	switch {
	case opts.System != "":
		sys = conversation.NewSystemMessage(opts.System)
	case conv.LastSystem() != nil:
		sys = conv.LastSystem()
	case s.Conversation.SystemPrompt != "":
		sys = conversation.NewSystemMessage(s.Conversation.SystemPrompt)
	}

	_, err = engine.Run(ctx, e, &engine.CompletionRequest{Block: block, Conversation: conv, System: sys},
		func(f engine.Fragment) error {
			_, err := fmt.Fprint(out, f.Text)
			return err
		})
	if err != nil {
		return nil, err
	}
	if block.Stream {
		_, _ = fmt.Fprintln(out)
	} else {
		_, _ = fmt.Fprintln(out, block.Response.Content)
	}

	if err := conv.AddBlock(block, sys); err != nil {
		return nil, err
	}
	if conv.Title == nil && opts.GenerateTitle {
		title, err := engine.GenerateTitle(ctx, e, conv)
		if err != nil {
			log.Warn().Err(err).Msg("could not generate title")
		} else {
			conv.SetTitle(title)
		}
	}
	if err := saveConversation(ctx, conv, path); err != nil {
		return nil, err
	}
	return conv, nil
}

// promptURLAttachments attaches the URLs of prompt whose type the engine
// accepts. Anything else stays plain text in the prompt.
func promptURLAttachments(ctx context.Context, e engine.Engine, prompt string) []*attachment.Attachment {
	var ret []*attachment.Attachment
	for _, u := range attachment.ExtractURLs(prompt) {
		a, err := attachment.Resolve(ctx, u)
		if err != nil {
			log.Debug().Err(err).Str("url", u).Msg("not attaching url")
			continue
		}
		if _, err := attachment.CheckFormat(ctx, e.ProviderID(), a, e.SupportedAttachmentFormats()); err != nil {
			log.Debug().Err(err).Str("url", u).Msg("not attaching url")
			continue
		}
		ret = append(ret, a)
	}
	return ret
}
