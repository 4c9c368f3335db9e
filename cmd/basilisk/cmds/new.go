package cmds

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/engine"
)

func NewNewCommand() *cobra.Command {
	var (
		title    string
		system   string
		prompt   string
		attach   []string
		provider string
		model    string
	)
	cmd := &cobra.Command{
		Use:   "new <file.bskc>",
		Short: "Create a conversation holding one unanswered request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if prompt == "" {
				return errors.New("--prompt is required")
			}
			info, err := engine.NewAIModelInfo(provider, model)
			if err != nil {
				return err
			}
			atts, err := resolveAttachments(ctx, attach)
			if err != nil {
				return err
			}
			req, err := conversation.NewMessage(conversation.RoleUser, prompt, conversation.WithAttachments(atts...))
			if err != nil {
				return err
			}
			block, err := conversation.NewMessageBlock(req, info)
			if err != nil {
				return err
			}

			conv := conversation.New()
			if title != "" {
				conv.SetTitle(title)
			}
			var sys *conversation.SystemMessage
			if system != "" {
				sys = conversation.NewSystemMessage(system)
			}
			if err := conv.AddBlock(block, sys); err != nil {
				return err
			}
			if err := saveConversation(ctx, conv, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Conversation title")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "User request")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "Files or URLs to attach")
	cmd.Flags().StringVar(&provider, "provider", "openai", "Provider id")
	cmd.Flags().StringVar(&model, "model", "gpt-4o", "Model id")
	return cmd
}
