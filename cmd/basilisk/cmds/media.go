package cmds

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/basilisk/pkg/engine/mistral"
	"github.com/go-go-golems/basilisk/pkg/engine/openai"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

func NewOCRCommand() *cobra.Command {
	var account string
	var outDir string
	cmd := &cobra.Command{
		Use:   "ocr <file or url>...",
		Short: "Extract the text of documents to markdown files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadSettings()
			if err != nil {
				return err
			}
			e, err := newEngine(s, account)
			if err != nil {
				return err
			}
			ocr, ok := e.(*mistral.Engine)
			if !ok {
				return errors.Errorf("%s has no OCR support", e.ProviderID())
			}
			atts, err := resolveAttachments(ctx, args)
			if err != nil {
				return err
			}

			var dst storage.Storage = storage.NewLocal()
			if outDir != "" {
				dir, err := filepath.Abs(outDir)
				if err != nil {
					return errors.Wrapf(err, "could not resolve %s", outDir)
				}
				dst = storage.NewLocalDir(dir)
			}
			out, err := ocr.OCR(ctx, atts, dst, func(p mistral.OCRProgress) {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p.Message)
			})
			if err != nil {
				return err
			}
			for _, a := range out {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), a.URI())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Mistral account name")
	cmd.Flags().StringVar(&outDir, "out", "", "Root directory the markdown files are written under (default: next to each file)")
	return cmd
}

func NewTranscribeCommand() *cobra.Command {
	var account string
	var language string
	cmd := &cobra.Command{
		Use:   "transcribe <audio file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadSettings()
			if err != nil {
				return err
			}
			e, err := newEngine(s, account)
			if err != nil {
				return err
			}
			stt, ok := e.(*openai.Engine)
			if !ok {
				return errors.Errorf("%s has no speech to text support", e.ProviderID())
			}
			atts, err := resolveAttachments(ctx, args)
			if err != nil {
				return err
			}
			text, err := stt.Transcribe(ctx, atts[0], language)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "OpenAI account name")
	cmd.Flags().StringVar(&language, "language", "", "Spoken language (ISO-639-1)")
	return cmd
}
