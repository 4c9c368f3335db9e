package cmds

import (
	"github.com/spf13/cobra"

	"github.com/go-go-golems/basilisk/pkg/conversation/archive"
)

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the conversation manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := archive.Schema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
}
