package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/conversation"
)

type ShowSettings struct {
	File string `glazed.parameter:"file"`
}

// ShowCommand prints a saved conversation, one row per message.
type ShowCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ShowCommand)(nil)

func NewShowCommand() (*ShowCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ShowCommand{
		CommandDescription: cmds.NewCommandDescription(
			"show",
			cmds.WithShort("Print a saved conversation"),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"file",
					parameters.ParameterTypeString,
					parameters.WithHelp("Conversation archive (.bskc)"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ShowCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &ShowSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	st, err := loadSettings()
	if err != nil {
		return err
	}
	conv, err := openConversation(ctx, st, s.File)
	if err != nil {
		return err
	}
	for _, row := range conversationRows(conv) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// conversationRows flattens conv: for every block its system (if any), the
// request and the response.
func conversationRows(conv *conversation.Conversation) []types.Row {
	title := ""
	if conv.Title != nil {
		title = *conv.Title
	}

	var ret []types.Row
	for i, b := range conv.Messages {
		row := func(role conversation.Role, content string, m *conversation.Message) types.Row {
			var atts []string
			citations := 0
			if m != nil {
				for _, a := range m.Attachments {
					atts = append(atts, a.URI())
				}
				citations = len(m.Citations)
			}
			return types.NewRow(
				types.MRP("title", title),
				types.MRP("block", i+1),
				types.MRP("model", b.Model.String()),
				types.MRP("role", string(role)),
				types.MRP("content", strings.TrimSpace(content)),
				types.MRP("attachments", strings.Join(atts, ",")),
				types.MRP("citations", citations),
			)
		}

		if sys := conv.SystemFor(b); sys != nil {
			ret = append(ret, row(conversation.RoleSystem, sys.Content, nil))
		}
		ret = append(ret, row(b.Request.Role, b.Request.Content, b.Request))
		if b.Response != nil {
			ret = append(ret, row(b.Response.Role, b.Response.Content, b.Response))
		}
	}
	return ret
}
