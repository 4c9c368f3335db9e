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

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/providers"
)

type ModelsSettings struct {
	Account string `glazed.parameter:"account"`
}

type ModelsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ModelsCommand)(nil)

func NewModelsCommand() (*ModelsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ModelsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"models",
			cmds.WithShort("List the models of an account's provider"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"account",
					parameters.ParameterTypeString,
					parameters.WithHelp("Account name (default: configured default)"),
					parameters.WithDefault(""),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ModelsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &ModelsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	st, err := loadSettings()
	if err != nil {
		return err
	}
	e, err := newEngine(st, s.Account)
	if err != nil {
		return err
	}
	models, err := e.Models(ctx)
	if err != nil {
		return err
	}
	for _, row := range modelRows(e.ProviderID(), models) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func modelRows(providerID string, models []engine.ModelInfo) []types.Row {
	ret := make([]types.Row, 0, len(models))
	for _, m := range models {
		ret = append(ret, types.NewRow(
			types.MRP("provider", providerID),
			types.MRP("id", m.ID),
			types.MRP("name", m.DisplayName()),
			types.MRP("context_window", m.ContextWindow),
			types.MRP("max_output_tokens", m.MaxOutputTokens),
			types.MRP("vision", m.Vision),
		))
	}
	return ret
}

type ProvidersCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ProvidersCommand)(nil)

func NewProvidersCommand() (*ProvidersCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ProvidersCommand{
		CommandDescription: cmds.NewCommandDescription(
			"providers",
			cmds.WithShort("List the supported providers"),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ProvidersCommand) RunIntoGlazeProcessor(ctx context.Context, _ *layers.ParsedLayers, gp middlewares.Processor) error {
	rows, err := providerRows()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func providerRows() ([]types.Row, error) {
	var ret []types.Row
	for _, p := range engine.Providers() {
		e, err := providers.Describe(p.ID)
		if err != nil {
			return nil, err
		}
		ret = append(ret, types.NewRow(
			types.MRP("id", p.ID),
			types.MRP("name", p.Name),
			types.MRP("base_url", p.BaseURL),
			types.MRP("api_key", p.RequireAPIKey),
			types.MRP("capabilities", e.Capabilities().String()),
			types.MRP("formats", strings.Join(e.SupportedAttachmentFormats(), ",")),
		))
	}
	return ret, nil
}
