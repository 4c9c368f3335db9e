package openai

import (
	"context"
	"sort"

	"github.com/go-go-golems/basilisk/pkg/engine"
)

const OpenRouterProviderID = "openrouter"

// NewOpenRouter builds an engine for OpenRouter, whose catalog is listed
// from the API.
func NewOpenRouter(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return NewWithConfig(account, Config{
		ProviderID:   OpenRouterProviderID,
		Capabilities: engine.CapabilityText | engine.CapabilityImage,
		Formats:      imageFormats,
		Catalog:      remoteCatalog,
	}, options...)
}

// remoteCatalog lists models through the /models endpoint.
func remoteCatalog(e *Engine) engine.CatalogFunc {
	return func(ctx context.Context) ([]engine.ModelInfo, error) {
		client, err := e.Client(ctx)
		if err != nil {
			return nil, err
		}
		list, err := client.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		ret := make([]engine.ModelInfo, 0, len(list.Models))
		for _, m := range list.Models {
			info := engine.ModelInfo{ID: m.ID}
			if m.OwnedBy != "" {
				info.Extra = map[string]interface{}{"owned_by": m.OwnedBy}
			}
			ret = append(ret, info)
		}
		sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
		return ret, nil
	}
}
