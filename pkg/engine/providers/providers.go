// Package providers wires every built-in engine into a registry.
package providers

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/anthropic"
	"github.com/go-go-golems/basilisk/pkg/engine/infomaniak"
	"github.com/go-go-golems/basilisk/pkg/engine/mistral"
	"github.com/go-go-golems/basilisk/pkg/engine/ollama"
	"github.com/go-go-golems/basilisk/pkg/engine/openai"
)

var constructors = map[string]engine.Constructor{
	anthropic.ProviderID:        anthropic.New,
	infomaniak.ProviderID:       infomaniak.New,
	mistral.ProviderID:          mistral.New,
	ollama.ProviderID:           ollama.New,
	openai.ProviderID:           openai.New,
	openai.OpenRouterProviderID: openai.NewOpenRouter,
}

// Register adds the built-in engines to r.
func Register(r *engine.Registry) error {
	for id, c := range constructors {
		if err := r.Register(id, c); err != nil {
			return err
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *engine.Registry
	defaultMu       sync.Mutex
)

// Default is the process wide registry holding the built-in engines.
func Default() *engine.Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce.Do(func() {
		r := engine.NewRegistry()
		if err := Register(r); err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// ResetDefault drops the default registry; the next Default call rebuilds it.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce = sync.Once{}
	defaultRegistry = nil
}

// Describe builds an engine for providerID with a placeholder account, to
// inspect capabilities and formats. It must not be used for requests.
func Describe(providerID string) (engine.Engine, error) {
	c, ok := constructors[providerID]
	if !ok {
		return nil, errors.Wrapf(engine.ErrUnknownProvider, "provider %q", providerID)
	}
	return c(engine.NewAccount("metadata", providerID, ""))
}

// NewEngine builds an engine for account from the default registry.
func NewEngine(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return Default().New(account, options...)
}
