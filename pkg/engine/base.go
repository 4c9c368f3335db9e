package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const AppName = "basiliskLLM"

// Version is stamped at build time.
var Version = "dev"

// CatalogFunc lists the models of a provider.
type CatalogFunc func(ctx context.Context) ([]ModelInfo, error)

// Base carries what every engine shares: the account, the options and a
// cached model catalog. The zero Base serves nothing.
type Base struct {
	account *Account
	options *Options
	catalog CatalogFunc

	mu     sync.Mutex
	models []ModelInfo
}

func NewBase(account *Account, catalog CatalogFunc, options ...Option) (*Base, error) {
	if account == nil {
		return nil, errors.New("account is required")
	}
	if account.ProviderID == "" {
		return nil, errors.New("account has no provider id")
	}
	if catalog == nil {
		return nil, errors.Errorf("%s: no model catalog", account.ProviderID)
	}
	opts, err := NewOptions(options...)
	if err != nil {
		return nil, err
	}
	return &Base{account: account, options: opts, catalog: catalog}, nil
}

func (b *Base) Account() *Account {
	return b.account
}

func (b *Base) Options() *Options {
	if b.options == nil {
		return &Options{}
	}
	return b.options
}

func (b *Base) ProviderID() string {
	if b.account == nil {
		return ""
	}
	return b.account.ProviderID
}

func (b *Base) UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s)", AppName, Version, runtime.GOOS, runtime.GOARCH)
}

// Models returns the provider catalog, fetched once and then cached. A
// failed fetch is retried on the next call.
func (b *Base) Models(ctx context.Context) ([]ModelInfo, error) {
	if b.catalog == nil {
		return nil, ErrAbstractEngine
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.models != nil {
		return b.models, nil
	}

	models, err := b.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []ModelInfo{}
	}
	log.Debug().Str("provider", b.ProviderID()).Int("models", len(models)).Msg("loaded model catalog")
	b.models = models
	return models, nil
}

// GetModel finds a model by id, nil if the provider has no such model.
func (b *Base) GetModel(ctx context.Context, id string) (*ModelInfo, error) {
	models, err := b.Models(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ID == id {
			m := models[i]
			return &m, nil
		}
	}
	return nil, nil
}

// ResetModels drops the cached catalog.
func (b *Base) ResetModels() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = nil
}
