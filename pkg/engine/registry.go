package engine

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Constructor builds an engine bound to an account.
type Constructor func(account *Account, options ...Option) (Engine, error)

// Registry maps provider ids to engine constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

func (r *Registry) Register(providerID string, c Constructor) error {
	if providerID == "" || c == nil {
		return errors.New("provider id and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[providerID]; ok {
		return errors.Errorf("provider %s is already registered", providerID)
	}
	r.constructors[providerID] = c
	return nil
}

// New validates the account and builds the engine for its provider.
func (r *Registry) New(account *Account, options ...Option) (Engine, error) {
	if account == nil {
		return nil, errors.New("account is required")
	}
	r.mu.RLock()
	c, ok := r.constructors[account.ProviderID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "provider %q", account.ProviderID)
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	e, err := c(account, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create %s engine", account.ProviderID)
	}
	log.Debug().Object("account", account).Msg("created engine")
	return e, nil
}

func (r *Registry) ProviderIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}
