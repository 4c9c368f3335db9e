package engine

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/basilisk/pkg/security"
)

// Secret holds a credential and never prints it.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// Value returns the raw secret.
func (s Secret) Value() string {
	return string(s)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Account binds a provider to credentials.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ProviderID   string    `json:"provider_id"`
	APIKey       Secret    `json:"api_key"`
	BaseURL      string    `json:"base_url,omitempty"`
	Organization string    `json:"organization,omitempty"`
}

func NewAccount(name string, providerID string, apiKey string) *Account {
	return &Account{
		ID:         uuid.New(),
		Name:       name,
		ProviderID: providerID,
		APIKey:     Secret(apiKey),
	}
}

// Provider looks up the account's provider.
func (a *Account) Provider() (Provider, error) {
	p, ok := GetProvider(a.ProviderID)
	if !ok {
		return Provider{}, errors.Wrapf(ErrUnknownProvider, "provider %q", a.ProviderID)
	}
	return p, nil
}

// EffectiveBaseURL is the account override or the provider default.
func (a *Account) EffectiveBaseURL() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	if p, ok := GetProvider(a.ProviderID); ok {
		return p.BaseURL
	}
	return ""
}

// Validate checks the account against its provider requirements.
func (a *Account) Validate() error {
	p, err := a.Provider()
	if err != nil {
		return err
	}
	if p.RequireAPIKey && a.APIKey == "" {
		return errors.Errorf("account %q: provider %s requires an api key", a.Name, p.ID)
	}
	if a.BaseURL != "" {
		if err := security.ValidateProviderBaseURL(a.BaseURL, p.AllowLocalBaseURL); err != nil {
			return errors.Wrapf(err, "account %q: invalid base url", a.Name)
		}
	}
	return nil
}

func (a *Account) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", a.ID.String())
	e.Str("name", a.Name)
	e.Str("provider", a.ProviderID)
	e.Bool("has_api_key", a.APIKey != "")
	if a.BaseURL != "" {
		e.Str("base_url", a.BaseURL)
	}
}
