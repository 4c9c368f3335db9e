package engine

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/attachment"
)

// Option configures an engine at construction.
type Option func(*Options) error

type Options struct {
	HTTPClient *http.Client
	// ImageResize, when set, shrinks local images before upload.
	ImageResize *attachment.ResizeOptions
}

func NewOptions(options ...Option) (*Options, error) {
	o := &Options{}
	if err := ApplyOptions(o, options...); err != nil {
		return nil, err
	}
	return o, nil
}

func ApplyOptions(o *Options, options ...Option) error {
	for _, option := range options {
		if err := option(o); err != nil {
			return err
		}
	}
	return nil
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) error {
		o.HTTPClient = c
		return nil
	}
}

func WithImageResize(r attachment.ResizeOptions) Option {
	return func(o *Options) error {
		if r.MaxWidth < 0 || r.MaxHeight < 0 {
			return errors.Errorf("invalid resize bounds %dx%d", r.MaxWidth, r.MaxHeight)
		}
		if r.Quality < 0 || r.Quality > 100 {
			return errors.Errorf("invalid jpeg quality %d", r.Quality)
		}
		o.ImageResize = &r
		return nil
	}
}

// Client returns the configured HTTP client or http.DefaultClient.
func (o *Options) Client() *http.Client {
	if o == nil || o.HTTPClient == nil {
		return http.DefaultClient
	}
	return o.HTTPClient
}
