package attachment

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/go-go-golems/basilisk/pkg/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind discriminates the attachment variants.
type Kind string

const (
	KindFile  Kind = "file"
	KindImage Kind = "image"
	KindURL   Kind = "url"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFile, KindImage, KindURL:
		return Kind(s), nil
	default:
		return "", errors.Errorf("unknown attachment type %q", s)
	}
}

// Dimensions are pixel sizes of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Attachment is a file, an image or a remote URL attached to a message.
// File and image attachments live in a storage, URL attachments are never
// fetched by this package.
type Attachment struct {
	Kind        Kind
	Location    string
	Name        string
	Description string

	storage storage.Storage

	mu         sync.Mutex
	mimeType   string
	size       *int64
	dimensions *Dimensions
}

// NewFile creates a generic attachment stored at location.
func NewFile(st storage.Storage, location string) *Attachment {
	return &Attachment{Kind: KindFile, Location: location, Name: path.Base(toSlash(location)), storage: st}
}

// NewImage creates an image attachment stored at location.
func NewImage(st storage.Storage, location string) *Attachment {
	a := NewFile(st, location)
	a.Kind = KindImage
	return a
}

// NewURL creates an attachment referring to a remote resource.
func NewURL(uri string) *Attachment {
	a := &Attachment{Kind: KindURL, Location: uri}
	if u, err := url.Parse(uri); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			a.Name = base
		}
	}
	if a.Name == "" {
		a.Name = uri
	}
	return a
}

// Storage returns the store backing a file or image attachment, nil for URLs.
func (a *Attachment) Storage() storage.Storage {
	return a.storage
}

// URI is the location rendered for display.
func (a *Attachment) URI() string {
	if a.Kind == KindURL || a.storage == nil {
		return a.Location
	}
	return a.storage.URI(a.Location)
}

// IsImage is true for image attachments and URL attachments of an image type.
func (a *Attachment) IsImage() bool {
	if a.Kind == KindImage {
		return true
	}
	if a.Kind == KindURL {
		return strings.HasPrefix(a.cachedMimeType(), "image/")
	}
	return false
}

// Open returns the attachment content.
func (a *Attachment) Open(ctx context.Context) (io.ReadCloser, error) {
	if a.Kind == KindURL {
		return nil, errors.Errorf("url attachment %s has no local content", a.Location)
	}
	if a.storage == nil {
		return nil, errors.Errorf("attachment %s has no storage", a.Location)
	}
	return a.storage.Open(ctx, a.Location)
}

// ReadAll returns the whole attachment content.
func (a *Attachment) ReadAll(ctx context.Context) ([]byte, error) {
	r, err := a.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func(r io.ReadCloser) {
		_ = r.Close()
	}(r)
	return io.ReadAll(r)
}

// MimeType resolves and caches the mime type. URL attachments are typed by
// their path extension.
func (a *Attachment) MimeType(ctx context.Context) (string, error) {
	if mt := a.cachedMimeType(); mt != "" {
		return mt, nil
	}

	var mt string
	if a.Kind == KindURL {
		if u, err := url.Parse(a.Location); err == nil {
			mt = mimeTypeFromExtension(u.Path)
		}
		if mt == "" {
			mt = defaultMimeType
		}
	} else {
		r, err := a.Open(ctx)
		if err != nil {
			return "", err
		}
		defer func(r io.ReadCloser) {
			_ = r.Close()
		}(r)
		mt, err = sniffMimeType(r, a.Name)
		if err != nil {
			return "", errors.Wrapf(err, "could not detect mime type of %s", a.URI())
		}
	}

	a.SetMimeType(mt)
	return mt, nil
}

func (a *Attachment) SetMimeType(mt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mimeType = mt
}

func (a *Attachment) cachedMimeType() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mimeType
}

// Size returns the byte size of stored content. URL attachments report
// false for the known flag.
func (a *Attachment) Size(ctx context.Context) (int64, bool, error) {
	a.mu.Lock()
	if a.size != nil {
		s := *a.size
		a.mu.Unlock()
		return s, true, nil
	}
	a.mu.Unlock()

	if a.Kind == KindURL {
		return 0, false, nil
	}
	if a.storage == nil {
		return 0, false, errors.Errorf("attachment %s has no storage", a.Location)
	}
	info, err := a.storage.Stat(ctx, a.Location)
	if err != nil {
		return 0, false, err
	}
	a.SetSize(info.Size)
	return info.Size, true, nil
}

func (a *Attachment) SetSize(size int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.size = &size
}

// SetDimensions records known pixel dimensions, for example after a remote
// image has been fetched or when restoring from an archive.
func (a *Attachment) SetDimensions(d Dimensions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dimensions = &d
}

func (a *Attachment) cachedDimensions() (Dimensions, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dimensions == nil {
		return Dimensions{}, false
	}
	return *a.dimensions, true
}

func (a *Attachment) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", string(a.Kind))
	e.Str("location", a.URI())
	if a.Name != "" {
		e.Str("name", a.Name)
	}
	if mt := a.cachedMimeType(); mt != "" {
		e.Str("mime_type", mt)
	}
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
