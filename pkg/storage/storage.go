package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotExist is returned (wrapped) when a location is missing from a storage.
var ErrNotExist = errors.New("storage: location does not exist")

var errUploadAborted = errors.New("storage: write aborted")

// Info describes a stored object.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage is the byte store attachments live in. Locations are slash
// separated names relative to the storage root, except for the local OS
// storage which accepts absolute paths.
type Storage interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Stat(ctx context.Context, name string) (Info, error)
	// URI renders a location as a URI for display and logging.
	URI(name string) string
}

// Join builds a storage location from slash separated parts.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return path.Join(nonEmpty...)
}

// ReadFile reads a whole object.
func ReadFile(ctx context.Context, s Storage, name string) ([]byte, error) {
	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func(r io.ReadCloser) {
		_ = r.Close()
	}(r)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", s.URI(name))
	}
	return data, nil
}

// WriteFile creates (or replaces) an object with the given content.
func WriteFile(ctx context.Context, s Storage, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = Abort(w, err)
		return errors.Wrapf(err, "could not write %s", s.URI(name))
	}
	return w.Close()
}

// Abort closes a writer returned by Create without committing it. Writers
// that cannot discard their content are simply closed.
func Abort(w io.WriteCloser, cause error) error {
	if a, ok := w.(interface{ CloseWithError(error) error }); ok {
		return a.CloseWithError(cause)
	}
	return w.Close()
}

// IsNotExist reports whether err means the location was not found.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

func cleanKey(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
