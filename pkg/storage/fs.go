package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemeFile   = "file"
	SchemeMemory = "memory"
)

// FS is a Storage over an afero filesystem.
type FS struct {
	fs     afero.Fs
	scheme string
	root   string
}

var _ Storage = (*FS)(nil)

// NewLocal returns the OS storage, addressed by absolute paths.
func NewLocal() *FS {
	return &FS{fs: afero.NewOsFs(), scheme: SchemeFile}
}

// NewLocalDir returns an OS storage rooted at dir.
func NewLocalDir(dir string) *FS {
	return &FS{
		fs:     afero.NewBasePathFs(afero.NewOsFs(), dir),
		scheme: SchemeFile,
		root:   dir,
	}
}

// NewMemory returns an in-memory storage. name only shows up in URIs.
func NewMemory(name string) *FS {
	return &FS{fs: afero.NewMemMapFs(), scheme: SchemeMemory, root: name}
}

// NewFS wraps an arbitrary afero filesystem.
func NewFS(fs afero.Fs, scheme string, root string) *FS {
	return &FS{fs: fs, scheme: scheme, root: root}
}

// Fs exposes the underlying filesystem.
func (s *FS) Fs() afero.Fs {
	return s.fs
}

func (s *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, s.wrap(err, name)
	}
	return f, nil
}

func (s *FS) Create(_ context.Context, name string) (io.WriteCloser, error) {
	if dir := filepath.Dir(name); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create directory for %s", s.URI(name))
		}
	}
	tmp := filepath.Join(filepath.Dir(name), "."+filepath.Base(name)+"."+uuid.NewString()[:8]+".tmp")
	f, err := s.fs.Create(tmp)
	if err != nil {
		return nil, s.wrap(err, name)
	}
	return &fileWriter{fs: s, f: f, tmp: tmp, name: name}, nil
}

// fileWriter writes next to the target and renames over it on Close, so a
// reader never sees a half written file.
type fileWriter struct {
	fs   *FS
	f    afero.File
	tmp  string
	name string
	done bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.f.Close(); err != nil {
		_ = w.fs.fs.Remove(w.tmp)
		return w.fs.wrap(err, w.name)
	}
	if err := w.fs.fs.Rename(w.tmp, w.name); err != nil {
		// some filesystems refuse to rename over an existing file
		_ = w.fs.fs.Remove(w.name)
		if err := w.fs.fs.Rename(w.tmp, w.name); err != nil {
			_ = w.fs.fs.Remove(w.tmp)
			return w.fs.wrap(err, w.name)
		}
	}
	return nil
}

// CloseWithError drops everything written so far; the target is left as it was.
func (w *fileWriter) CloseWithError(err error) error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	_ = w.fs.fs.Remove(w.tmp)
	log.Debug().Err(err).Str("location", w.fs.URI(w.name)).Msg("discarded write")
	return nil
}

func (s *FS) Stat(_ context.Context, name string) (Info, error) {
	fi, err := s.fs.Stat(name)
	if err != nil {
		return Info{}, s.wrap(err, name)
	}
	if fi.IsDir() {
		return Info{}, errors.Errorf("%s is a directory", s.URI(name))
	}
	return Info{Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *FS) URI(name string) string {
	switch s.scheme {
	case SchemeMemory:
		return SchemeMemory + "://" + Join(s.root, cleanKey(name))
	default:
		if s.root == "" {
			return SchemeFile + "://" + filepath.ToSlash(name)
		}
		return SchemeFile + "://" + filepath.ToSlash(filepath.Join(s.root, name))
	}
}

func (s *FS) wrap(err error, name string) error {
	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(ErrNotExist, s.URI(name))
	}
	return errors.Wrapf(err, "storage %s", s.URI(name))
}
