package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("restore")

	require.NoError(t, WriteFile(ctx, s, "attachments/0-request-0/notes.txt", []byte("hello")))

	data, err := ReadFile(ctx, s, "attachments/0-request-0/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := s.Stat(ctx, "attachments/0-request-0/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	assert.Equal(t, "memory://restore/attachments/0-request-0/notes.txt", s.URI("attachments/0-request-0/notes.txt"))
}

func TestMissingLocation(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("empty")

	_, err := s.Open(ctx, "nope.txt")
	require.Error(t, err)
	assert.True(t, IsNotExist(err))

	_, err = s.Stat(ctx, "nope.txt")
	assert.True(t, IsNotExist(err))
}

func TestLocalAbsolutePaths(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o600))

	s := NewLocal()
	data, err := ReadFile(ctx, s, p)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, "file://"+filepath.ToSlash(p), s.URI(p))
}

func TestLocalDirCreatesParents(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalDir(dir)

	require.NoError(t, WriteFile(ctx, s, "x/y/z.bin", []byte{1, 2, 3}))
	_, err := os.Stat(filepath.Join(dir, "x", "y", "z.bin"))
	require.NoError(t, err)
}

func TestJoinAndKeys(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("a", "", "b/c"))
	assert.Equal(t, "x.txt", cleanKey("../../x.txt"))

	s := &S3{bucket: "bucket", prefix: cleanKey("/convs/")}
	assert.Equal(t, "convs/a/b.png", s.key("/a/b.png"))
	assert.Equal(t, "s3://bucket/convs/a/b.png", s.URI("a/b.png"))
}

func TestAbortKeepsPreviousContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalDir(dir)
	require.NoError(t, WriteFile(ctx, s, "chat.bskc", []byte("old")))

	w, err := s.Create(ctx, "chat.bskc")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)
	require.NoError(t, Abort(w, errors.New("boom")))

	data, err := ReadFile(ctx, s, "chat.bskc")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateCommitsOnClose(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("m")
	require.NoError(t, WriteFile(ctx, s, "a/b.txt", []byte("first")))

	w, err := s.Create(ctx, "a/b.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("second"))
	require.NoError(t, err)

	data, err := ReadFile(ctx, s, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, w.Close())
	data, err = ReadFile(ctx, s, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestS3WriterAbortFailsUpload(t *testing.T) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	seen := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(pr)
		seen <- err
		w.done <- err
	}()

	_, err := w.Write([]byte("partial"))
	require.NoError(t, err)
	boom := errors.New("boom")
	require.NoError(t, Abort(w, boom))
	assert.Equal(t, boom, <-seen)
}
