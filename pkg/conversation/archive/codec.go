package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

// Extension is the file extension of conversation archives.
const Extension = ".bskc"

const (
	attachmentsDir = "attachments"
	maxParallelIO  = 4
	maxManifestLen = 64 << 20
)

type embed struct {
	entry string
	att   *attachment.Attachment
	store bool
}

// Save writes conv as a zip archive: the manifest plus a copy of every
// stored file and image attachment. URL attachments keep their URI.
func Save(ctx context.Context, conv *conversation.Conversation, w io.Writer) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if err := conv.Validate(); err != nil {
		return err
	}
	if err := resolveMetadata(ctx, conv); err != nil {
		return err
	}

	m, embeds := buildManifest(ctx, conv)
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "could not encode manifest")
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	now := time.Now()
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: now})
	if err != nil {
		return errors.Wrap(err, "could not create manifest entry")
	}
	if _, err := mw.Write(data); err != nil {
		return errors.Wrap(err, "could not write manifest")
	}

	for _, e := range embeds {
		if err := ctx.Err(); err != nil {
			return err
		}
		method := zip.Deflate
		if e.store {
			method = zip.Store
		}
		ew, err := zw.CreateHeader(&zip.FileHeader{Name: e.entry, Method: method, Modified: now})
		if err != nil {
			return errors.Wrapf(err, "could not create entry %s", e.entry)
		}
		if err := copyAttachment(ctx, ew, e.att); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "could not finalize archive")
	}
	log.Debug().
		Int("blocks", len(conv.Messages)).
		Int("systems", len(conv.Systems)).
		Int("embedded", len(embeds)).
		Msg("saved conversation archive")
	return nil
}

// SaveFile saves conv to name in st. The archive is built in memory first so
// a failed save leaves an existing file untouched.
func SaveFile(ctx context.Context, conv *conversation.Conversation, st storage.Storage, name string) error {
	var buf bytes.Buffer
	if err := Save(ctx, conv, &buf); err != nil {
		return err
	}
	w, err := st.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		_ = storage.Abort(w, err)
		return errors.Wrapf(err, "could not write %s", st.URI(name))
	}
	return w.Close()
}

func copyAttachment(ctx context.Context, w io.Writer, a *attachment.Attachment) error {
	r, err := a.Open(ctx)
	if err != nil {
		return errors.Wrapf(err, "could not open attachment %s", a.URI())
	}
	defer func(r io.ReadCloser) {
		_ = r.Close()
	}(r)
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrapf(err, "could not embed attachment %s", a.URI())
	}
	return nil
}

// resolveMetadata fills the mime type, size and image dimension caches of
// every stored attachment so they end up in the manifest.
func resolveMetadata(ctx context.Context, conv *conversation.Conversation) error {
	seen := map[*attachment.Attachment]bool{}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelIO)

	for _, b := range conv.Messages {
		for _, m := range []*conversation.Message{b.Request, b.Response} {
			if m == nil {
				continue
			}
			for _, a := range m.Attachments {
				if a.Kind == attachment.KindURL || seen[a] {
					continue
				}
				seen[a] = true
				a := a
				eg.Go(func() error {
					if _, err := a.MimeType(ctx); err != nil {
						return errors.Wrapf(err, "could not resolve attachment %s", a.URI())
					}
					if _, _, err := a.Size(ctx); err != nil {
						return errors.Wrapf(err, "could not resolve attachment %s", a.URI())
					}
					if a.Kind == attachment.KindImage {
						if _, err := a.Dimensions(ctx); err != nil {
							log.Warn().Err(err).Object("attachment", a).Msg("could not read image dimensions")
						}
					}
					return nil
				})
			}
		}
	}
	return eg.Wait()
}

func buildManifest(ctx context.Context, conv *conversation.Conversation) (*Manifest, []embed) {
	version := conv.Version
	m := &Manifest{
		Messages: make([]Block, 0, len(conv.Messages)),
		Systems:  make([]Message, 0, len(conv.Systems)),
		Title:    conv.Title,
		Version:  &version,
	}
	var embeds []embed

	for _, s := range conv.Systems {
		msg := encodeMessage(ctx, &s.Message, func(int, *attachment.Attachment) string { return "" })
		m.Systems = append(m.Systems, msg)
	}

	for bi, b := range conv.Messages {
		entryFor := func(part string) func(int, *attachment.Attachment) string {
			return func(ai int, a *attachment.Attachment) string {
				name := fmt.Sprintf("%s/%d-%s-%d/%s", attachmentsDir, bi, part, ai, entryBase(a))
				embeds = append(embeds, embed{entry: name, att: a, store: a.IsImage()})
				return name
			}
		}

		block := Block{
			Model:       b.Model,
			SystemIndex: b.SystemIndex,
			Temperature: b.Temperature,
			TopP:        b.TopP,
			MaxTokens:   b.MaxTokens,
			Stream:      b.Stream,
		}
		block.Request = encodeMessage(ctx, b.Request, entryFor("request"))
		if b.Response != nil {
			resp := encodeMessage(ctx, b.Response, entryFor("response"))
			block.Response = &resp
		}
		m.Messages = append(m.Messages, block)
	}
	return m, embeds
}

func encodeMessage(
	ctx context.Context,
	msg *conversation.Message,
	entryFor func(int, *attachment.Attachment) string,
) Message {
	ret := Message{
		Role:        string(msg.Role),
		Content:     msg.Content,
		Attachments: make([]Attachment, 0, len(msg.Attachments)),
	}
	if msg.Citations != nil {
		ret.Citations = make([]map[string]interface{}, 0, len(msg.Citations))
		for _, c := range msg.Citations {
			ret.Citations = append(ret.Citations, c)
		}
	}

	for i, a := range msg.Attachments {
		wa := Attachment{
			Type:        string(a.Kind),
			Location:    a.Location,
			Name:        a.Name,
			Description: a.Description,
		}
		if mt, err := a.MimeType(ctx); err == nil {
			wa.MimeType = mt
		}
		if a.Kind != attachment.KindURL {
			wa.Location = entryFor(i, a)
			if size, known, err := a.Size(ctx); err == nil && known {
				wa.Size = &size
			}
		}
		if a.IsImage() {
			if d, err := a.Dimensions(ctx); err == nil {
				wa.Dimensions = &Dimensions{Width: d.Width, Height: d.Height}
			}
		}
		ret.Attachments = append(ret.Attachments, wa)
	}
	return ret
}

func entryBase(a *attachment.Attachment) string {
	name := a.Name
	if name == "" {
		name = path.Base(strings.ReplaceAll(a.Location, "\\", "/"))
	}
	name = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		name = "attachment"
	}
	return name
}

// Open reads an archive and extracts its embedded attachments into dst
// under prefix. An empty prefix picks a fresh random directory so that
// repeated opens never overwrite each other.
func Open(
	ctx context.Context,
	r io.ReaderAt,
	size int64,
	dst storage.Storage,
	prefix string,
) (*conversation.Conversation, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &BadArchiveError{Reason: "not a zip container", Err: err}
	}
	zr.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	mf, ok := entries[ManifestName]
	if !ok {
		return nil, &BadArchiveError{Reason: "missing " + ManifestName}
	}
	data, err := readEntry(mf)
	if err != nil {
		return nil, err
	}

	if err := validateManifest(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &conversation.ValidationError{Field: ManifestName, Reason: err.Error()}
	}

	if prefix == "" {
		prefix = uuid.NewString()
	}
	d := &decoder{entries: entries, dst: dst, prefix: prefix}
	conv, err := d.conversation(&m)
	if err != nil {
		return nil, err
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	if err := d.extract(ctx); err != nil {
		return nil, err
	}

	log.Debug().
		Int("blocks", len(conv.Messages)).
		Int("extracted", len(d.jobs)).
		Str("prefix", prefix).
		Msg("opened conversation archive")
	return conv, nil
}

// OpenFile reads the archive name from src.
func OpenFile(
	ctx context.Context,
	src storage.Storage,
	name string,
	dst storage.Storage,
	prefix string,
) (*conversation.Conversation, error) {
	data, err := storage.ReadFile(ctx, src, name)
	if err != nil {
		return nil, err
	}
	return Open(ctx, bytes.NewReader(data), int64(len(data)), dst, prefix)
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxManifestLen {
		return nil, &BadArchiveError{Reason: fmt.Sprintf("%s too large", f.Name)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &BadArchiveError{Reason: "unreadable " + f.Name, Err: err}
	}
	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(rc)
	data, err := io.ReadAll(io.LimitReader(rc, maxManifestLen))
	if err != nil {
		return nil, &BadArchiveError{Reason: "unreadable " + f.Name, Err: err}
	}
	return data, nil
}

type extractJob struct {
	entry *zip.File
	dest  string
}

type decoder struct {
	entries map[string]*zip.File
	dst     storage.Storage
	prefix  string
	jobs    []extractJob
}

func (d *decoder) conversation(m *Manifest) (*conversation.Conversation, error) {
	conv := conversation.New()
	conv.Title = m.Title
	if m.Version != nil {
		conv.Version = *m.Version
	}

	for i, s := range m.Systems {
		if s.Role != string(conversation.RoleSystem) {
			return nil, &conversation.ValidationError{
				Field:  fmt.Sprintf("systems[%d].role", i),
				Reason: fmt.Sprintf("expected %q, got %q", conversation.RoleSystem, s.Role),
			}
		}
		if len(s.Attachments) > 0 {
			return nil, &conversation.ValidationError{
				Field:  fmt.Sprintf("systems[%d].attachments", i),
				Reason: "system messages cannot carry attachments",
			}
		}
		conv.Systems = append(conv.Systems, conversation.NewSystemMessage(s.Content))
	}

	for i := range m.Messages {
		wb := &m.Messages[i]
		req, err := d.message(&wb.Request)
		if err != nil {
			return nil, err
		}
		b := &conversation.MessageBlock{
			Request:     req,
			Model:       wb.Model,
			SystemIndex: wb.SystemIndex,
			Temperature: wb.Temperature,
			TopP:        wb.TopP,
			MaxTokens:   wb.MaxTokens,
			Stream:      wb.Stream,
		}
		if wb.Response != nil {
			if b.Response, err = d.message(wb.Response); err != nil {
				return nil, err
			}
		}
		conv.Messages = append(conv.Messages, b)
	}
	return conv, nil
}

func (d *decoder) message(wm *Message) (*conversation.Message, error) {
	role, err := conversation.ParseRole(wm.Role)
	if err != nil {
		return nil, err
	}
	msg := &conversation.Message{Role: role, Content: wm.Content}
	if wm.Citations != nil {
		msg.Citations = make([]conversation.Citation, 0, len(wm.Citations))
		for _, c := range wm.Citations {
			msg.Citations = append(msg.Citations, c)
		}
	}
	for i := range wm.Attachments {
		a, err := d.attachment(&wm.Attachments[i])
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, a)
	}
	return msg, nil
}

func (d *decoder) attachment(wa *Attachment) (*attachment.Attachment, error) {
	kind, err := attachment.ParseKind(wa.Type)
	if err != nil {
		return nil, &conversation.ValidationError{Field: "attachment.type", Reason: err.Error()}
	}

	var a *attachment.Attachment
	switch kind {
	case attachment.KindURL:
		a = attachment.NewURL(wa.Location)
	case attachment.KindFile, attachment.KindImage:
		if !safeEntryName(wa.Location) {
			return nil, &BadArchiveError{Reason: fmt.Sprintf("unsafe attachment path %q", wa.Location)}
		}
		entry, ok := d.entries[wa.Location]
		if !ok {
			return nil, &BadArchiveError{Reason: fmt.Sprintf("missing attachment entry %s", wa.Location)}
		}
		dest := storage.Join(d.prefix, wa.Location)
		d.jobs = append(d.jobs, extractJob{entry: entry, dest: dest})
		if kind == attachment.KindImage {
			a = attachment.NewImage(d.dst, dest)
		} else {
			a = attachment.NewFile(d.dst, dest)
		}
		if wa.Size != nil {
			a.SetSize(*wa.Size)
		}
	}

	if wa.Name != "" {
		a.Name = wa.Name
	}
	a.Description = wa.Description
	if wa.MimeType != "" {
		a.SetMimeType(wa.MimeType)
	}
	if wa.Dimensions != nil {
		a.SetDimensions(attachment.Dimensions{Width: wa.Dimensions.Width, Height: wa.Dimensions.Height})
	}
	return a, nil
}

func (d *decoder) extract(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelIO)
	for _, job := range d.jobs {
		job := job
		eg.Go(func() error {
			return d.extractOne(ctx, job)
		})
	}
	return eg.Wait()
}

func (d *decoder) extractOne(ctx context.Context, job extractJob) error {
	rc, err := job.entry.Open()
	if err != nil {
		return &BadArchiveError{Reason: "unreadable " + job.entry.Name, Err: err}
	}
	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(rc)

	w, err := d.dst.Create(ctx, job.dest)
	if err != nil {
		return errors.Wrapf(err, "could not extract %s", job.entry.Name)
	}
	if _, err := io.Copy(w, rc); err != nil {
		_ = storage.Abort(w, err)
		return &BadArchiveError{Reason: "corrupt entry " + job.entry.Name, Err: err}
	}
	return w.Close()
}

func safeEntryName(name string) bool {
	if name == "" || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return false
	}
	if path.Clean(name) != name {
		return false
	}
	return name != ".." && !strings.HasPrefix(name, "../")
}
