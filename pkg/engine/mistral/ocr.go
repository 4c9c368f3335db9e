package mistral

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/engine/mistral/api"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

// OCRProgress reports how far an OCR run got.
type OCRProgress struct {
	Message string
	// Percent is -1 when the update carries no progress value.
	Percent int
}

// OCR extracts the text of each attachment into a markdown file stored in
// dst. Stored files land next to their name with a .md extension, remote
// ones under ocr/. Attachments that fail are reported and skipped; the
// error is only returned when nothing could be extracted.
func (e *Engine) OCR(
	ctx context.Context,
	atts []*attachment.Attachment,
	dst storage.Storage,
	progress func(OCRProgress),
) ([]*attachment.Attachment, error) {
	if len(atts) == 0 {
		return nil, errors.New("no attachments for OCR processing")
	}
	report := func(msg string, percent int) {
		log.Debug().Str("provider", ProviderID).Int("percent", percent).Msg(msg)
		if progress != nil {
			progress(OCRProgress{Message: msg, Percent: percent})
		}
	}

	var ret []*attachment.Attachment
	var lastErr error
	for i, a := range atts {
		if err := ctx.Err(); err != nil {
			return ret, err
		}
		report(fmt.Sprintf("Processing attachment %d/%d: %s", i+1, len(atts), a.Name), 100*i/len(atts))

		out, err := e.ocrOne(ctx, a, dst)
		if err != nil {
			lastErr = err
			report(fmt.Sprintf("Error processing attachment %s: %v", a.Name, err), -1)
			continue
		}
		report(fmt.Sprintf("OCR completed for %s. Saved to %s", a.Name, out.URI()), -1)
		ret = append(ret, out)
	}
	report(fmt.Sprintf("OCR completed for %d of %d attachments", len(ret), len(atts)), 100)

	if len(ret) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return ret, nil
}

func (e *Engine) ocrOne(ctx context.Context, a *attachment.Attachment, dst storage.Storage) (*attachment.Attachment, error) {
	client := e.Client()
	doc := api.OCRDocument{Type: api.ContentTypeDocumentURL}
	var name string

	if a.Kind == attachment.KindURL {
		doc.DocumentURL = a.Location
		name = path.Join("ocr", strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15:04:05.000000"), ":", "-")+".md")
	} else {
		r, err := a.Open(ctx)
		if err != nil {
			return nil, err
		}
		f, err := client.UploadFile(ctx, a.Name, r, api.PurposeOCR)
		_ = r.Close()
		if err != nil {
			return nil, err
		}
		if doc.DocumentURL, err = client.SignedURL(ctx, f.ID); err != nil {
			return nil, err
		}
		name = strings.TrimSuffix(a.Location, path.Ext(a.Location)) + ".md"
	}

	resp, err := client.OCR(ctx, &api.OCRRequest{Document: doc, IncludeImageBase64: true})
	if err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, errors.Errorf("no text extracted from %s", a.Name)
	}

	w, err := dst.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := writePages(w, resp.Pages); err != nil {
		_ = storage.Abort(w, err)
		return nil, errors.Wrapf(err, "could not write %s", name)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := attachment.NewFile(dst, name)
	out.SetMimeType("text/markdown")
	return out, nil
}

func writePages(w io.Writer, pages []api.OCRPage) error {
	for i, p := range pages {
		if _, err := fmt.Fprintf(w, "%s\n\n_----------_%d\n\n", p.Markdown, i+1); err != nil {
			return err
		}
	}
	return nil
}
