package attachment

import (
	"context"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-go-golems/basilisk/pkg/security"
	"github.com/go-go-golems/basilisk/pkg/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// URLPattern matches http(s) URLs inside free text.
var URLPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// ExtractURLs returns the URLs found in text, in order, without duplicates.
func ExtractURLs(text string) []string {
	seen := map[string]bool{}
	var ret []string
	for _, m := range URLPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if !seen[m] {
			seen[m] = true
			ret = append(ret, m)
		}
	}
	return ret
}

// Resolve turns a user supplied reference into an attachment. http and https
// references become URL attachments, anything else is a path on the local
// filesystem, typed as an image when its content sniffs as one.
func Resolve(ctx context.Context, reference string) (*Attachment, error) {
	if u, err := url.Parse(reference); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if err := security.ValidateAttachmentURL(reference); err != nil {
			return nil, errors.Wrapf(err, "invalid attachment url %s", reference)
		}
		a := NewURL(reference)
		log.Debug().Object("attachment", a).Msg("resolved url attachment")
		return a, nil
	}

	abs, err := filepath.Abs(reference)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve path %s", reference)
	}
	return ResolveIn(ctx, storage.NewLocal(), abs)
}

// ResolveIn builds a file or image attachment for a location in st.
func ResolveIn(ctx context.Context, st storage.Storage, location string) (*Attachment, error) {
	info, err := st.Stat(ctx, location)
	if err != nil {
		return nil, err
	}

	a := NewFile(st, location)
	a.SetSize(info.Size)
	mt, err := a.MimeType(ctx)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(mt, "image/") {
		a.Kind = KindImage
	}
	log.Debug().Object("attachment", a).Msg("resolved attachment")
	return a, nil
}

// CheckFormat fails with a CapabilityError when the attachment mime type is
// not in allowed.
func CheckFormat(ctx context.Context, provider string, a *Attachment, allowed []string) (string, error) {
	mt, err := a.MimeType(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range allowed {
		if f == mt {
			return mt, nil
		}
	}
	return "", &CapabilityError{Provider: provider, MimeType: mt, Allowed: allowed}
}
