package attachment

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Dimensions returns the pixel size of an image attachment, decoding the
// header once and caching the result. Remote images report
// ErrDimensionsUnavailable until SetDimensions is called.
func (a *Attachment) Dimensions(ctx context.Context) (Dimensions, error) {
	if d, ok := a.cachedDimensions(); ok {
		return d, nil
	}
	switch a.Kind {
	case KindURL:
		return Dimensions{}, ErrDimensionsUnavailable
	case KindFile:
		return Dimensions{}, &NotImageError{Location: a.URI()}
	}

	r, err := a.Open(ctx)
	if err != nil {
		return Dimensions{}, err
	}
	defer func(r io.ReadCloser) {
		_ = r.Close()
	}(r)

	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return Dimensions{}, &NotImageError{Location: a.URI(), Err: err}
	}
	d := Dimensions{Width: cfg.Width, Height: cfg.Height}
	a.SetDimensions(d)
	return d, nil
}

// ResizeOptions bound an image before it is sent to a provider.
type ResizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Resize returns the image content scaled down to fit the bounds along with
// its mime type. Images already within bounds are returned unchanged.
func (a *Attachment) Resize(ctx context.Context, opts ResizeOptions) ([]byte, string, error) {
	if !a.IsImage() || a.Kind == KindURL {
		return nil, "", &NotImageError{Location: a.URI()}
	}
	data, err := a.ReadAll(ctx)
	if err != nil {
		return nil, "", err
	}
	mt, err := a.MimeType(ctx)
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", &NotImageError{Location: a.URI(), Err: err}
	}
	b := img.Bounds()
	if (opts.MaxWidth <= 0 || b.Dx() <= opts.MaxWidth) && (opts.MaxHeight <= 0 || b.Dy() <= opts.MaxHeight) {
		return data, mt, nil
	}

	maxW, maxH := opts.MaxWidth, opts.MaxHeight
	if maxW <= 0 {
		maxW = b.Dx()
	}
	if maxH <= 0 {
		maxH = b.Dy()
	}
	resized := imaging.Fit(img, maxW, maxH, imaging.Lanczos)

	format, outType := imaging.PNG, "image/png"
	var encodeOpts []imaging.EncodeOption
	switch mt {
	case "image/jpeg":
		format, outType = imaging.JPEG, "image/jpeg"
		if opts.Quality > 0 {
			encodeOpts = append(encodeOpts, imaging.JPEGQuality(opts.Quality))
		}
	case "image/gif":
		format, outType = imaging.GIF, "image/gif"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, encodeOpts...); err != nil {
		return nil, "", errors.Wrapf(err, "could not encode resized %s", a.URI())
	}
	return buf.Bytes(), outType, nil
}
