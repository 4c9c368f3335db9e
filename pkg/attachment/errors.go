package attachment

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotImage              = errors.New("attachment is not a decodable image")
	ErrCapability            = errors.New("attachment format not supported by provider")
	ErrDimensionsUnavailable = errors.New("dimensions of a remote image are unknown until it is fetched")
)

// NotImageError is returned when an image attachment cannot be decoded.
type NotImageError struct {
	Location string
	Err      error
}

func (e *NotImageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Location, ErrNotImage.Error())
	}
	return fmt.Sprintf("%s: %s: %v", e.Location, ErrNotImage.Error(), e.Err)
}

func (e *NotImageError) Is(target error) bool {
	return target == ErrNotImage
}

func (e *NotImageError) Unwrap() error {
	return e.Err
}

// CapabilityError reports an attachment whose mime type a provider does not accept.
type CapabilityError struct {
	Provider string
	MimeType string
	Allowed  []string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %q attachments (supported: %s)",
		e.Provider, e.MimeType, strings.Join(e.Allowed, ", "))
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability
}
