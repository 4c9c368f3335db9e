package archive

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrBadArchive = errors.New("not a valid conversation archive")

// BadArchiveError is returned by Open when the container itself is broken:
// not a zip, no manifest, missing or unsafe entries.
type BadArchiveError struct {
	Reason string
	Err    error
}

func (e *BadArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrBadArchive.Error(), e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrBadArchive.Error(), e.Reason)
}

func (e *BadArchiveError) Is(target error) bool {
	return target == ErrBadArchive
}

func (e *BadArchiveError) Unwrap() error {
	return e.Err
}
