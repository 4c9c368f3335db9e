package conversation

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation    = errors.New("conversation validation failed")
	ErrBlockNotFound = errors.New("message block not found in conversation")
)

// ValidationError reports data that breaks a conversation invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid conversation: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field string, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
