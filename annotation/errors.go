package annotation

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError is returned when bounding box or annotation can't be constructed from given values.
// It is never corrected silently: callers receive it as is.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func newValidationError(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsValidationError reports whether err (or any error it wraps) is ValidationError
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
