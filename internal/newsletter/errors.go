package newsletter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by lookups that match zero records.
	ErrNotFound = errors.New("newsletter: contact not found")
	// ErrAmbiguous is returned by lookups that match more than one record.
	// Email and token carry unique constraints, so this signals a corrupted
	// store rather than a routine miss.
	ErrAmbiguous = errors.New("newsletter: more than one contact matched")
	// ErrDuplicate is returned when an insert hits the unique constraint on
	// email or token. Registration folds this into its idempotent no-op path.
	ErrDuplicate = errors.New("newsletter: contact already exists")
)

// ValidationError reports malformed caller input: a bad e-mail address, an
// oversized field, or an unparsable retention interval. It is always surfaced
// with its message and never silently corrected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
