/*
errors.go - Error types for the incentive engine

ERROR CATEGORIES:
  1. Soft errors - Missing or unparsable fields. Never reach the caller of
     Evaluate; the resolver defaults them to zero.
  2. Per-scheme errors - A malformed scheme definition. The scheme is
     dropped from the result set and the rest of the batch proceeds.

There are no fatal errors inside the engine.

USAGE:
  if errors.Is(err, incentive.ErrMalformedScheme) {
      var mse *incentive.MalformedSchemeError
      errors.As(err, &mse)
      log.Warn(mse.SchemeID, mse.Reason)
  }
*/
package incentive

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingField is returned when no candidate column holds a value.
	ErrMissingField = errors.New("missing field")

	// ErrUnparsableNumeric is returned when a value is present but is not a number.
	ErrUnparsableNumeric = errors.New("unparsable numeric value")

	// ErrMalformedScheme is returned when a scheme cannot be evaluated as configured.
	ErrMalformedScheme = errors.New("malformed scheme")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError carries the logical field behind a soft error.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v (%q)", e.Field, e.Err, e.Raw)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// MalformedSchemeError explains why a scheme was skipped.
type MalformedSchemeError struct {
	SchemeID SchemeID
	Reason   string
}

func (e *MalformedSchemeError) Error() string {
	return fmt.Sprintf("malformed scheme %q: %s", e.SchemeID, e.Reason)
}

func (e *MalformedSchemeError) Unwrap() error {
	return ErrMalformedScheme
}

func malformed(id SchemeID, format string, args ...any) error {
	return &MalformedSchemeError{SchemeID: id, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsSoft returns true for errors the engine defaults away instead of reporting.
func IsSoft(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrUnparsableNumeric)
}
