// Package errs holds the error taxonomy shared by storage, services and
// transports. Callers match with errors.Is; storage and services wrap these
// with context via fmt.Errorf("...: %w", err).
package errs

import "errors"

var (
	// Input or missing-prerequisite errors. Retrying without changes will fail again.
	ErrNotFound            = errors.New("not found")
	ErrInvalidCategory     = errors.New("invalid document category")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	ErrValidation          = errors.New("validation error")

	// Access errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Transient failure of a storage or blob backend; safe to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Retryable reports whether err is a transient failure the caller may retry
// as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// Kind returns a short machine-readable name for the taxonomy member err
// belongs to, or "internal" when it belongs to none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPrerequisiteMissing):
		return "prerequisite_missing"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
