package store

import "errors"

// Sentinel errors for classifying store failures with errors.Is.
var (
	ErrUnknownSource     = errors.New("unknown source")
	ErrMissingFields     = errors.New("missing required fields")
	ErrMissingKey        = errors.New("missing primary key fields")
	ErrNoPrimaryKey      = errors.New("no primary key defined")
	ErrNoUpdatableFields = errors.New("no updatable fields provided")
	ErrNotFound          = errors.New("no matching row")
	ErrInvalidStatement  = errors.New("invalid statement")
	ErrQueryFailed       = errors.New("query failed")
)

// Error is a store operation failure carrying the user-facing message
// that tools surface verbatim, plus the offending field names when the
// failure is about fields.
type Error struct {
	Message string
	Missing []string
	err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.err }

func newError(sentinel error, message string, missing ...string) *Error {
	return &Error{Message: message, Missing: missing, err: sentinel}
}

// AsError extracts a *Error from err, or wraps a plain error so callers
// always get a message plus optional field list.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Message: err.Error(), err: err}
}
