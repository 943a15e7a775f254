package tools

import "errors"

// Sentinels for registration problems.
var (
	ErrToolNameEmpty         = errors.New("tool has no name")
	ErrToolExecuteNil        = errors.New("tool has no execute function")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)

// Sentinels for dispatch problems. Dispatch wraps each with the
// offending tool or argument name; match with errors.Is.
var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrMissingRequiredArg = errors.New("missing required argument")
	ErrUnknownArg         = errors.New("unknown argument")
	ErrInvalidArgType     = errors.New("invalid argument type")
)
