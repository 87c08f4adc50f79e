package core

import "errors"

// Error codes for protocol-level errors.
const (
	ErrCodeDuplicateUsername = "duplicate_username"
	ErrCodeNotAuthenticated  = "not_authenticated"
	ErrCodeInvalidSession    = "invalid_session"
	ErrCodeBadFrame          = "bad_frame"
	ErrCodeUnknownKind       = "unknown_kind"
)

// ErrDuplicateUsername is returned by SessionRegistry.Create when the
// username is already claimed by a live session.
var ErrDuplicateUsername = errors.New("username already taken")

// CoreError wraps a code and the human-readable message placed on the wire.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
