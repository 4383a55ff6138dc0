package engine

import "fmt"

// Error is an error reported by the TLS engine. It carries the engine's
// numeric code and description together with the operation that failed.
type Error struct {
	Op          string // Engine operation ("new_context", "new_session", "feed", ...)
	Code        int    // Engine-specific error code
	Description string // Engine-provided description
	Cause       error  // Underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine error [op=%s, code=%d] %s: %v", e.Op, e.Code, e.Description, e.Cause)
	}
	return fmt.Sprintf("engine error [op=%s, code=%d] %s", e.Op, e.Code, e.Description)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new engine Error.
func NewError(op string, code int, description string, cause error) *Error {
	return &Error{
		Op:          op,
		Code:        code,
		Description: description,
		Cause:       cause,
	}
}
