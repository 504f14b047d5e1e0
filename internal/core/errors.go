package core

// Error codes for protocol-level errors reported back to the originating
// connection. None of these terminate the connection.
const (
	ErrCodeUnauthenticated    = "unauthenticated"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeMalformedEvent     = "malformed_event"
	ErrCodePersistenceFailure = "persistence_failure"
	ErrCodeRateLimited        = "rate_limited"
)

// CoreError wraps a code and human-readable message.
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
