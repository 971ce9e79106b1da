package core

// Error codes for rejections sent back to the originating connection.
const (
	ErrCodeNotFound          = "not_found"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeBadRequest        = "bad_request"
	ErrCodePersistenceFailed = "persistence_failed"
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
