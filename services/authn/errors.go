package authn

// Code is the stable error code surfaced to clients. Security-sensitive
// failures share generic messages so callers cannot tell which check
// failed.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeConflict     Code = "CONFLICT"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeNotFound     Code = "NOT_FOUND"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrInvalidCredentials    = &Error{Code: CodeUnauthorized, Message: "invalid credentials"}
	ErrInvalidRefreshToken   = &Error{Code: CodeUnauthorized, Message: "invalid refresh token"}
	ErrRefreshTokenExpired   = &Error{Code: CodeUnauthorized, Message: "refresh token expired"}
	ErrPlatformMismatch      = &Error{Code: CodeUnauthorized, Message: "platform mismatch"}
	ErrReuseDetected         = &Error{Code: CodeConflict, Message: "refresh token reuse detected"}
	ErrInvalidPlatform       = &Error{Code: CodeBadRequest, Message: "platform must be web or mobile"}
	ErrDeviceIDRequired      = &Error{Code: CodeBadRequest, Message: "deviceId is required for mobile logins"}
	ErrSessionAlreadyRevoked = &Error{Code: CodeBadRequest, Message: "session already revoked"}
	ErrSessionNotFound       = &Error{Code: CodeNotFound, Message: "session not found"}
)
