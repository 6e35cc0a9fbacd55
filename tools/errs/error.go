package errs

// 错误码分段：1xx 鉴权，2xx 校验，3xx 限流，4xx 存储，5xx 内部
const (
	AuthenticationErrorCode = 101
	ValidationErrorCode     = 201
	RateLimitExceededCode   = 301
	PersistenceErrorCode    = 401
	ServerInternalError     = 500
)

var (
	ErrAuthentication    = NewCodeError(AuthenticationErrorCode, "authentication failed")
	ErrTokenExpired      = NewCodeError(AuthenticationErrorCode, "token invalid or expired")
	ErrValidation        = NewCodeError(ValidationErrorCode, "invalid payload")
	ErrRateLimitExceeded = NewCodeError(RateLimitExceededCode, "Rate limit exceeded. Please wait before sending another message.")
	ErrPersistence       = NewCodeError(PersistenceErrorCode, "persistence failure")
	ErrInternal          = NewCodeError(ServerInternalError, "internal server error")
)
