package model

// ErrorType is the classification bucket for error-severity events.
// ErrorType 是错误级别事件的分类类别。
type ErrorType string

const (
	ErrorTypeConnection     ErrorType = "CONNECTION_ERROR"
	ErrorTypeTimeout        ErrorType = "TIMEOUT_ERROR"
	ErrorTypeMemory         ErrorType = "MEMORY_ERROR"
	ErrorTypeDatabase       ErrorType = "DATABASE_ERROR"
	ErrorTypePermission     ErrorType = "PERMISSION_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeServer         ErrorType = "SERVER_ERROR"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeUnknown        ErrorType = "UNKNOWN_ERROR"
)
