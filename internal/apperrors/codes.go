package apperrors

type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeAuthFailure     Code = "AUTH_FAILURE"
	CodeTransient       Code = "TRANSIENT"
	CodeFatal           Code = "FATAL"
)
