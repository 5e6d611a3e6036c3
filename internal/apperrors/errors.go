package apperrors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func AuthFailure(msg string) error {
	return New(CodeAuthFailure, msg)
}

func Transient(msg string, cause error) error {
	return Wrap(CodeTransient, msg, cause)
}

func Fatal(msg string) error {
	return New(CodeFatal, msg)
}

// CodeOf 取出错误携带的分类码；无法识别时返回 CodeUnknown
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is 判断错误是否属于某个分类
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
