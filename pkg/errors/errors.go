package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an AppError for callers and transports.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError is the error type crossing layer boundaries.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

func NewInvalidInputError(message string) *AppError {
	return newError(CodeInvalidInput, message, nil)
}

// NewInvalidInputErrorf formats the message like fmt.Sprintf.
func NewInvalidInputErrorf(format string, args ...interface{}) *AppError {
	return newError(CodeInvalidInput, fmt.Sprintf(format, args...), nil)
}

func NewNotFoundError(message string) *AppError {
	return newError(CodeNotFound, message, nil)
}

func NewAlreadyExistsError(message string) *AppError {
	return newError(CodeAlreadyExists, message, nil)
}

func NewRateLimitedError(message string) *AppError {
	return newError(CodeRateLimited, message, nil)
}

func NewInternalError(message string) *AppError {
	return newError(CodeInternal, message, nil)
}

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return newError(CodeInternal, message, cause)
}

func NewServiceUnavailableError(message string, cause error) *AppError {
	return newError(CodeServiceUnavail, message, cause)
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == CodeNotFound
}

func IsInvalidInput(err error) bool {
	return err != nil && CodeOf(err) == CodeInvalidInput
}

func IsAlreadyExists(err error) bool {
	return err != nil && CodeOf(err) == CodeAlreadyExists
}

func IsRateLimited(err error) bool {
	return err != nil && CodeOf(err) == CodeRateLimited
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
