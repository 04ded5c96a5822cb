package service

import (
	"fmt"
	"net/http"
)

// LLMErrorKind classifies provider failures for retry and reporting.
type LLMErrorKind int

const (
	ErrKindTransient  LLMErrorKind = iota // timeouts, 429, 5xx
	ErrKindAuth                           // 401, 403
	ErrKindBadRequest                     // 400, 404, 422
	ErrKindContentFilter
)

func (k LLMErrorKind) String() string {
	switch k {
	case ErrKindTransient:
		return "transient"
	case ErrKindAuth:
		return "auth"
	case ErrKindBadRequest:
		return "bad_request"
	case ErrKindContentFilter:
		return "content_filter"
	default:
		return "unknown"
	}
}

// LLMError is a classified provider failure.
type LLMError struct {
	Kind       LLMErrorKind
	StatusCode int
	Provider   string
	Cause      error
}

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] provider %s returned %d: %v", e.Kind, e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("[%s] provider %s: %v", e.Kind, e.Provider, e.Cause)
}

func (e *LLMError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether trying the same request again may succeed.
func (e *LLMError) Retryable() bool {
	return e.Kind == ErrKindTransient
}

// NewLLMErrorFromStatus classifies a failure by its HTTP status code.
// A zero status means the request never got a response.
func NewLLMErrorFromStatus(provider string, status int, cause error) *LLMError {
	kind := ErrKindTransient
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrKindAuth
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		kind = ErrKindBadRequest
	}
	return &LLMError{Kind: kind, StatusCode: status, Provider: provider, Cause: cause}
}
