package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the caller-visible failure categories
type ErrorType string

const (
	ErrorTypeInvalidImage ErrorType = "invalid_image"
	ErrorTypeAPI          ErrorType = "api_error"
	ErrorTypeParse        ErrorType = "parse_error"
	ErrorTypeUnknown      ErrorType = "unknown_error"
	ErrorTypeServer       ErrorType = "server_error"
)

var knownTypes = map[ErrorType]struct{}{
	ErrorTypeInvalidImage: {},
	ErrorTypeAPI:          {},
	ErrorTypeParse:        {},
	ErrorTypeUnknown:      {},
	ErrorTypeServer:       {},
}

// ParseErrorType maps a declared type string onto the taxonomy
func ParseErrorType(s string) (ErrorType, bool) {
	t := ErrorType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := knownTypes[t]
	return t, ok
}

// AppError represents a classified application error
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidImageError creates an error for payloads that cannot be decoded
func NewInvalidImageError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInvalidImage, Message: message, Cause: cause}
}

// NewAPIError creates an error for failed model calls
func NewAPIError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeAPI, Message: message, Cause: cause}
}

// NewParseError creates an error for unrecoverable model output
func NewParseError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeParse, Message: message, Cause: cause}
}

// IsType checks if the error chain carries an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// TypeOf returns the structural type of err when it carries an AppError and
// otherwise falls back to ClassifyMessage.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage guesses a category from an error message.
//
// This is a best-effort safety net for failures that escaped the structural
// classification of the pipeline stages. Chinese and English terms are both
// checked; the lists are not meant to be exhaustive.
func ClassifyMessage(message string) ErrorType {
	lowered := strings.ToLower(message)

	switch {
	case strings.Contains(message, "图片") || strings.Contains(lowered, "image") || strings.Contains(lowered, "decode"):
		return ErrorTypeInvalidImage
	case strings.Contains(lowered, "ocr"):
		return ErrorTypeParse
	case strings.Contains(message, "网络") || strings.Contains(message, "连接") ||
		strings.Contains(lowered, "network") || strings.Contains(lowered, "connection"):
		return ErrorTypeAPI
	default:
		return ErrorTypeServer
	}
}
