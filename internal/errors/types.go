// Package errors defines the typed error taxonomy shared by the splitter,
// the verifier and the command layer.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIntegrity  ErrorType = "integrity"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeSourceUnreadable = "ERR_SOURCE_UNREADABLE"
	ErrCodeDestUnwritable   = "ERR_DEST_UNWRITABLE"
	ErrCodePartUnreadable   = "ERR_PART_UNREADABLE"
	ErrCodeInvalidPolicy    = "ERR_INVALID_POLICY"
	ErrCodeNoParts          = "ERR_NO_PARTS"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeUnknownEncoding  = "ERR_UNKNOWN_ENCODING"
	ErrCodeCanceled         = "ERR_CANCELED"
	ErrCodeVerifyFailed     = "ERR_VERIFICATION_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Error is a structured error type with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Path    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "("+strings.Join(kv, " ")+")")
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel values such as ErrNoParts can be
// compared with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext returns a copy of the error with one more context entry. The
// receiver is left untouched, so sentinels can be decorated safely.
func (e *Error) WithContext(key string, value interface{}) *Error {
	c := e.clone()
	c.Context[key] = value

	return c
}

// WithPath returns a copy of the error recording the file it relates to.
func (e *Error) WithPath(path string) *Error {
	c := e.clone()
	c.Path = path

	return c
}

func (e *Error) clone() *Error {
	c := *e
	c.Context = make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		c.Context[k] = v
	}

	return &c
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIntegrityError creates an integrity error.
func NewIntegrityError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeIntegrity,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrNoParts is returned by the verifier when the pattern matches nothing.
var ErrNoParts = NewIntegrityError(ErrCodeNoParts, "no parts matched")

// ErrVerificationFailed is returned by commands whose verification verdict
// is a failure.
var ErrVerificationFailed = NewIntegrityError(ErrCodeVerifyFailed, "verification failed")

// ErrSourceUnreadable creates the error for a source that cannot be opened or read.
func ErrSourceUnreadable(path string, cause error) *Error {
	return NewIOError(ErrCodeSourceUnreadable, "source unreadable", cause).WithPath(path)
}

// ErrDestUnwritable creates the error for a destination that cannot be written.
func ErrDestUnwritable(path string, cause error) *Error {
	return NewIOError(ErrCodeDestUnwritable, "destination unwritable", cause).WithPath(path)
}

// ErrPartUnreadable creates the error recorded against a part the verifier could not read.
func ErrPartUnreadable(path string, cause error) *Error {
	return NewIOError(ErrCodePartUnreadable, "part unreadable", cause).WithPath(path)
}

// ErrInvalidPolicy creates a policy validation error.
func ErrInvalidPolicy(message string) *Error {
	return NewValidationError(ErrCodeInvalidPolicy, message)
}

// ErrUnknownEncoding creates the error for an encoding name that cannot be resolved.
func ErrUnknownEncoding(name string) *Error {
	return NewValidationError(ErrCodeUnknownEncoding, "unknown encoding: "+name)
}
