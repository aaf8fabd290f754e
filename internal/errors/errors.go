package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Auth errors (AUTH-001 to AUTH-099)
	ErrCodeAuthInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeAuthNoSession          ErrorCode = "AUTH-002"
	ErrCodeAuthSessionExpired     ErrorCode = "AUTH-003"
	ErrCodeAuthRefreshFailed      ErrorCode = "AUTH-004"
	ErrCodeAuthExchangeFailed     ErrorCode = "AUTH-005"
	ErrCodeAuthSignUpFailed       ErrorCode = "AUTH-006"
	ErrCodeAuthProfileIncomplete  ErrorCode = "AUTH-007"

	// Data errors (DATA-001 to DATA-099)
	ErrCodeDataQueryFailed ErrorCode = "DATA-001"
	ErrCodeDataNotFound    ErrorCode = "DATA-002"
	ErrCodeDataInvalid     ErrorCode = "DATA-003"
	ErrCodeDataWriteFailed ErrorCode = "DATA-004"
	ErrCodeDataUpload      ErrorCode = "DATA-005"

	// News errors (NEWS-001 to NEWS-099)
	ErrCodeNewsFetchFailed ErrorCode = "NEWS-001"
	ErrCodeNewsConfig      ErrorCode = "NEWS-002"

	// Assistant errors (AI-001 to AI-099)
	ErrCodeAIBadRequest    ErrorCode = "AI-001"
	ErrCodeAIUnauthorized  ErrorCode = "AI-002"
	ErrCodeAIModelNotFound ErrorCode = "AI-003"
	ErrCodeAIRateLimit     ErrorCode = "AI-004"
	ErrCodeAIUnavailable   ErrorCode = "AI-005"
	ErrCodeAIEmptyResponse ErrorCode = "AI-006"
	ErrCodeAIConfig        ErrorCode = "AI-007"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigMissing ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeCredentialStore ErrorCode = "IO-004"
)

// Error is a coded error with optional suggestions for the user
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Is is errors.Is, re-exported so callers need only one errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As, re-exported so callers need only one errors import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an *Error with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &Error{Code: code})
}

// Common error constructors for frequently used errors

// NewNoSessionError is returned when an operation needs a signed-in user
func NewNoSessionError() *Error {
	return New(ErrCodeAuthNoSession, "not signed in").
		WithSuggestion("Run 'tasksync auth signin' to sign in").
		WithSuggestion("Run 'tasksync auth signup' to create an account")
}

// NewInvalidCredentialsError wraps a rejected sign-in
func NewInvalidCredentialsError(cause error) *Error {
	return Wrap(ErrCodeAuthInvalidCredentials, "invalid email or password", cause).
		WithSuggestion("Check the email address and password").
		WithSuggestion("Reset your password from the sign-in screen if you forgot it")
}

// NewProfileIncompleteError is returned when onboarding has not been finished
func NewProfileIncompleteError() *Error {
	return New(ErrCodeAuthProfileIncomplete, "profile is incomplete").
		WithSuggestion("Run 'tasksync profile save --first-name <name> --last-name <name>'")
}

// NewQueryError wraps a failed read against a backend table
func NewQueryError(table string, cause error) *Error {
	return Wrap(ErrCodeDataQueryFailed, fmt.Sprintf("failed to load %s", table), cause)
}

// NewWriteError wraps a failed write against a backend table
func NewWriteError(table string, cause error) *Error {
	return Wrap(ErrCodeDataWriteFailed, fmt.Sprintf("failed to save %s", table), cause)
}

// NewNotFoundError reports a missing row
func NewNotFoundError(table, id string) *Error {
	return New(ErrCodeDataNotFound, fmt.Sprintf("%s not found: %s", table, id))
}

// NewInvalidError reports a record that failed local validation
func NewInvalidError(details string) *Error {
	return New(ErrCodeDataInvalid, details)
}

// NewConfigMissingError reports a required configuration key that is unset
func NewConfigMissingError(key, env string) *Error {
	return New(ErrCodeConfigMissing, fmt.Sprintf("missing configuration: %s", key)).
		WithSuggestion(fmt.Sprintf("Set the %s environment variable", env)).
		WithSuggestion(fmt.Sprintf("Run 'tasksync config path' and add %s to the config file", key))
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *Error {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}
