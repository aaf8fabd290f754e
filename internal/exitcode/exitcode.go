package exitcode

import (
	"context"
	"os"
	"strings"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// DataError indicates a failed read or write against the backend
	DataError = 3

	// ConfigError indicates missing or invalid configuration
	ConfigError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// ServiceError indicates the news or assistant service failed
	ServiceError = 7

	// Interrupted indicates the user cancelled the command
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode maps err to an exit code. Coded errors are mapped by
// their category; anything else falls back to matching the message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	if code := string(errors.CodeOf(err)); code != "" {
		category, _, _ := strings.Cut(code, "-")
		switch category {
		case "AUTH":
			return AuthError
		case "DATA":
			return DataError
		case "CONFIG":
			return ConfigError
		case "NEWS", "AI":
			if errors.HasCode(err, errors.ErrCodeAIUnauthorized) {
				return AuthError
			}
			return ServiceError
		case "IO":
			return GeneralError
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Authentication errors
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case DataError:
		return "Backend data error"
	case ConfigError:
		return "Configuration error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case ServiceError:
		return "External service error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
