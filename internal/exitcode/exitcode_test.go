package exitcode

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"DataError", DataError, 3},
		{"ConfigError", ConfigError, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"ServiceError", ServiceError, 7},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "no session",
			err:      errors.NewNoSessionError(),
			expected: AuthError,
		},
		{
			name:     "wrapped query failure",
			err:      fmt.Errorf("list tasks: %w", errors.NewQueryError("tasks", stderrors.New("boom"))),
			expected: DataError,
		},
		{
			name:     "missing config",
			err:      errors.NewConfigMissingError("backend.url", "TASKSYNC_BACKEND_URL"),
			expected: ConfigError,
		},
		{
			name:     "news failure",
			err:      errors.New(errors.ErrCodeNewsFetchFailed, "Failed to fetch news"),
			expected: ServiceError,
		},
		{
			name:     "assistant key rejected",
			err:      errors.New(errors.ErrCodeAIUnauthorized, "Invalid API key"),
			expected: AuthError,
		},
		{
			name:     "cancelled",
			err:      fmt.Errorf("signin: %w", context.Canceled),
			expected: Interrupted,
		},
		{
			name:     "connection refused",
			err:      stderrors.New("dial tcp: connection refused"),
			expected: NetworkError,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			expected: NetworkError,
		},
		{
			name:     "unknown flag",
			err:      stderrors.New("unknown command \"foo\" for \"tasksync\""),
			expected: UsageError,
		},
		{
			name:     "anything else",
			err:      stderrors.New("something odd"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{AuthError, "Authentication error"},
		{ServiceError, "External service error"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		if got := GetExitCodeDescription(tt.code); got != tt.expected {
			t.Errorf("GetExitCodeDescription(%d) = %q, want %q", tt.code, got, tt.expected)
		}
	}
}
