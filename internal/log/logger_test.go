package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("json") != FormatJSON {
		t.Error("json should parse to FormatJSON")
	}
	if ParseFormat("text") != FormatText {
		t.Error("text should parse to FormatText")
	}
	if ParseFormat("yaml") != FormatText {
		t.Error("unknown formats should fall back to text")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() > 0 {
		t.Errorf("expected no output for debug/info at warn level, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if buf.Len() == 0 {
		t.Error("expected output for warn message")
	}
}

func TestJSONFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf, Component: "tasksync"})

	logger.Info("test message", "table", "tasks", "rows", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("expected msg 'test message', got %v", entry["msg"])
	}
	if entry["component"] != "tasksync" {
		t.Errorf("expected component 'tasksync', got %v", entry["component"])
	}
	if entry["rows"] != float64(3) {
		t.Errorf("expected rows 3, got %v", entry["rows"])
	}
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	logger.Named("session").Info("state changed", "phase", "checking")

	output := buf.String()
	for _, want := range []string{"state changed", "subsystem=session", "phase=checking"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "plain error", err: fmt.Errorf("boom")},
		{name: "coded error", err: errors.NewNoSessionError(), wantCode: "AUTH-002"},
		{name: "wrapped coded error", err: fmt.Errorf("load: %w", errors.NewQueryError("tasks", fmt.Errorf("500"))), wantCode: "DATA-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

			logger.WithError(tt.err).Info("failed")

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to parse JSON: %v", err)
			}
			if _, ok := entry["error"]; !ok {
				t.Error("expected error field")
			}
			if tt.wantCode != "" && entry["error_code"] != tt.wantCode {
				t.Errorf("error_code = %v, want %s", entry["error_code"], tt.wantCode)
			}
		})
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Discard()
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	defaultLogger = nil
	first := DefaultLogger()
	if first == nil {
		t.Fatal("DefaultLogger returned nil")
	}
	if DefaultLogger() != first {
		t.Error("DefaultLogger should be stable")
	}

	custom := Discard()
	SetDefaultLogger(custom)
	if OrDefault(nil) != custom {
		t.Error("OrDefault(nil) should return the configured default")
	}
	other := Discard()
	if OrDefault(other) != other {
		t.Error("OrDefault should prefer the explicit logger")
	}
}
