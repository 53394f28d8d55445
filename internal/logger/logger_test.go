package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		expectError bool
	}{
		{name: "Debug level", level: "debug"},
		{name: "Warn level", level: "warn"},
		{name: "Error level", level: "error"},
		{name: "Invalid level", level: "loud", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.level)
			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	log.SetLevel(logrus.DebugLevel)
	return &buf
}

func TestLogging(t *testing.T) {
	buf := captureLogs(t)

	tests := []struct {
		name          string
		logFunc       func(string, ...map[string]interface{})
		message       string
		fields        map[string]interface{}
		expectedLevel string
	}{
		{name: "Debug message", logFunc: Debug, message: "Debug test", expectedLevel: "debug"},
		{name: "Info message", logFunc: Info, message: "Info test", expectedLevel: "info"},
		{name: "Warn message", logFunc: Warn, message: "Warn test", expectedLevel: "warning"},
		{
			name:          "Warn with fields",
			logFunc:       Warn,
			message:       "dead link",
			fields:        map[string]interface{}{"note": "Shopping"},
			expectedLevel: "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			if tt.fields != nil {
				tt.logFunc(tt.message, tt.fields)
			} else {
				tt.logFunc(tt.message)
			}

			output := buf.String()
			if !strings.Contains(output, "level="+tt.expectedLevel) {
				t.Errorf("Expected log level %s, got %s", tt.expectedLevel, output)
			}
			if !strings.Contains(output, tt.message) {
				t.Errorf("Expected message %s, got %s", tt.message, output)
			}
			for k, v := range tt.fields {
				if !strings.Contains(output, k+"="+v.(string)) {
					t.Errorf("Expected field %s=%v in output: %s", k, v, output)
				}
			}
		})
	}
}

func TestError(t *testing.T) {
	buf := captureLogs(t)

	Error("write failed", errors.New("disk full"), map[string]interface{}{"path": "a.md"})
	output := buf.String()
	for _, want := range []string{"level=error", "write failed", "disk full", "path=a.md"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output: %s", want, output)
		}
	}
}
