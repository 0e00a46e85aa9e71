package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfoVerbose(t *testing.T) {
	tests := []struct {
		name           string
		verbose        bool
		format         string
		args           []interface{}
		expectOutput   bool
		expectedSubstr string
	}{
		{
			name:           "verbose enabled - should output",
			verbose:        true,
			format:         "test message: %s",
			args:           []interface{}{"hello"},
			expectOutput:   true,
			expectedSubstr: "test message: hello",
		},
		{
			name:         "verbose disabled - should not output",
			verbose:      false,
			format:       "test message: %s",
			args:         []interface{}{"hello"},
			expectOutput: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLoggerWithWriter(tt.verbose, false, false, buf)

			logger.InfoVerbose(tt.format, tt.args...)

			output := buf.String()
			if tt.expectOutput {
				if !strings.Contains(output, tt.expectedSubstr) {
					t.Errorf("expected output to contain %q, got %q", tt.expectedSubstr, output)
				}
			} else {
				if output != "" {
					t.Errorf("expected no output, got %q", output)
				}
			}
		})
	}
}

func TestWarningVerbose(t *testing.T) {
	tests := []struct {
		name           string
		verbose        bool
		format         string
		args           []interface{}
		expectOutput   bool
		expectedSubstr string
	}{
		{
			name:           "verbose enabled - should output",
			verbose:        true,
			format:         "warning: %s",
			args:           []interface{}{"test warning"},
			expectOutput:   true,
			expectedSubstr: "warning: test warning",
		},
		{
			name:         "verbose disabled - should not output",
			verbose:      false,
			format:       "warning: %s",
			args:         []interface{}{"test warning"},
			expectOutput: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLoggerWithWriter(tt.verbose, false, false, buf)

			logger.WarningVerbose(tt.format, tt.args...)

			output := buf.String()
			if tt.expectOutput {
				if !strings.Contains(output, tt.expectedSubstr) {
					t.Errorf("expected output to contain %q, got %q", tt.expectedSubstr, output)
				}
			} else {
				if output != "" {
					t.Errorf("expected no output, got %q", output)
				}
			}
		})
	}
}

func TestInfoVerboseNilLogger(t *testing.T) {
	// Should not panic with nil logger
	var logger *Logger
	logger.InfoVerbose("test message")
	// If we reach here, test passes (no panic)
}

func TestWarningVerboseNilLogger(t *testing.T) {
	// Should not panic with nil logger
	var logger *Logger
	logger.WarningVerbose("test warning")
	// If we reach here, test passes (no panic)
}

func TestLoggerBasicFunctions(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerWithWriter(false, false, false, buf)

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		if !strings.Contains(buf.String(), "info message") {
			t.Errorf("expected Info to log message, got %q", buf.String())
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if !strings.Contains(buf.String(), "error message") {
			t.Errorf("expected Error to log message, got %q", buf.String())
		}
	})

	t.Run("Success", func(t *testing.T) {
		buf.Reset()
		logger.Success("success message")
		if !strings.Contains(buf.String(), "success message") {
			t.Errorf("expected Success to log message, got %q", buf.String())
		}
	})

	t.Run("Warning", func(t *testing.T) {
		buf.Reset()
		logger.Warning("warning message")
		if !strings.Contains(buf.String(), "warning message") {
			t.Errorf("expected Warning to log message, got %q", buf.String())
		}
	})
}

func TestSetVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerWithWriter(false, false, false, buf)

	logger.InfoVerbose("hidden")
	if buf.String() != "" {
		t.Errorf("expected no output before enabling verbose, got %q", buf.String())
	}

	logger.SetVerbose(true)
	logger.InfoVerbose("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected output after enabling verbose, got %q", buf.String())
	}
}

func TestRequestResponseLogging(t *testing.T) {
	t.Run("jsonRPC enabled includes payload", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLoggerWithWriter(false, false, true, buf)

		logger.Request("tools/call", map[string]string{"name": "get_current_user"})

		output := buf.String()
		if !strings.Contains(output, "tools/call") {
			t.Errorf("expected method in output, got %q", output)
		}
		if !strings.Contains(output, "get_current_user") {
			t.Errorf("expected payload in output, got %q", output)
		}
	})

	t.Run("jsonRPC disabled and non-verbose is silent", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLoggerWithWriter(false, false, false, buf)

		logger.Response("tools/call", map[string]string{"ok": "true"})

		if buf.String() != "" {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

func TestColorOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerWithWriter(false, true, false, buf)

	logger.Error("colored")

	output := buf.String()
	if !strings.Contains(output, colorRed) {
		t.Errorf("expected ANSI color code in output, got %q", output)
	}
	if !strings.Contains(output, colorReset) {
		t.Errorf("expected ANSI reset code in output, got %q", output)
	}
}
