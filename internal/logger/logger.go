// Package logger provides formatted logging with color support and
// JSON-RPC message tracking for the OAuth probe.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// ANSI color codes used when color output is enabled.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// Logger writes formatted, optionally colored log lines. It is safe for
// concurrent use.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	color   bool
	jsonRPC bool
}

// NewLogger creates a logger writing to stdout.
func NewLogger(verbose, color, jsonRPC bool) *Logger {
	return NewLoggerWithWriter(verbose, color, jsonRPC, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
// Used by tests to capture output.
func NewLoggerWithWriter(verbose, color, jsonRPC bool, out io.Writer) *Logger {
	return &Logger{
		out:     out,
		verbose: verbose,
		color:   color,
		jsonRPC: jsonRPC,
	}
}

// SetVerbose toggles verbose output at runtime.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// Verbose reports whether verbose output is enabled.
func (l *Logger) Verbose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

func (l *Logger) write(prefix, color, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.color && color != "" {
		fmt.Fprintf(l.out, "%s%s%s%s\n", color, prefix, msg, colorReset)
	} else {
		fmt.Fprintf(l.out, "%s%s\n", prefix, msg)
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("ℹ ", colorBlue, format, args...)
}

// InfoVerbose logs an informational message only when verbose is enabled.
// Safe to call on a nil logger.
func (l *Logger) InfoVerbose(format string, args ...interface{}) {
	if l == nil || !l.Verbose() {
		return
	}
	l.write("ℹ ", colorBlue, format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.write("⚠ ", colorYellow, format, args...)
}

// WarningVerbose logs a warning message only when verbose is enabled.
// Safe to call on a nil logger.
func (l *Logger) WarningVerbose(format string, args ...interface{}) {
	if l == nil || !l.Verbose() {
		return
	}
	l.write("⚠ ", colorYellow, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("✗ ", colorRed, format, args...)
}

// Success logs a success message.
func (l *Logger) Success(format string, args ...interface{}) {
	l.write("✓ ", colorGreen, format, args...)
}

// Request logs an outgoing JSON-RPC request. The payload is included only
// when JSON-RPC logging is enabled.
func (l *Logger) Request(method string, params interface{}) {
	if l.jsonRPC {
		l.write("→ ", colorCyan, "%s %s", method, prettyJSON(params))
		return
	}
	l.InfoVerbose("→ %s", method)
}

// Response logs an incoming JSON-RPC response.
func (l *Logger) Response(method string, result interface{}) {
	if l.jsonRPC {
		l.write("← ", colorCyan, "%s %s", method, prettyJSON(result))
		return
	}
	l.InfoVerbose("← %s", method)
}

// Notification logs an incoming JSON-RPC notification.
func (l *Logger) Notification(method string, params interface{}) {
	if l.jsonRPC {
		l.write("⚡ ", colorCyan, "%s %s", method, prettyJSON(params))
		return
	}
	l.Info("Notification: %s", method)
}

// prettyJSON renders a value as indented JSON for logging.
func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
