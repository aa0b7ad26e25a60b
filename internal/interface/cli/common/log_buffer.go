package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel converts a string to LogLevel. Unknown or empty values
// fall back to Warn, the startup default before setting.json is read.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelWarn
	}
}

// String returns the uppercase prefix used when printing messages.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is one buffered log record.
type LogEntry struct {
	Level   LogLevel
	Message string
}

// LogBuffer collects log messages emitted before the configured stderr
// level is known. Startup code logs into the buffer; once setting.json
// has been read the buffer is flushed with the real threshold. After
// the flush new messages pass straight through to the writer.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	flushed bool
	out     io.Writer
}

// NewLogBuffer creates an empty log buffer writing to stderr once
// flushed or when a message cannot wait.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{out: os.Stderr}
}

// Debug records a debug message.
func (b *LogBuffer) Debug(format string, args ...interface{}) {
	b.add(LogLevelDebug, format, args...)
}

// Info records an info message.
func (b *LogBuffer) Info(format string, args ...interface{}) {
	b.add(LogLevelInfo, format, args...)
}

// Warn records a warning message.
func (b *LogBuffer) Warn(format string, args ...interface{}) {
	b.add(LogLevelWarn, format, args...)
}

// Error records an error message. Errors are never worth buffering;
// they are written immediately.
func (b *LogBuffer) Error(format string, args ...interface{}) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	fmt.Fprintf(out, "ERROR: %s\n", fmt.Sprintf(format, args...))
}

func (b *LogBuffer) add(level LogLevel, format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if b.flushed {
		fmt.Fprintf(b.out, "%s: %s\n", level, msg)
		return
	}
	b.entries = append(b.entries, LogEntry{Level: level, Message: msg})
}

// Flush writes every buffered message at or above minLevel to output
// and switches the buffer to pass-through mode.
func (b *LogBuffer) Flush(minLevel LogLevel, output io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if output != nil {
		b.out = output
	}
	if b.flushed {
		return
	}
	for _, entry := range b.entries {
		if entry.Level >= minLevel {
			fmt.Fprintf(b.out, "%s: %s\n", entry.Level, entry.Message)
		}
	}
	b.flushed = true
	b.entries = nil
}

// Clear discards all buffered messages without writing them.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Size returns the number of buffered entries.
func (b *LogBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// globalLogBuffer holds messages emitted before root command setup
// finishes loading the configuration.
var globalLogBuffer = NewLogBuffer()

// StartupLog returns the shared startup log buffer.
func StartupLog() *LogBuffer {
	return globalLogBuffer
}
