package cli

import (
	"github.com/agentloop/ralph/internal/app"
)

// loggerBridge adapts the CLI logger to the app.Logger interface so
// layers below the CLI share the same level threshold.
type loggerBridge struct {
	cliLogger *Logger
}

func (b *loggerBridge) Debug(format string, args ...interface{}) {
	b.cliLogger.Debug(format, args...)
}

func (b *loggerBridge) Info(format string, args ...interface{}) {
	b.cliLogger.Info(format, args...)
}

func (b *loggerBridge) Warn(format string, args ...interface{}) {
	b.cliLogger.Warn(format, args...)
}

func (b *loggerBridge) Error(format string, args ...interface{}) {
	b.cliLogger.Error(format, args...)
}

// InitializeLoggers installs the CLI logger for all layers.
func InitializeLoggers(logger *Logger) {
	globalLogger = logger
	app.SetLogger(&loggerBridge{cliLogger: logger})
}
