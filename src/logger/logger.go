package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// -----------------------------------------------------------------------------

// Logger provides named, leveled logging for one component.
type Logger struct {
	name   string
	logger *log.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout.
func NewLogger(name string) *Logger {
	return &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// NewLoggerTo creates a Logger writing to the given sink.
func NewLoggerTo(w io.Writer, name string) *Logger {
	return &Logger{
		name:   name,
		logger: log.New(w, "", log.LstdFlags),
	}
}

// -----------------------------------------------------------------------------

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] DEBUG: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Warning logs warning messages
func (l *Logger) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] WARNING: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] INFO: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] ERROR: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
