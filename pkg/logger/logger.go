// Package logger provides a minimal structured logger used across the
// sps daemon: leveled output, chainable fields, and an optional mode
// tag distinguishing foreground runs from daemonized ones.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel is the severity of a log line.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the level's display name.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively. "WARNING" is
// accepted as an alias for WARN.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

// Config configures a new Logger.
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string // currently only "text" is implemented
	Mode   string
}

// Logger is a leveled logger with chainable structured fields.
type Logger struct {
	level  LogLevel
	logger *log.Logger
	fields map[string]interface{}
	mode   string
}

// New returns a Logger writing text lines at INFO level to stdout.
func New() *Logger {
	return NewWithConfig(Config{
		Level:  INFO,
		Output: os.Stdout,
		Format: "text",
		Mode:   "",
	})
}

// NewWithConfig returns a Logger built from cfg, defaulting Output to
// stdout when unset.
func NewWithConfig(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		level:  cfg.Level,
		logger: log.New(out, "", 0),
		fields: make(map[string]interface{}),
		mode:   cfg.Mode,
	}
}

// SetMode sets the mode tag shown in log lines (e.g. "foreground", "daemon").
func (l *Logger) SetMode(mode string) {
	l.mode = mode
}

// GetMode returns the current mode tag.
func (l *Logger) GetMode() string {
	return l.mode
}

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// IsDebugEnabled reports whether DEBUG lines would be emitted.
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= DEBUG
}

// IsInfoEnabled reports whether INFO lines would be emitted.
func (l *Logger) IsInfoEnabled() bool {
	return l.level <= INFO
}

// WithFields returns a new Logger with key/value pairs merged into its
// persistent field set. A trailing key without a value is dropped.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(keyVals)/2)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		key, ok := keyVals[i].(string)
		if !ok {
			continue
		}
		newFields[key] = keyVals[i+1]
	}
	return &Logger{
		level:  l.level,
		logger: l.logger,
		fields: newFields,
		mode:   l.mode,
	}
}

// WithField returns a new Logger with a single field merged in.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithMode returns a new Logger with the mode tag changed, preserving
// its persistent fields.
func (l *Logger) WithMode(mode string) *Logger {
	newFields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &Logger{
		level:  l.level,
		logger: l.logger,
		fields: newFields,
		mode:   mode,
	}
}

func (l *Logger) log(level LogLevel, msg string, keyVals ...interface{}) {
	if level < l.level {
		return
	}
	fields := make(map[string]interface{}, len(l.fields)+len(keyVals)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		key, ok := keyVals[i].(string)
		if !ok {
			continue
		}
		fields[key] = keyVals[i+1]
	}
	l.logger.Print(formatLogLine(level, l.mode, msg, fields))
}

func formatLogLine(level LogLevel, mode, msg string, fields map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if mode != "" {
		b.WriteString(" [")
		b.WriteString(mode)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			b.WriteString(" ")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(formatValue(fields[k]))
		}
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch tv := v.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(tv, " \t") {
			return fmt.Sprintf("%q", tv)
		}
		return tv
	case error:
		return fmt.Sprintf("%q", tv.Error())
	case time.Duration:
		return tv.String()
	case time.Time:
		return tv.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", tv)
	}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, keyVals ...interface{}) {
	l.log(DEBUG, msg, keyVals...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, keyVals ...interface{}) {
	l.log(INFO, msg, keyVals...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, keyVals ...interface{}) {
	l.log(WARN, msg, keyVals...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, keyVals ...interface{}) {
	l.log(ERROR, msg, keyVals...)
}

// Fatal logs at ERROR level and exits the process with status 1.
func (l *Logger) Fatal(msg string, keyVals ...interface{}) {
	l.log(ERROR, msg, keyVals...)
	os.Exit(1)
}

// Fatalf formats msg and exits the process with status 1.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...))
	os.Exit(1)
}

var globalLogger = New()

// SetGlobalMode sets the mode tag on the package-level logger.
func SetGlobalMode(mode string) {
	globalLogger.SetMode(mode)
}

// SetLevel sets the minimum level on the package-level logger.
func SetLevel(level LogLevel) {
	globalLogger.SetLevel(level)
}

// Debug logs at DEBUG level on the package-level logger.
func Debug(msg string, keyVals ...interface{}) {
	globalLogger.Debug(msg, keyVals...)
}

// Info logs at INFO level on the package-level logger.
func Info(msg string, keyVals ...interface{}) {
	globalLogger.Info(msg, keyVals...)
}

// Warn logs at WARN level on the package-level logger.
func Warn(msg string, keyVals ...interface{}) {
	globalLogger.Warn(msg, keyVals...)
}

// Error logs at ERROR level on the package-level logger.
func Error(msg string, keyVals ...interface{}) {
	globalLogger.Error(msg, keyVals...)
}

// Fatal logs at ERROR level on the package-level logger and exits.
func Fatal(msg string, keyVals ...interface{}) {
	globalLogger.Fatal(msg, keyVals...)
}

// Fatalf formats msg on the package-level logger and exits.
func Fatalf(format string, args ...interface{}) {
	globalLogger.Fatalf(format, args...)
}

// WithFields returns a derived logger from the package-level logger.
func WithFields(keyVals ...interface{}) *Logger {
	return globalLogger.WithFields(keyVals...)
}

// WithField returns a derived logger from the package-level logger.
func WithField(key string, value interface{}) *Logger {
	return globalLogger.WithField(key, value)
}

// WithMode returns a derived logger from the package-level logger.
func WithMode(mode string) *Logger {
	return globalLogger.WithMode(mode)
}
