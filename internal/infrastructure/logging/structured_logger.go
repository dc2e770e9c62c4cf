// Package logging emits one JSON object per line in an ELK-compatible
// layout. Investigation identifiers (query_id, trace_id, span_id,
// phase, tool) are promoted out of the free-form field map into
// top-level keys so they stay queryable without index mapping tricks.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const serviceName = "lineage_engine"

// LogLevel represents logging severity levels.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// LogEntry is the wire layout of a single log line.
type LogEntry struct {
	Timestamp string `json:"@timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Logger    string `json:"logger,omitempty"`
	Caller    string `json:"caller,omitempty"`

	// Promoted investigation identifiers
	QueryID string `json:"query_id,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Tool    string `json:"tool,omitempty"`

	Error      string `json:"error,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`

	Fields map[string]interface{} `json:"fields,omitempty"`
}

// promoted maps reserved field keys onto their top-level slots.
var promoted = map[string]func(*LogEntry, string){
	"query_id": func(e *LogEntry, v string) { e.QueryID = v },
	"trace_id": func(e *LogEntry, v string) { e.TraceID = v },
	"span_id":  func(e *LogEntry, v string) { e.SpanID = v },
	"phase":    func(e *LogEntry, v string) { e.Phase = v },
	"tool":     func(e *LogEntry, v string) { e.Tool = v },
}

func (e *LogEntry) field(key string, value interface{}) {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
}

// StructuredLogger writes JSON log lines to a single writer. Safe for
// concurrent use; each line is marshalled outside the lock and written
// under it, so lines never interleave.
type StructuredLogger struct {
	mu       sync.Mutex
	writer   io.Writer
	minLevel LogLevel
	fields   map[string]interface{}
}

// NewStructuredLogger creates a logger writing to the given writer at
// the given minimum level. A nil writer falls back to stdout.
func NewStructuredLogger(writer io.Writer, minLevel LogLevel) *StructuredLogger {
	if writer == nil {
		writer = os.Stdout
	}
	hostname, _ := os.Hostname()
	return &StructuredLogger{
		writer:   writer,
		minLevel: minLevel,
		fields: map[string]interface{}{
			"service": serviceName,
			"host":    hostname,
		},
	}
}

// NewDefaultLogger creates a logger with INFO level to stdout.
func NewDefaultLogger() *StructuredLogger {
	return NewStructuredLogger(os.Stdout, InfoLevel)
}

// SetMinLevel sets the minimum log level.
func (l *StructuredLogger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// WithField attaches a field to every entry this logger writes.
func (l *StructuredLogger) WithField(key string, value interface{}) *StructuredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields[key] = value
	return l
}

// WithFields attaches several fields to every entry this logger writes.
func (l *StructuredLogger) WithFields(fields map[string]interface{}) *StructuredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// Debug logs a debug-level message.
func (l *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DebugLevel, message, nil, fields)
}

// Info logs an info-level message.
func (l *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	l.log(InfoLevel, message, nil, fields)
}

// Warn logs a warning-level message.
func (l *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WarnLevel, message, nil, fields)
}

// Error logs an error-level message with a stack trace.
func (l *StructuredLogger) Error(message string, err error, fields ...map[string]interface{}) {
	l.log(ErrorLevel, message, err, fields)
}

// Fatal logs a fatal-level message and exits the program.
func (l *StructuredLogger) Fatal(message string, err error, fields ...map[string]interface{}) {
	l.log(FatalLevel, message, err, fields)
	os.Exit(1)
}

func (l *StructuredLogger) log(level LogLevel, message string, err error, fieldMaps []map[string]interface{}) {
	l.mu.Lock()
	if level < l.minLevel {
		l.mu.Unlock()
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Logger:    serviceName,
	}
	for k, v := range l.fields {
		entry.field(k, v)
	}
	l.mu.Unlock()

	// Two frames up: log() and the public level method.
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	for _, m := range fieldMaps {
		for k, v := range m {
			if set, ok := promoted[k]; ok {
				if s, ok := v.(string); ok {
					set(&entry, s)
					continue
				}
			}
			entry.field(k, v)
		}
	}

	if err != nil {
		entry.Error = err.Error()
		entry.ErrorType = fmt.Sprintf("%T", err)
		if level >= ErrorLevel {
			stack := make([]byte, 4096)
			entry.StackTrace = string(stack[:runtime.Stack(stack, false)])
		}
	}

	line, marshalErr := json.Marshal(&entry)
	if marshalErr != nil {
		line = []byte(fmt.Sprintf(`{"@timestamp":%q,"level":"ERROR","message":"log entry not serializable","original_message":%q}`,
			entry.Timestamp, message))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(line)
	l.writer.Write([]byte("\n"))
}

// LoggerContext is a logger with a pre-bound field set, handed to a
// component so its entries all carry the same identifiers.
type LoggerContext struct {
	logger *StructuredLogger
	fields map[string]interface{}
}

// NewContext binds fields to a child logging context.
func (l *StructuredLogger) NewContext(fields map[string]interface{}) *LoggerContext {
	return &LoggerContext{logger: l, fields: fields}
}

func (lc *LoggerContext) merge(extra []map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(lc.fields))
	for k, v := range lc.fields {
		merged[k] = v
	}
	for _, m := range extra {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// Debug logs a debug-level message with the bound fields.
func (lc *LoggerContext) Debug(message string, fields ...map[string]interface{}) {
	lc.logger.Debug(message, lc.merge(fields))
}

// Info logs an info-level message with the bound fields.
func (lc *LoggerContext) Info(message string, fields ...map[string]interface{}) {
	lc.logger.Info(message, lc.merge(fields))
}

// Warn logs a warning-level message with the bound fields.
func (lc *LoggerContext) Warn(message string, fields ...map[string]interface{}) {
	lc.logger.Warn(message, lc.merge(fields))
}

// Error logs an error-level message with the bound fields.
func (lc *LoggerContext) Error(message string, err error, fields ...map[string]interface{}) {
	lc.logger.Error(message, err, lc.merge(fields))
}

// Fatal logs a fatal-level message with the bound fields and exits.
func (lc *LoggerContext) Fatal(message string, err error, fields ...map[string]interface{}) {
	lc.logger.Fatal(message, err, lc.merge(fields))
}

var (
	defaultLogger   = NewDefaultLogger()
	defaultLoggerMu sync.RWMutex
)

// SetDefaultLogger replaces the process-wide default logger.
func SetDefaultLogger(logger *StructuredLogger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// GetDefaultLogger returns the process-wide default logger.
func GetDefaultLogger() *StructuredLogger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// Debug logs to the default logger.
func Debug(message string, fields ...map[string]interface{}) {
	GetDefaultLogger().Debug(message, fields...)
}

// Info logs to the default logger.
func Info(message string, fields ...map[string]interface{}) {
	GetDefaultLogger().Info(message, fields...)
}

// Warn logs to the default logger.
func Warn(message string, fields ...map[string]interface{}) {
	GetDefaultLogger().Warn(message, fields...)
}

// Error logs to the default logger.
func Error(message string, err error, fields ...map[string]interface{}) {
	GetDefaultLogger().Error(message, err, fields...)
}

// Fatal logs to the default logger and exits.
func Fatal(message string, err error, fields ...map[string]interface{}) {
	GetDefaultLogger().Fatal(message, err, fields...)
}
