package log

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.from(ctx).Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogEntryCreated logs a successful append to a workspace list
func (sl *StructuredLogger) LogEntryCreated(ctx context.Context, sessionID, entryID, desc string, amount int64, category string, count int) {
	fields := NewFields().
		WithEntry(entryID, desc, amount, category).
		WithSessionID(sessionID).
		WithOperation(OpCreate).
		ToSlice()
	fields = append(fields, FieldEntryCount, count)

	sl.from(ctx).WithComponent(ComponentEntry).InfoContext(ctx, "Entry created", fields...)
}

// LogEntryDeleted logs a removal from a workspace list
func (sl *StructuredLogger) LogEntryDeleted(ctx context.Context, sessionID, entryID, mode string, count int) {
	fields := NewFields().
		WithSessionID(sessionID).
		WithOperation(OpDelete)
	fields[FieldEntryID] = entryID
	fields[FieldDeleteMode] = mode
	fields[FieldEntryCount] = count

	sl.from(ctx).WithComponent(ComponentEntry).InfoContext(ctx, "Entry deleted", fields.ToSlice()...)
}

// LogValidationFailed logs a rejected submission with the failing fields
func (sl *StructuredLogger) LogValidationFailed(ctx context.Context, sessionID string, invalid []string) {
	fields := NewFields().
		WithSessionID(sessionID).
		WithOperation(OpValidate).
		WithErrorType(ErrorTypeValidation)
	fields[FieldInvalidFields] = strings.Join(invalid, ",")

	sl.from(ctx).WithComponent(ComponentEntry).InfoContext(ctx, "Entry validation failed", fields.ToSlice()...)
}

// LogEntryNotFound logs a delete that matched no row in the workspace
func (sl *StructuredLogger) LogEntryNotFound(ctx context.Context, sessionID, target, mode string) {
	fields := NewFields().
		WithSessionID(sessionID).
		WithOperation(OpDelete).
		WithErrorType(ErrorTypeNotFound)
	fields[FieldEntryID] = target
	fields[FieldDeleteMode] = mode

	sl.from(ctx).WithComponent(ComponentEntry).InfoContext(ctx, "Entry not found", fields.ToSlice()...)
}

// LogError logs an error with structured context. Records without an
// explicit error type are reported as internal errors.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	if _, ok := fields[FieldErrorType]; !ok {
		fields.WithErrorType(ErrorTypeInternal)
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	sl.from(ctx).WithComponent(component).ErrorContext(ctx, msg, allFields.ToSlice()...)
}

// from prefers the request-scoped logger so request IDs follow the event.
func (sl *StructuredLogger) from(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return sl.logger
}
