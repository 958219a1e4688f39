// Package logging defines the structured-logging interface used across
// pulsekeeper and its slog and zap implementations.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "check created", "id", id, "phone", phone)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions, such as a degraded
	// cascade cleanup.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger of the given kind ("slog" or "zap"). Unknown kinds
// fall back to slog. env selects production or development settings.
func New(kind, env string) (Logger, error) {
	switch kind {
	case "zap":
		return NewZapLoggerForEnv(env)
	default:
		return NewDefaultSlogLogger(env), nil
	}
}

type ctxKey struct{}

// WithRequestID returns a context carrying the request id, which both
// implementations append to every record logged with that context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
