// Package logging is the structured logger used by PassPort. The only
// implementation wraps log/slog and scrubs secret-bearing attributes before
// they reach the handler.
package logging

import "context"

// Logger takes key/value pairs after the message:
//
//	log.Info(ctx, "share accepted", "share_id", id)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes args.
	With(args ...any) Logger
}
