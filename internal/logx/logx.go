// Package logx provides the logging interface shared by library components.
package logx

import (
	"log/slog"

	"github.com/rs/zerolog"
)

// Logger is the logging interface accepted by library components.
// Implementations must be safe for concurrent use and should handle log levels internally.
type Logger interface {
	// Error logs error messages. Should be used for unexpected failures or critical issues.
	Error(msg string, args ...any)

	// Debug logs detailed diagnostic information useful for development and troubleshooting.
	// Debug messages should not include sensitive information and may be omitted in production.
	Debug(msg string, args ...any)
}

// Default returns the process-wide slog logger. *slog.Logger satisfies Logger directly.
func Default() Logger {
	return slog.Default()
}

// Zerolog adapts a zerolog.Logger to the Logger interface so the service
// binary can route component logs through its structured logger.
func Zerolog(l zerolog.Logger) Logger {
	return zerologAdapter{l: l}
}

type zerologAdapter struct {
	l zerolog.Logger
}

func (z zerologAdapter) Error(msg string, args ...any) {
	z.event(z.l.Error(), msg, args)
}

func (z zerologAdapter) Debug(msg string, args ...any) {
	z.event(z.l.Debug(), msg, args)
}

// event attaches slog-style alternating key/value args as zerolog fields.
func (z zerologAdapter) event(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
