// Package logging holds the injected-logger helpers.
//
// Components never touch the global slog logger. A component takes an
// optional *slog.Logger, passes it through Default and scopes it once at
// construction time. Log points sit at lifecycle boundaries (compile,
// filter summary, projection), never inside per-row loops.
package logging

import "log/slog"

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Default returns the provided logger if non-nil, otherwise a discard logger.
//
//	func New(opts Options) *Calc {
//	    logger := logging.Default(opts.Logger)
//	    return &Calc{logger: logger.With("component", "calc")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
