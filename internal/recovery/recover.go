// Package recovery converts panics raised inside evaluation and type
// dispatch into TypeDispatch errors so one bad batch cannot take down the
// calling kernel.
package recovery

import (
	"log/slog"
	"runtime/debug"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic becomes a TypeDispatch error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "filter", func() error {
//	    return c.filterRows(t, start, end)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			err = calcerr.TypeDispatch(operation, "panicked: %v", r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns the zero value and a TypeDispatch error.
//
// Example:
//
//	out, err := recovery.RecoverToValue(logger, "project", func() (*table.Table, error) {
//	    return c.project(t)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			var zero T
			result = zero
			err = calcerr.TypeDispatch(operation, "panicked: %v", r)
		}
	}()

	return fn()
}
