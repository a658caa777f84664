// Package eval defines the pluggable evaluator capability consumed by
// terminal sessions, and a default implementation backed by the goja
// JavaScript engine.
//
// The contract is the factory form: a Factory produces one evaluation
// Session per terminal, so evaluator state (bindings, globals, the
// JS runtime) is parameterized per session rather than global.
package eval

import (
	"sync"
	"time"

	"termserve/internal/monitoring"
	"termserve/internal/terminal"
)

// Session is an expression evaluation context bound to one terminal.
type Session interface {
	// Evaluate interprets expression and returns its result. Domain
	// errors propagate unchanged to the caller.
	Evaluate(expression string) (any, error)
	Close() error
}

// Factory produces a fresh evaluation session for a terminal.
type Factory interface {
	NewSession(tc *terminal.Context) (Session, error)
}

// Bind adapts a Factory into a terminal.Evaluator. The session is
// created lazily on the first evaluation, once per returned evaluator,
// which resolves the construction cycle between a context and its
// session-bound evaluator.
func Bind(f Factory) terminal.Evaluator {
	var (
		once    sync.Once
		session Session
		initErr error
	)
	return func(expression string, tc *terminal.Context) (any, error) {
		once.Do(func() {
			session, initErr = f.NewSession(tc)
		})
		if initErr != nil {
			return nil, initErr
		}
		return session.Evaluate(expression)
	}
}

// Instrument wraps an evaluator with monitoring. Metrics may be nil.
func Instrument(next terminal.Evaluator, m *monitoring.Metrics) terminal.Evaluator {
	if m == nil {
		return next
	}
	return func(expression string, tc *terminal.Context) (any, error) {
		start := time.Now()
		result, err := next(expression, tc)

		status := "ok"
		if err != nil {
			status = "error"
		}
		m.EvalObserved(time.Since(start), status)
		return result, err
	}
}
