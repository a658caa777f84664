package terminal

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"termserve/internal/environment"
)

// ErrClosed is the single domain failure: any I/O, evaluate, or exit
// attempt after the session transitioned to closed reports it.
var ErrClosed = errors.New("terminal closed")

// Evaluator interprets an expression in the context of a terminal
// session. Failures propagate unchanged to the Evaluate caller.
type Evaluator func(expression string, tc *Context) (any, error)

// lifecycle is the open/closed state shared by a context and its
// environment clones. The first Exit wins the CAS and runs the close
// handle; later callers observe ErrClosed.
type lifecycle struct {
	closed atomic.Bool
	closer io.Closer
}

// Context is the single point of access to a session's I/O, identity,
// environment, and lifecycle.
type Context struct {
	id     ID
	input  *Reader
	output *Printer
	errOut *Printer
	life   *lifecycle
	env    *environment.Env
	eval   Evaluator
}

// New builds a session context around raw transport streams.
//
// The terminal's identity is installed into env under the reserved
// "terminal" name so downstream evaluators can read it from
// environment state alone. Every collaborator is required.
func New(id ID, in io.Reader, out, errOut io.Writer, closer io.Closer, env *environment.Env, eval Evaluator) (*Context, error) {
	if in == nil {
		return nil, errors.New("terminal: missing input stream")
	}
	if out == nil {
		return nil, errors.New("terminal: missing output stream")
	}
	if errOut == nil {
		return nil, errors.New("terminal: missing error stream")
	}
	if closer == nil {
		return nil, errors.New("terminal: missing close handle")
	}
	if env == nil {
		return nil, errors.New("terminal: missing environment")
	}
	if eval == nil {
		return nil, errors.New("terminal: missing evaluator")
	}

	if err := env.Set(environment.TerminalName, id); err != nil {
		return nil, fmt.Errorf("terminal: bind identity: %w", err)
	}

	output := NewPrinter(out, env)
	return &Context{
		id:     id,
		input:  NewReader(in, NewEcho(output, env)),
		output: output,
		errOut: NewPrinter(errOut, env),
		life:   &lifecycle{closer: closer},
		env:    env,
		eval:   eval,
	}, nil
}

// ID returns the terminal identity. Never fails.
func (c *Context) ID() ID { return c.id }

// IsOpen reports whether the session is still open. Never fails.
func (c *Context) IsOpen() bool {
	return !c.life.closed.Load()
}

func (c *Context) check() error {
	if c.life.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Input returns the session line reader.
func (c *Context) Input() (*Reader, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.input, nil
}

// Output returns the session output printer.
func (c *Context) Output() (*Printer, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.output, nil
}

// ErrOutput returns the session error printer.
func (c *Context) ErrOutput() (*Printer, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.errOut, nil
}

// Evaluate forwards expression to the bound evaluator together with
// this context. Evaluator failures propagate unchanged.
func (c *Context) Evaluate(expression string) (any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.eval(expression, c)
}

// Exit closes the session. The first caller wins: it detaches from the
// transport via the close handle and marks the context closed, after
// which all I/O operations fail. Concurrent or repeated callers get
// ErrClosed and must treat it as a no-op.
//
// A close-handle failure is wrapped and returned as fatal; the session
// still counts as closed because the transport state is unknown.
func (c *Context) Exit(exitValue any) error {
	if !c.life.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	_ = c.output.Flush()
	_ = c.errOut.Flush()

	if err := c.life.closer.Close(); err != nil {
		return fmt.Errorf("terminal %s: close transport session: %w", c.id, err)
	}
	return nil
}

// Env returns the session environment.
func (c *Context) Env() *environment.Env { return c.env }

// SetValue binds an environment value.
func (c *Context) SetValue(name environment.Name, value any) error {
	return c.env.Set(name, value)
}

// RemoveValue removes an environment value.
func (c *Context) RemoveValue(name environment.Name) error {
	return c.env.Remove(name)
}

// SetLineEnding replaces the session's canonical line ending.
func (c *Context) SetLineEnding(le environment.LineEnding) error {
	return c.env.SetLineEnding(le)
}

// SetUser binds the session identity.
func (c *Context) SetUser(u environment.User) error {
	return c.env.SetUser(u)
}

// CloneEnvironment returns a context sharing this one's identity, I/O,
// and lifecycle but bound to an independently mutable environment
// copy.
func (c *Context) CloneEnvironment() *Context {
	return &Context{
		id:     c.id,
		input:  c.input,
		output: c.output,
		errOut: c.errOut,
		life:   c.life,
		env:    c.env.Clone(),
		eval:   c.eval,
	}
}

// String renders the session environment.
func (c *Context) String() string {
	return c.env.String()
}
