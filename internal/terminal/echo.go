package terminal

import "termserve/internal/environment"

// del is the delete/backspace code sent by most terminals.
const del = 0x7f

// backspaceSeq erases the previous character on the remote display.
const backspaceSeq = "\b \b"

// Echo translates raw input characters into an echoed output stream
// with normalized line endings. A carriage return echoes the session's
// canonical line ending and arms a one-shot skip of the line feed that
// completes a CRLF pair.
//
// It is a per-character state machine with a single bit of state and
// no terminal state; it lives for the session's duration. Every
// emission is flushed immediately so the remote terminal sees live
// echo.
type Echo struct {
	out    *Printer
	env    *environment.Env
	skipLF bool
}

// NewEcho creates an echo translator emitting to out.
func NewEcho(out *Printer, env *environment.Env) *Echo {
	return &Echo{
		out: out,
		env: env,
	}
}

// WriteChar processes one raw input character.
func (e *Echo) WriteChar(c byte) error {
	var emit string

	switch c {
	case '\r':
		emit = string(e.env.LineEnding())
		e.skipLF = true
	case '\n':
		if e.skipLF {
			e.skipLF = false
			return nil
		}
		emit = string(environment.NL)
	case del:
		// Skip state deliberately untouched.
		emit = backspaceSeq
	default:
		emit = string(c)
		e.skipLF = false
	}

	if err := e.out.Print(emit); err != nil {
		return err
	}
	return e.out.Flush()
}
