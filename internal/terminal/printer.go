package terminal

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"termserve/internal/environment"
)

// Printer writes text to a session output stream. Println terminates
// with the session's canonical line ending, read from the environment
// at call time so a SetLineEnding takes effect immediately.
type Printer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	env *environment.Env
}

// NewPrinter wraps a raw output stream.
func NewPrinter(w io.Writer, env *environment.Env) *Printer {
	return &Printer{
		w:   bufio.NewWriter(w),
		env: env,
	}
}

// Print writes s without a terminator.
func (p *Printer) Print(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.w.WriteString(s)
	return err
}

// Printf formats and writes without a terminator.
func (p *Printer) Printf(format string, args ...any) error {
	return p.Print(fmt.Sprintf(format, args...))
}

// Println writes s followed by the canonical line ending.
func (p *Printer) Println(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.w.WriteString(s); err != nil {
		return err
	}
	_, err := p.w.WriteString(string(p.env.LineEnding()))
	return err
}

// Write implements io.Writer.
func (p *Printer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.w.Write(b)
}

// Flush pushes buffered output to the underlying stream.
func (p *Printer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.w.Flush()
}
