package terminal

import (
	"bufio"
	"io"
	"sync"
	"time"
	"unicode/utf8"
)

// Reader assembles echoed, line-buffered text from a raw input stream.
//
// A pump goroutine copies one byte at a time from the transport through
// the echo translator into a channel, so echo happens synchronously
// with the read that produced the character. ReadLine consumes the
// channel with a bounded wait; an expired wait is not an error, it
// means "no input yet".
type Reader struct {
	ch chan byte

	mu      sync.Mutex
	pumpErr error

	line   []byte
	skipLF bool
}

// NewReader starts pumping raw bytes from r, echoing each through echo.
func NewReader(r io.Reader, echo *Echo) *Reader {
	lr := &Reader{
		ch: make(chan byte, 256),
	}
	go lr.pump(r, echo)
	return lr
}

func (r *Reader) pump(raw io.Reader, echo *Echo) {
	br := bufio.NewReader(raw)
	for {
		b, err := br.ReadByte()
		if err != nil {
			r.mu.Lock()
			r.pumpErr = err
			r.mu.Unlock()
			close(r.ch)
			return
		}
		// Echo failures do not stop input; the write side surfaces
		// its own errors through the printers.
		_ = echo.WriteChar(b)
		r.ch <- b
	}
}

func (r *Reader) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pumpErr == nil || r.pumpErr == io.EOF {
		return io.EOF
	}
	return r.pumpErr
}

// ReadLine waits up to timeout for a complete line.
//
// It returns (line, true, nil) when a line terminator arrived,
// ("", false, nil) when the wait expired with the partial line kept
// for the next call, and ("", false, err) once input is exhausted.
// A final unterminated line is delivered before EOF is reported.
func (r *Reader) ReadLine(timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case b, ok := <-r.ch:
			if !ok {
				if len(r.line) > 0 {
					return r.takeLine(), true, nil
				}
				return "", false, r.err()
			}
			if r.consume(b) {
				return r.takeLine(), true, nil
			}
		case <-timer.C:
			return "", false, nil
		}
	}
}

// consume buffers one raw byte, reporting true when it completed a
// line. It mirrors the echo state machine: CR terminates a line and
// arms a one-shot skip of the LF completing a CRLF pair; DEL erases
// the last buffered rune.
func (r *Reader) consume(b byte) bool {
	switch b {
	case '\r':
		r.skipLF = true
		return true
	case '\n':
		if r.skipLF {
			r.skipLF = false
			return false
		}
		return true
	case del:
		if len(r.line) > 0 {
			_, size := utf8.DecodeLastRune(r.line)
			r.line = r.line[:len(r.line)-size]
		}
		return false
	default:
		r.skipLF = false
		r.line = append(r.line, b)
		return false
	}
}

func (r *Reader) takeLine() string {
	line := string(r.line)
	r.line = r.line[:0]
	return line
}
