package environment

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Name identifies a single environment value.
type Name string

// Reserved names. The terminal installs its own identity under
// TerminalName at construction; the other three carry the session's
// intrinsic state.
const (
	TerminalName   Name = "terminal"
	UserName       Name = "user"
	LineEndingName Name = "lineEnding"
	LocaleName     Name = "locale"
)

func (n Name) String() string { return string(n) }

// LineEnding is the canonical line terminator for a session. It drives
// both input echo and printer output, independent of whatever the raw
// transport delivers.
type LineEnding string

const (
	LF   LineEnding = "\n"
	CR   LineEnding = "\r"
	CRLF LineEnding = "\r\n"

	// NL is the bare newline used when echoing a line feed that is
	// not part of a CRLF pair.
	NL = LF
)

// System returns the host operating system's native line ending.
func System() LineEnding {
	if runtime.GOOS == "windows" {
		return CRLF
	}
	return LF
}

func (le LineEnding) String() string { return string(le) }

// User is an authenticated identity, usually email-shaped.
type User string

func (u User) String() string { return string(u) }

// ErrReadOnly is returned when mutating a protected value through a
// read-only view.
var ErrReadOnly = errors.New("environment value is read only")

// Env is a mapping of named values plus a current-time supplier.
//
// Mutation from multiple goroutines is not the intended use; sessions
// hand independent copies to children via Clone instead of sharing.
// The mutex only keeps incidental concurrent reads safe.
type Env struct {
	mu        sync.RWMutex
	values    map[Name]any
	now       func() time.Time
	protected func(Name) bool
}

// New creates an environment with the given intrinsic state and an
// anonymous user.
func New(lineEnding LineEnding, locale Locale, now func() time.Time) *Env {
	if now == nil {
		now = time.Now
	}
	return &Env{
		values: map[Name]any{
			LineEndingName: lineEnding,
			LocaleName:     locale,
		},
		now: now,
	}
}

// Get returns the value bound to name.
func (e *Env) Get(name Name) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.values[name]
	return v, ok
}

// Set binds a value, rejecting protected names.
func (e *Env) Set(name Name, value any) error {
	if name == "" {
		return errors.New("environment: empty name")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.protected != nil && e.protected(name) {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	e.values[name] = value
	return nil
}

// Remove deletes a value, rejecting protected names.
func (e *Env) Remove(name Name) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.protected != nil && e.protected(name) {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	delete(e.values, name)
	return nil
}

// LineEnding returns the canonical line ending, CRLF when unset.
func (e *Env) LineEnding() LineEnding {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if le, ok := e.values[LineEndingName].(LineEnding); ok {
		return le
	}
	return CRLF
}

// SetLineEnding replaces the canonical line ending.
func (e *Env) SetLineEnding(le LineEnding) error {
	return e.Set(LineEndingName, le)
}

// Locale returns the session locale.
func (e *Env) Locale() Locale {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if l, ok := e.values[LocaleName].(Locale); ok {
		return l
	}
	return Locale{}
}

// User returns the bound identity, false when anonymous.
func (e *Env) User() (User, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	u, ok := e.values[UserName].(User)
	return u, ok
}

// SetUser binds an identity.
func (e *Env) SetUser(u User) error {
	return e.Set(UserName, u)
}

// Now returns the current time from the configured supplier.
func (e *Env) Now() time.Time {
	return e.now()
}

// Clone returns an independently mutable copy. Protection applied by
// ReadOnly is a property of the view and is not carried over.
func (e *Env) Clone() *Env {
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := make(map[Name]any, len(e.values))
	for k, v := range e.values {
		values[k] = v
	}
	return &Env{
		values: values,
		now:    e.now,
	}
}

// ReadOnly returns a view sharing this environment's values in which
// mutation of names matched by protected fails with ErrReadOnly.
func (e *Env) ReadOnly(protected func(Name) bool) *Env {
	return &Env{
		values:    e.values,
		now:       e.now,
		protected: protected,
	}
}

// String renders the environment as a brace-delimited, lexically
// sorted key=value list. String-like values are quoted and escaped,
// identifier and numeric values render bare.
func (e *Env) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(renderValue(e.values[Name(name)]))
	}
	sb.WriteByte('}')
	return sb.String()
}

func renderValue(v any) string {
	switch v := v.(type) {
	case LineEnding:
		return strconv.Quote(string(v))
	case string:
		return strconv.Quote(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
