package eval

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"termserve/internal/environment"
	"termserve/internal/terminal"
)

// DefaultTimeout bounds a single evaluation before the VM is
// interrupted.
const DefaultTimeout = 5 * time.Second

// Config defines evaluator limits.
type Config struct {
	Timeout time.Duration
}

// JS is a Factory producing one goja runtime per terminal.
type JS struct {
	cfg Config
}

// NewJS creates the JavaScript evaluator factory.
func NewJS(cfg Config) *JS {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &JS{cfg: cfg}
}

// NewSession builds a runtime with globals bound to tc.
func (j *JS) NewSession(tc *terminal.Context) (Session, error) {
	s := &jsSession{
		vm:      goja.New(),
		tc:      tc,
		timeout: j.cfg.Timeout,
	}
	if err := s.setupGlobals(); err != nil {
		return nil, err
	}
	return s, nil
}

type jsSession struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	tc      *terminal.Context
	timeout time.Duration
}

// Evaluate runs expression with the session timeout enforced via VM
// interrupt.
func (s *jsSession) Evaluate(expression string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt("evaluation timeout exceeded")
	})
	defer timer.Stop()
	defer s.vm.ClearInterrupt()

	val, err := s.vm.RunString(expression)
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

func (s *jsSession) Close() error { return nil }

func (s *jsSession) setupGlobals() error {
	vm := s.vm
	tc := s.tc

	globals := map[string]any{
		"terminal": uint64(tc.ID()),
		"print": func(call goja.FunctionCall) goja.Value {
			s.write(joinArgs(call), false, false)
			return goja.Undefined()
		},
		"println": func(call goja.FunctionCall) goja.Value {
			s.write(joinArgs(call), true, false)
			return goja.Undefined()
		},
		"printerr": func(call goja.FunctionCall) goja.Value {
			s.write(joinArgs(call), true, true)
			return goja.Undefined()
		},
		"env": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			v, ok := tc.Env().Get(environment.Name(name))
			if !ok {
				return goja.Undefined()
			}
			return vm.ToValue(fmt.Sprintf("%v", v))
		},
		"setenv": func(call goja.FunctionCall) goja.Value {
			name := environment.Name(call.Argument(0).String())
			if err := tc.SetValue(name, call.Argument(1).Export()); err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return goja.Undefined()
		},
		"unsetenv": func(call goja.FunctionCall) goja.Value {
			name := environment.Name(call.Argument(0).String())
			if err := tc.RemoveValue(name); err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return goja.Undefined()
		},
		"user": func(goja.FunctionCall) goja.Value {
			u, ok := tc.Env().User()
			if !ok {
				return goja.Undefined()
			}
			return vm.ToValue(u.String())
		},
		"exit": func(call goja.FunctionCall) goja.Value {
			// A concurrent close already did the work; nothing to
			// report into the script.
			_ = tc.Exit(call.Argument(0).Export())
			return goja.Undefined()
		},
	}

	for name, fn := range globals {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("eval: bind global %q: %w", name, err)
		}
	}
	return nil
}

// write prints to the terminal's output or error printer, quietly
// dropping output once the session is closed.
func (s *jsSession) write(text string, newline, stderr bool) {
	var p *terminal.Printer
	var err error
	if stderr {
		p, err = s.tc.ErrOutput()
	} else {
		p, err = s.tc.Output()
	}
	if err != nil {
		return
	}

	if newline {
		_ = p.Println(text)
	} else {
		_ = p.Print(text)
	}
	_ = p.Flush()
}

func joinArgs(call goja.FunctionCall) string {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
