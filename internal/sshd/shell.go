package sshd

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"termserve/internal/environment"
	"termserve/internal/eval"
	"termserve/internal/logging"
	"termserve/internal/terminal"
)

// userEnvName is the session environment variable carrying the login
// identity.
const userEnvName = "USER"

// transport is the slice of an SSH session the bootstrap needs.
// Narrowed so tests can substitute a fake.
type transport interface {
	io.Reader
	io.Writer
	User() string
	Environ() []string
	Stderr() io.ReadWriter
	Close() error
}

// startShell turns a freshly authenticated transport session into a
// running terminal loop. It returns nil when no terminal was created,
// in which case the channel has already been closed.
func (s *Server) startShell(tr transport, log *logging.Logger) *terminal.Context {
	login := resolveLogin(tr)

	user, diag := parseIdentity(login)
	if diag != "" {
		// No context exists yet to report through, so the failure is
		// handled locally: diagnostic line, flush, close.
		s.metrics.IdentityFailure()
		log.Warn("identity resolution failed", zap.String("diagnostic", diag))

		if _, err := io.WriteString(tr, diag+string(s.template.LineEnding())); err != nil {
			log.Error("write diagnostic", zap.Error(err))
		}
		if err := tr.Close(); err != nil {
			log.Error("close channel", zap.Error(fmt.Errorf("close transport session: %w", err)))
		}
		return nil
	}

	tc, err := s.registry.Allocate(func(tid terminal.ID) (*terminal.Context, error) {
		env := s.template.Clone()
		if err := env.SetUser(user); err != nil {
			return nil, err
		}
		// The bound identity is read only for the rest of the session.
		view := env.ReadOnly(func(n environment.Name) bool {
			return n == environment.UserName
		})

		return terminal.New(tid,
			tr, tr, tr.Stderr(),
			tr,
			view,
			eval.Instrument(eval.Bind(s.factory), s.metrics),
		)
	})
	if err != nil {
		log.Error("create terminal session", zap.Error(err))
		if cerr := tr.Close(); cerr != nil {
			log.Error("close channel", zap.Error(fmt.Errorf("close transport session: %w", cerr)))
		}
		return nil
	}

	log = log.With(zap.String("terminal", tc.ID().String()), zap.String("user", user.String()))
	log.Info("terminal session started")

	go s.runShell(tc, log)
	return tc
}

// resolveLogin extracts the login identity from the session
// environment, falling back to the SSH login name.
func resolveLogin(tr transport) string {
	for _, kv := range tr.Environ() {
		if v, ok := strings.CutPrefix(kv, userEnvName+"="); ok {
			return v
		}
	}
	return tr.User()
}

// parseIdentity validates the email-shaped login. A non-empty diag
// means the session must be rejected with that message.
func parseIdentity(login string) (environment.User, string) {
	if login == "" {
		return "", fmt.Sprintf("Missing %q from environment", userEnvName)
	}
	addr, err := mail.ParseAddress(login)
	if err != nil {
		return "", err.Error()
	}
	return environment.User(addr.Address), ""
}

// runShell is the per-session evaluate loop: the only goroutine this
// package owns, and the only place that blocks, on bounded line reads.
func (s *Server) runShell(tc *terminal.Context, log *logging.Logger) {
	defer func() {
		if err := tc.Exit(nil); err != nil && !errors.Is(err, terminal.ErrClosed) {
			log.Error("close terminal session", zap.Error(err))
		}
		s.registry.Release(tc.ID())
		log.Info("terminal session ended")
	}()

	input, err := tc.Input()
	if err != nil {
		return
	}

	for tc.IsOpen() {
		line, ok, err := input.ReadLine(s.cfg.ReadPoll)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("read input", zap.Error(err))
			}
			return
		}
		if !ok {
			continue
		}

		result, err := tc.Evaluate(line)
		if err != nil {
			if errors.Is(err, terminal.ErrClosed) {
				return
			}
			if p, perr := tc.ErrOutput(); perr == nil {
				_ = p.Println(err.Error())
				_ = p.Flush()
			}
			continue
		}
		if result != nil {
			if p, perr := tc.Output(); perr == nil {
				_ = p.Println(fmt.Sprintf("%v", result))
				_ = p.Flush()
			}
		}
	}
}
