package sshd

import (
	"context"
	"errors"
	"time"

	"github.com/gliderlabs/ssh"
	"go.uber.org/zap"

	"termserve/internal/environment"
	"termserve/internal/eval"
	"termserve/internal/id"
	"termserve/internal/logging"
	"termserve/internal/monitoring"
	"termserve/internal/registry"
	"termserve/internal/terminal"
)

// DefaultReadPoll bounds a single blocking line read in the evaluate
// loop; expired polls are liveness checks, not errors.
const DefaultReadPoll = 50 * time.Millisecond

// ErrServerClosed is returned by ListenAndServe after Shutdown or
// Close.
var ErrServerClosed = ssh.ErrServerClosed

// Config holds SSH server configuration.
type Config struct {
	Addr        string
	HostKeyPath string
	HostKeyBits int
	ReadPoll    time.Duration

	// Authenticators are pass-through callbacks into the wrapped
	// library; nil disables the method.
	PasswordAuth  func(user, password string) bool
	PublicKeyAuth func(user string, key ssh.PublicKey) bool
}

// Server wraps a gliderlabs/ssh server whose shell sessions are
// terminal session contexts.
type Server struct {
	cfg      Config
	ssh      *ssh.Server
	registry *registry.Registry
	factory  eval.Factory
	template *environment.Env
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates the server. The template environment is cloned for every
// session; metrics may be nil.
func New(cfg Config, reg *registry.Registry, factory eval.Factory, template *environment.Env, log *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	if reg == nil {
		return nil, errors.New("sshd: missing registry")
	}
	if factory == nil {
		return nil, errors.New("sshd: missing evaluator factory")
	}
	if template == nil {
		return nil, errors.New("sshd: missing template environment")
	}
	if log == nil {
		return nil, errors.New("sshd: missing logger")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":2222"
	}
	if cfg.ReadPoll <= 0 {
		cfg.ReadPoll = DefaultReadPoll
	}
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = "termserve_host_key"
	}

	signer, err := LoadOrCreateHostKey(cfg.HostKeyPath, cfg.HostKeyBits)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		registry: reg,
		factory:  factory,
		template: template,
		log:      log,
		metrics:  metrics,
	}

	srv := &ssh.Server{
		Addr:    cfg.Addr,
		Handler: s.handleSession,
	}
	srv.AddHostKey(signer)

	if cfg.PasswordAuth != nil {
		srv.PasswordHandler = func(ctx ssh.Context, password string) bool {
			return cfg.PasswordAuth(ctx.User(), password)
		}
	}
	if cfg.PublicKeyAuth != nil {
		srv.PublicKeyHandler = func(ctx ssh.Context, key ssh.PublicKey) bool {
			return cfg.PublicKeyAuth(ctx.User(), key)
		}
	}

	s.ssh = srv
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// ListenAndServe accepts connections until Shutdown or Close.
func (s *Server) ListenAndServe() error {
	s.log.Info("ssh server listening", zap.String("addr", s.cfg.Addr))
	return s.ssh.ListenAndServe()
}

// Shutdown stops accepting new connections and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.ssh.Shutdown(ctx)
}

// Close immediately tears down the listener and all connections.
func (s *Server) Close() error {
	return s.ssh.Close()
}

// handleSession is the library's shell callback. It bootstraps a
// terminal session and blocks until the transport tears down; the
// evaluate loop runs on its own goroutine.
func (s *Server) handleSession(sess ssh.Session) {
	log := s.log.With(
		zap.String("conn_id", id.NewConnID().String()),
		zap.String("remote", sess.RemoteAddr().String()),
	)

	tc := s.startShell(sess, log)
	if tc == nil {
		return
	}

	<-sess.Context().Done()

	// Transport-initiated teardown races with an evaluator-driven
	// exit; the loser sees ErrClosed and ignores it.
	if err := tc.Exit(nil); err != nil && !errors.Is(err, terminal.ErrClosed) {
		log.Error("close terminal on teardown", zap.Error(err))
	}
}
