// Package server wires the SSH terminal server, the debug HTTP
// server, and their shared collaborators into one runnable unit.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"termserve/internal/config"
	"termserve/internal/environment"
	"termserve/internal/eval"
	httpdebug "termserve/internal/http"
	"termserve/internal/logging"
	"termserve/internal/monitoring"
	"termserve/internal/registry"
	"termserve/internal/sshd"
)

// DefaultLocale is the locale new sessions start with unless the
// template environment says otherwise.
const DefaultLocale = "en-AU"

// Server runs the SSH endpoint and, optionally, the debug HTTP
// endpoint. Both share one registry and one metrics set.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	registry *registry.Registry
	ssh      *sshd.Server
	debug    *http.Server
}

// New assembles a server from configuration. The template
// environment every session clones is CRLF-terminated with the
// default locale, matching what interactive SSH clients expect.
func New(cfg config.Config, log *logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.NewDefault()
	}

	metrics := monitoring.New()
	reg := registry.New(metrics)

	template := environment.New(
		environment.CRLF,
		environment.MustParseLocale(DefaultLocale),
		nil,
	)

	factory := eval.NewJS(eval.Config{Timeout: cfg.Eval.Timeout})

	sshServer, err := sshd.New(sshd.Config{
		Addr:        cfg.SSH.Addr,
		HostKeyPath: cfg.SSH.HostKeyPath,
		ReadPoll:    cfg.SSH.ReadPoll,
		// Any credential is accepted; the session identity comes from
		// the USER environment variable, not from authentication.
		PasswordAuth: func(user, password string) bool { return true },
	}, reg, factory, template, log, metrics)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: reg,
		ssh:      sshServer,
	}

	if cfg.Debug.Enabled {
		s.debug = &http.Server{
			Addr:    cfg.Debug.Addr,
			Handler: httpdebug.NewRouter(reg, nil, log),
		}
	}

	return s, nil
}

// Registry exposes the session registry, mainly for tests.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Run serves until the context is cancelled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := s.ssh.ListenAndServe(); err != nil && !errors.Is(err, sshd.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.debug != nil {
		go func() {
			s.log.Info("debug server listening", zap.String("addr", s.cfg.Debug.Addr))
			if err := s.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	s.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.ssh.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.debug != nil {
		if err := s.debug.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
