package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"termserve/internal/config"
	"termserve/internal/logging"
	"termserve/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "termserve: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment.
	addr := flag.String("addr", cfg.SSH.Addr, "SSH listen address")
	hostKey := flag.String("host-key", cfg.SSH.HostKeyPath, "Host key path (created if absent)")
	debugAddr := flag.String("debug-addr", cfg.Debug.Addr, "Debug HTTP listen address")
	debug := flag.Bool("debug", cfg.Debug.Enabled, "Enable the debug HTTP server")
	logLevel := flag.String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.SSH.Addr = *addr
	cfg.SSH.HostKeyPath = *hostKey
	cfg.Debug.Addr = *debugAddr
	cfg.Debug.Enabled = *debug
	cfg.Logging.Level = *logLevel

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "termserve: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	srv, err := server.New(*cfg, log)
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
