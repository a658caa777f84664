// Package config provides 12-factor configuration management for the
// terminal server.
//
// Configuration is loaded from environment variables with sensible
// defaults. CLI flags can override environment variables for
// development flexibility.
//
// Configuration Sections:
//   - SSH: terminal SSH server settings (address, host key, read poll)
//   - Debug: debug/metrics HTTP server settings
//   - Logging: log level and output format
//   - Eval: expression evaluator limits
package config
