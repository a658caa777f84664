// Package http provides the debug HTTP surface for the terminal
// server, implemented with the Gin framework.
//
// Endpoints:
//   - Health: / and /health
//   - Sessions: /sessions, /sessions/:id (GET, DELETE)
//   - Metrics: /metrics (Prometheus exposition)
//
// The debug server is an operator convenience: it exposes a read-only
// view of live sessions plus a force-close hook, and is bound to
// localhost by default.
package http
