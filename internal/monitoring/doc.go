/*
Package monitoring provides Prometheus metrics for the terminal server.

# Overview

Tracks the terminal session lifecycle (started, active, closed),
expression evaluation (count by status, duration), and login identity
resolution failures.

# Usage

	metrics := monitoring.New()
	metrics.SessionStarted()
	defer metrics.SessionClosed()

# Metrics Endpoint

Metrics are exposed through the standard Prometheus endpoint; the debug
HTTP server wires promhttp at /metrics.
*/
package monitoring
