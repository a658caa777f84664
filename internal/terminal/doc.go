// Package terminal implements the per-connection session context: line
// input with live echo, line-ending-aware printers, environment state,
// and the open/closed lifecycle with an evaluate-and-exit contract.
//
// The package is transport-agnostic. A transport adapter (see
// internal/sshd) supplies raw byte streams and a close handle; the
// context never learns which library produced them.
package terminal
