// Package sshd adapts the gliderlabs/ssh server library to the
// terminal session abstraction.
//
// The library owns the protocol, cryptography, and channel handling;
// this package implements its session callbacks: it resolves the
// authenticated identity, builds a terminal session context around the
// session's byte streams, and drives the evaluate loop until the
// session exits.
package sshd
