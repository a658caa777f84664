// Package environment holds the named-value state scoped to a terminal
// session: locale, line ending, authenticated user, and arbitrary
// extension values.
//
// An Env is clonable (independent copy per session) and can be wrapped
// read-only for selected names, which is how the bound user identity is
// protected from mutation after login.
package environment
