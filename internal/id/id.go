// Package id provides ULID-based identifier generation for transport
// connections.
//
// Connection ids tag log entries for a single SSH connection from
// accept to teardown, including connections rejected before a terminal
// identity exists. They are deliberately distinct from terminal
// identifiers, which the session registry issues from its own counter.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConnID identifies one transport connection.
type ConnID string

// ConnPrefix makes connection ids recognizable in logs.
const ConnPrefix = "conn"

func (id ConnID) String() string { return string(id) }

// Generator generates prefixed ULIDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure
// entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewConnID generates a new connection id.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

// IsValid checks whether s is a well-formed prefixed id.
func IsValid(s string) bool {
	prefix, raw, found := strings.Cut(s, "_")
	if !found || prefix == "" {
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}
