package sshd

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termserve/internal/environment"
	"termserve/internal/eval"
	"termserve/internal/logging"
	"termserve/internal/monitoring"
	"termserve/internal/registry"
	"termserve/internal/terminal"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeTransport stands in for an ssh.Session in bootstrap tests.
type fakeTransport struct {
	in      io.Reader
	out     syncBuffer
	errOut  syncBuffer
	user    string
	environ []string

	mu         sync.Mutex
	closeCount int
	closedCh   chan struct{}
}

func newFakeTransport(user string, environ []string, input string) *fakeTransport {
	return &fakeTransport{
		in:       strings.NewReader(input),
		user:     user,
		environ:  environ,
		closedCh: make(chan struct{}),
	}
}

// newOpenFakeTransport keeps the input stream open so the session
// stays alive for the duration of the test.
func newOpenFakeTransport(t *testing.T, user string, environ []string) *fakeTransport {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	tr := newFakeTransport(user, environ, "")
	tr.in = pr
	return tr
}

func (f *fakeTransport) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTransport) Write(p []byte) (int, error) { return f.out.Write(p) }
func (f *fakeTransport) User() string                { return f.user }
func (f *fakeTransport) Environ() []string           { return f.environ }
func (f *fakeTransport) Stderr() io.ReadWriter       { return &f.errOut }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if f.closeCount == 1 {
		close(f.closedCh)
	}
	return nil
}

func (f *fakeTransport) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeTransport) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-f.closedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("transport was not closed")
	}
}

// echoSession evaluates by reporting the expression back, which keeps
// loop tests deterministic.
type echoSession struct{}

func (echoSession) Evaluate(expr string) (any, error) {
	if expr == "fail" {
		return nil, errors.New("evaluation refused")
	}
	return "got:" + expr, nil
}

func (echoSession) Close() error { return nil }

type echoFactory struct{}

func (echoFactory) NewSession(*terminal.Context) (eval.Session, error) {
	return echoSession{}, nil
}

type fixture struct {
	srv     *Server
	reg     *registry.Registry
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	metrics := monitoring.NewWith(prometheus.NewRegistry())
	reg := registry.New(metrics)
	template := environment.New(environment.CRLF, environment.MustParseLocale("en-AU"), nil)

	srv, err := New(Config{
		HostKeyPath: filepath.Join(t.TempDir(), "host_key"),
		HostKeyBits: 1024,
		ReadPoll:    10 * time.Millisecond,
	}, reg, echoFactory{}, template, logging.NewNop(), metrics)
	require.NoError(t, err)

	return &fixture{srv: srv, reg: reg, metrics: metrics}
}

func TestStartShellMissingUser(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport("", nil, "")

	tc := f.srv.startShell(tr, logging.NewNop())

	assert.Nil(t, tc)
	assert.Equal(t, "Missing \"USER\" from environment\r\n", tr.out.String())
	assert.Equal(t, 1, tr.closes())
	assert.Equal(t, 0, f.reg.Count(), "no session may be registered")
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.IdentityFailures))
}

func TestStartShellMalformedIdentity(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport("not an email", nil, "")

	tc := f.srv.startShell(tr, logging.NewNop())

	assert.Nil(t, tc)
	out := tr.out.String()
	assert.Contains(t, out, "mail:", "diagnostic must surface the parser's message")
	assert.True(t, strings.HasSuffix(out, "\r\n"))
	assert.Equal(t, 1, tr.closes())
	assert.Equal(t, 0, f.reg.Count())
}

func TestStartShellBindsUserFromEnviron(t *testing.T) {
	f := newFixture(t)
	tr := newOpenFakeTransport(t, "ignored-login", []string{"TERM=xterm", "USER=alice@example.com"})

	tc := f.srv.startShell(tr, logging.NewNop())
	require.NotNil(t, tc)
	defer tc.Exit(nil)

	u, ok := tc.Env().User()
	require.True(t, ok)
	assert.Equal(t, environment.User("alice@example.com"), u)

	// The bound identity is protected from further mutation.
	err := tc.SetUser("mallory@example.com")
	assert.ErrorIs(t, err, environment.ErrReadOnly)

	// Registered under its terminal id.
	got, ok := f.reg.Get(tc.ID())
	require.True(t, ok)
	assert.Same(t, tc, got)
}

func TestStartShellFallsBackToLoginName(t *testing.T) {
	f := newFixture(t)
	tr := newOpenFakeTransport(t, "bob@example.com", nil)

	tc := f.srv.startShell(tr, logging.NewNop())
	require.NotNil(t, tc)
	defer tc.Exit(nil)

	u, _ := tc.Env().User()
	assert.Equal(t, environment.User("bob@example.com"), u)
}

func TestShellLoopEvaluatesUntilEOF(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport("", []string{"USER=alice@example.com"}, "1+2\r\n")

	tc := f.srv.startShell(tr, logging.NewNop())
	require.NotNil(t, tc)

	// EOF after the single line ends the loop, which exits the
	// terminal and detaches from the transport.
	tr.waitClosed(t)
	assert.False(t, tc.IsOpen())
	assert.Equal(t, 1, tr.closes())

	out := tr.out.String()
	assert.Contains(t, out, "1+2\r\n", "input must be echoed live")
	assert.Contains(t, out, "got:1+2\r\n", "result must be printed")

	// Identity released from the registry.
	assert.Eventually(t, func() bool { return f.reg.Count() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestShellLoopPrintsEvaluatorErrors(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport("", []string{"USER=alice@example.com"}, "fail\r\n")

	tc := f.srv.startShell(tr, logging.NewNop())
	require.NotNil(t, tc)

	tr.waitClosed(t)
	assert.False(t, tc.IsOpen())
	assert.Contains(t, tr.errOut.String(), "evaluation refused")
}

func TestTeardownAfterLoopExitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tr := newFakeTransport("", []string{"USER=alice@example.com"}, "")

	tc := f.srv.startShell(tr, logging.NewNop())
	require.NotNil(t, tc)

	tr.waitClosed(t)

	// The transport teardown path force-closes; the second transition
	// must observe ErrClosed and treat it as a no-op.
	err := tc.Exit(nil)
	assert.ErrorIs(t, err, terminal.ErrClosed)
	assert.Equal(t, 1, tr.closes())
}

func TestParseIdentity(t *testing.T) {
	user, diag := parseIdentity("carol@example.com")
	assert.Empty(t, diag)
	assert.Equal(t, environment.User("carol@example.com"), user)

	_, diag = parseIdentity("")
	assert.Equal(t, `Missing "USER" from environment`, diag)

	_, diag = parseIdentity("not-an-email")
	assert.NotEmpty(t, diag)
}

func TestNewValidatesCollaborators(t *testing.T) {
	template := environment.New(environment.CRLF, environment.MustParseLocale("en-AU"), nil)
	reg := registry.New(nil)

	_, err := New(Config{}, nil, echoFactory{}, template, logging.NewNop(), nil)
	assert.Error(t, err)

	_, err = New(Config{}, reg, nil, template, logging.NewNop(), nil)
	assert.Error(t, err)

	_, err = New(Config{}, reg, echoFactory{}, nil, logging.NewNop(), nil)
	assert.Error(t, err)

	_, err = New(Config{}, reg, echoFactory{}, template, nil, nil)
	assert.Error(t, err)
}
