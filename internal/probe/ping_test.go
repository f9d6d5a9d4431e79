package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the last command and returns a canned outcome.
type fakeRunner struct {
	code int
	err  error

	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (int, error) {
	f.name = name
	f.args = args
	return f.code, f.err
}

func TestExecPinger_Defaults(t *testing.T) {
	r := &fakeRunner{}
	p := NewExecPinger("", 0, 0, r)

	code, err := p.Ping(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "ping", r.name)
	assert.Equal(t, []string{"-c", "3", "192.0.2.1"}, r.args)
}

func TestExecPinger_UnreachableExitCode(t *testing.T) {
	p := NewExecPinger("ping", 3, time.Second, &fakeRunner{code: 1})

	code, err := p.Ping(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestExecPinger_CannotExecute(t *testing.T) {
	p := NewExecPinger("ping", 3, time.Second, &fakeRunner{code: -1, err: errors.New("executable file not found")})

	_, err := p.Ping(context.Background(), "192.0.2.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestExecPinger_RejectsNonIPv4(t *testing.T) {
	r := &fakeRunner{}
	p := NewExecPinger("ping", 3, time.Second, r)

	for _, addr := range []string{"", "-f", "2001:db8::1", "example.com"} {
		_, err := p.Ping(context.Background(), addr)
		assert.Error(t, err, "addr %q", addr)
	}
	assert.Empty(t, r.name, "runner must not be called for invalid input")
}

func TestExecPinger_CancelledContext(t *testing.T) {
	p := NewExecPinger("ping", 3, time.Second, &fakeRunner{code: -1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ping(ctx, "192.0.2.1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "hostmap-no-such-binary")
	assert.Error(t, err)
}
