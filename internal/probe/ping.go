package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPingBinary  = "ping"
	defaultPingCount   = 3
	defaultPingTimeout = 15 * time.Second
)

// Runner abstracts command execution so the pinger can be unit-tested
// without sending packets.
type Runner interface {
	// Run executes name with args and returns its exit status. A non-zero
	// exit is not an error; err is only set when the command could not run.
	Run(ctx context.Context, name string, args ...string) (int, error)
}

// ExecRunner executes commands on the host via os/exec.
type ExecRunner struct{}

// Run starts the command, discards stdout and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	msg := strings.TrimSpace(stderr.String())
	if msg != "" {
		return -1, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return -1, fmt.Errorf("%s: %w", name, err)
}

// ExecPinger checks reachability with the system echo-request utility.
//
// Only the exit status is consumed: 0 means at least one reply arrived.
type ExecPinger struct {
	binary  string
	count   int
	timeout time.Duration
	runner  Runner
}

// NewExecPinger creates a pinger sending count echo requests with binary.
// Zero values fall back to "ping", 3 requests and a 15s deadline.
func NewExecPinger(binary string, count int, timeout time.Duration, runner Runner) *ExecPinger {
	if binary == "" {
		binary = defaultPingBinary
	}
	if count <= 0 {
		count = defaultPingCount
	}
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ExecPinger{
		binary:  binary,
		count:   count,
		timeout: timeout,
		runner:  runner,
	}
}

// Ping runs the echo check against addr and returns its exit status.
//
// An error is returned only when the check could not be executed at all or
// the caller's context was cancelled. Hitting the pinger's own deadline is
// reported as an unreachable exit status.
func (p *ExecPinger) Ping(ctx context.Context, addr string) (int, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is4() {
		return -1, fmt.Errorf("not an IPv4 address: %q", addr)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	code, err := p.runner.Run(runCtx, p.binary, "-c", strconv.Itoa(p.count), ip.String())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err != nil {
		return -1, err
	}
	return code, nil
}
