package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jpalmerr/hostmap/internal/metrics"
	"github.com/jpalmerr/hostmap/internal/probe"
)

// ErrPoolHalted is returned by [Pool.Err] when the scan loop stopped on a
// pool-level failure.
var ErrPoolHalted = errors.New("scan pool halted")

// Prober is the unit of work run for every sampled address.
type Prober interface {
	Probe(ctx context.Context, addr string) (probe.Result, error)
}

// Pool probes sampled addresses concurrently.
//
// Pool draws one batch sized to its capacity at a time, submits every
// address and emits each result on [Pool.Results] as soon as that task
// finishes. Submission blocks while all workers are busy, so the next batch
// interleaves with the previous one only as capacity frees up.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Pool struct {
	sampler *Sampler
	prober  Prober
	size    int
	logger  *slog.Logger
	metrics *metrics.Metrics

	maxConsecutiveFailures int64
	consecutiveFailures    atomic.Int64

	sem     *semaphore.Weighted
	results chan probe.Result
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	tasks   sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
	doneOnce  sync.Once
	err       error
}

// PoolOption configures a [Pool].
type PoolOption func(*Pool)

// WithMaxConsecutiveFailures halts the pool after n task failures in a row
// with no success in between. Zero (the default) never halts.
func WithMaxConsecutiveFailures(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.maxConsecutiveFailures = int64(n)
		}
	}
}

// NewPool creates a [Pool] running at most size probes at once.
//
// A size of zero or less uses runtime.NumCPU(). The pool must be started
// with [Pool.Start] and stopped with [Pool.Stop].
func NewPool(sampler *Sampler, prober Prober, size int, logger *slog.Logger, m *metrics.Metrics, opts ...PoolOption) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		sampler: sampler,
		prober:  prober,
		size:    size,
		logger:  logger,
		metrics: m,
		sem:     semaphore.NewWeighted(int64(size)),
		results: make(chan probe.Result, size),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the maximum number of concurrent probes.
func (p *Pool) Size() int {
	return p.size
}

// Results returns the unordered stream of completed probes.
//
// The channel is closed once the pool has stopped and every in-flight task
// has finished.
func (p *Pool) Results() <-chan probe.Result {
	return p.results
}

// Done is closed when the scan loop has exited, either through Stop or a
// pool-level failure.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Err returns the pool-level failure that halted the scan loop, or nil.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start launches the scan loop in a background goroutine and returns.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	runCtx := p.ctx // capture under lock to avoid race
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info("scan pool started",
		"workers", p.size,
		"addresses", humanize.Comma(int64(p.sampler.Size())),
	)

	go func() {
		defer p.wg.Done()
		defer p.doneOnce.Do(func() { close(p.done) })
		defer p.closeOnce.Do(func() { close(p.results) })

		p.run(runCtx)
		p.tasks.Wait()

		if err := p.Err(); err != nil {
			p.logger.Error("scan loop halted", "error", err)
		}
	}()
}

// Stop cancels the scan loop and waits for in-flight probes to return.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op that still closes the results channel.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.cancel != nil {
			p.cancel()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()

	// ensure channels are closed even if Start() was never called
	p.closeOnce.Do(func() { close(p.results) })
	p.doneOnce.Do(func() { close(p.done) })
}

// run submits sampled addresses until ctx is cancelled.
func (p *Pool) run(ctx context.Context) {
	for batch := range p.sampler.Batches(p.size) {
		for _, addr := range batch {
			// wait for a free worker
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			p.tasks.Add(1)
			go p.runTask(ctx, addr.String())
		}
	}
}

// runTask probes one address and publishes its result.
func (p *Pool) runTask(ctx context.Context, addr string) {
	defer p.tasks.Done()
	defer p.sem.Release(1)

	p.metrics.TaskStarted()
	defer p.metrics.TaskFinished()

	start := time.Now()
	result, err := p.safeProbe(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down; the probe was abandoned
			return
		}
		p.metrics.ObserveProbe(metrics.OutcomeFailed, time.Since(start))
		p.logger.Warn("probe task failed", "address", addr, "error", err)
		p.recordFailure(err)
		return
	}
	p.consecutiveFailures.Store(0)

	outcome := metrics.OutcomeReachable
	if !result.Reachable() {
		outcome = metrics.OutcomeUnreachable
	}
	p.metrics.ObserveProbe(outcome, time.Since(start))

	select {
	case p.results <- result:
	case <-ctx.Done():
	}
}

// safeProbe calls the prober with panic recovery.
// If the prober panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (p *Pool) safeProbe(ctx context.Context, addr string) (result probe.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			p.logger.Error("probe panic",
				"correlation_id", correlationID,
				"address", addr,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			result = probe.Result{}
			err = fmt.Errorf("probe panic (correlation_id: %s)", correlationID)
		}
	}()
	return p.prober.Probe(ctx, addr)
}

// recordFailure counts a failed task and halts the pool when the
// consecutive failure limit is reached.
func (p *Pool) recordFailure(err error) {
	n := p.consecutiveFailures.Add(1)
	if p.maxConsecutiveFailures == 0 || n < p.maxConsecutiveFailures {
		return
	}

	p.mu.Lock()
	if p.err == nil {
		p.err = fmt.Errorf("%w: %d consecutive task failures, last: %v", ErrPoolHalted, n, err)
	}
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
