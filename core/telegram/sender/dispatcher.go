// Package sender delivers outbound Telegram calls (replies and reminder pushes)
// from a bounded queue drained by a small worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts Options
	jobs chan job
	stop chan struct{}
	mu   sync.RWMutex
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
	sent atomic.Uint64
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Sent   uint64
	Failed uint64
	Queued int
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules run for asynchronous execution. run may be called more than once
// when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit enqueues run, or calls it inline when d is nil or its queue is full or closed.
func (d *Dispatcher) Submit(ctx context.Context, action, endpoint string, run func() error) error {
	if d == nil {
		return run()
	}
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, "sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Stats reports delivery counters and the current queue depth.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.errs.Load(), Queued: len(d.jobs)}
}

// Close stops accepting jobs and waits for workers to drain the queue.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

// deliver runs j until it succeeds, fails permanently, runs out of attempts or exceeds
// MaxDuration. Exactly one of the sent and failed counters is bumped.
func (d *Dispatcher) deliver(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	budget, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "sender", "send.start", j.attrs()...)

	attempts := d.opts.MaxRetries + 1
	attempt := 1
	err := j.run()
	for ; err != nil && attempt < attempts && netutil.ShouldRetry(err); attempt++ {
		delay := netutil.RetryDelay(err, attempt, d.opts.RetryBackoff)
		logger.Debug(ctx, "sender", "send.retry.backoff",
			append(j.attrs(), slog.Int("attempt", attempt), slog.Duration("delay", delay))...)
		if waitErr := netutil.Sleep(budget, delay); waitErr != nil {
			err = waitErr
			break
		}
		err = j.run()
	}

	elapsed := time.Since(start)
	if err != nil {
		d.errs.Add(1)
		logger.Error(ctx, "sender", "send.fail", append(j.attrs(),
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("err_code", classifyError(err)),
			slog.Int("attempts", attempt),
			slog.Duration("elapsed", elapsed),
		)...)
		return
	}

	d.sent.Add(1)
	attrs := append(j.attrs(), slog.Duration("elapsed", elapsed))
	if attempt > 1 {
		logger.Info(ctx, "sender", "send.retry.success", append(attrs, slog.Int("attempt", attempt))...)
		return
	}
	logger.Debug(ctx, "sender", "send.success", attrs...)
}

// attrs carries only job fields; update metadata comes from ctx.
func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}
