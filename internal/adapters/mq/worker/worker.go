// Package worker runs background jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultBacklog          = 64
	poolShutdownTimeout     = 30 * time.Second
)

// Job outcomes recorded in metrics.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// ErrStopped is returned by Submit after Shutdown has begun.
var ErrStopped = errors.New("worker pool stopped")

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool manages multiple workers draining a shared job channel.
type Pool struct {
	size    int
	backlog int
	name    string
	jobs    chan Job
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	done     atomic.Int64
	failures atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of size workers. size < 1 picks a multiple of the
// CPU count.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		size:    size,
		backlog: defaultBacklog,
		name:    "worker-pool",
		logger:  logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(p.name)
	p.jobs = make(chan Job, p.backlog)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.name+"-"+strconv.Itoa(i))
	}
	metrics.UpdateWorkerActiveCount(p.size)
}

func (p *Pool) run(ctx context.Context, name string) {
	defer p.wg.Done()
	log := p.logger.Named(name)
	for job := range p.jobs {
		if ctx.Err() != nil {
			// Drain without running so Shutdown does not block.
			continue
		}
		p.process(ctx, log, job)
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	metrics.RecordWorkerJobLatency(float64(time.Since(start).Milliseconds()))

	p.done.Add(1)
	if err != nil {
		p.failures.Add(1)
		metrics.RecordWorkerJob(outcomeError)
		metrics.RecordErrorByComponent("worker", "job_error")
		log.Warn(ctx, "job failed", logger.String("job", job.Name), logger.Error(err))
		return
	}
	metrics.RecordWorkerJob(outcomeOK)
	log.Debug(ctx, "job done", logger.String("job", job.Name), logger.Duration("elapsed", time.Since(start)))
}

// Submit queues job, blocking while the backlog is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no Run func", job.Name)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the number of finished and failed jobs.
func (p *Pool) Stats() (done, failed int64) {
	return p.done.Load(), p.failures.Load()
}

// Shutdown stops accepting jobs and waits for queued ones to finish, up to
// ctx's deadline or 30s.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-finished:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}
