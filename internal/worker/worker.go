// Package worker runs jobs one at a time per key while different keys run
// concurrently, bounded by a shared semaphore.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the key's queue has no free slot.
var ErrQueueFull = errors.New("worker queue full")

const DefaultIdleTimeout = 10 * time.Minute

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
	// IdleTimeout, when positive, calls OnIdle after that long without a job.
	// The worker exits if OnIdle returns true.
	IdleTimeout time.Duration
	OnIdle      func() bool
}

// Start consumes Jobs in order until the channel closes, Ctx is done or the
// worker retires after being idle.
func Start[J any](opts StartOptions[J]) {
	go func() {
		var idle <-chan time.Time
		var timer *time.Timer
		if opts.IdleTimeout > 0 && opts.OnIdle != nil {
			timer = time.NewTimer(opts.IdleTimeout)
			defer timer.Stop()
			idle = timer.C
		}
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case <-idle:
				if opts.OnIdle() {
					return
				}
				timer.Reset(opts.IdleTimeout)
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
				if timer != nil {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(opts.IdleTimeout)
				}
			}
		}
	}()
}

// TryEnqueue hands job to jobs without waiting for room.
func TryEnqueue[J any](workersCtx context.Context, jobs chan<- J, job J) error {
	if err := workersCtx.Err(); err != nil {
		return err
	}
	select {
	case jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

type PoolOptions struct {
	MaxConcurrent int
	// Buffer is the per-key queue length.
	Buffer int
	// IdleTimeout retires a key's worker once its queue has been empty that
	// long. Zero uses DefaultIdleTimeout; a negative value keeps workers forever.
	IdleTimeout time.Duration
}

// Pool lazily starts one worker per key and retires it when the key goes quiet.
type Pool[K comparable, J any] struct {
	ctx     context.Context
	sem     chan struct{}
	handle  func(context.Context, K, J)
	buffer  int
	idle    time.Duration
	mu      sync.Mutex
	workers map[K]chan J
}

func NewPool[K comparable, J any](ctx context.Context, opts PoolOptions, handle func(context.Context, K, J)) *Pool[K, J] {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Pool[K, J]{
		ctx:     ctx,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		handle:  handle,
		buffer:  opts.Buffer,
		idle:    opts.IdleTimeout,
		workers: make(map[K]chan J),
	}
}

// Submit queues job behind earlier jobs with the same key. It never waits:
// a full queue returns ErrQueueFull.
func (p *Pool[K, J]) Submit(key K, job J) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return TryEnqueue(p.ctx, p.queueLocked(key), job)
}

func (p *Pool[K, J]) queueLocked(key K) chan J {
	if q, ok := p.workers[key]; ok {
		return q
	}
	q := make(chan J, p.buffer)
	p.workers[key] = q
	Start(StartOptions[J]{
		Ctx:  p.ctx,
		Sem:  p.sem,
		Jobs: q,
		Handle: func(ctx context.Context, j J) {
			p.handle(ctx, key, j)
		},
		IdleTimeout: p.idle,
		OnIdle: func() bool {
			p.mu.Lock()
			defer p.mu.Unlock()
			// Submit sends under mu, so an empty queue here stays empty.
			if len(q) > 0 {
				return false
			}
			delete(p.workers, key)
			return true
		},
	})
	return q
}

func (p *Pool[K, J]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
