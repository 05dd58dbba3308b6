// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of background work. The alias keeps call sites compatible
// with plain func literals.
type Task = func(ctx context.Context) error

// Pool is a small bounded worker pool for detached best-effort work
// (entitlement sync). Tasks are retried with exponential backoff; a
// saturated queue drops the task rather than back-pressuring the
// webhook path that submitted it.
type Pool struct {
	wg         sync.WaitGroup
	jobs       chan Task
	quit       chan struct{}
	n          int
	maxRetries int
	retryDelay time.Duration
	log        *zerolog.Logger
}

func NewPool(workers, maxRetries int, retryDelay time.Duration, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Pool{
		jobs:       make(chan Task, workers*4),
		quit:       make(chan struct{}),
		n:          workers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	delay := p.retryDelay
	for attempt := 0; ; attempt++ {
		err := task(ctx)
		if err == nil {
			return
		}
		if attempt >= p.maxRetries {
			p.log.Warn().Err(err).Int("worker", id).Int("attempts", attempt+1).Msg("background task gave up")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}
