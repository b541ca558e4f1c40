// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pool runs blocking name resolution on a fixed number of worker
// goroutines.
//
// A [Pool] wraps a [resolver.ResolveProber] whose calls block, like the
// system resolver. Resolves are queued in a single unbounded FIFO queue and
// executed by exactly as many workers as the pool was created with, so at
// most that many probes are ever running at once, regardless of the number
// of callers. A Pool implements [resolver.Executor], which is what an
// [resolver.IntervalResolver] needs to turn one-shot resolves into
// subscriptions.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bufbuild/nsenv/resolver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxWorkers is the largest number of workers a Pool can be created with.
const MaxWorkers = 1 << 16

var (
	// ErrInvalidWorkerCount is returned by New when the worker count is not
	// between 1 and MaxWorkers.
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	// ErrClosed is the result of every resolve that had not started when the
	// pool was closed, and of every resolve requested afterwards.
	ErrClosed = errors.New("worker pool closed")
	// ErrProbePanicked is wrapped by the result of a resolve whose prober
	// panicked.
	ErrProbePanicked = errors.New("resolve prober panicked")
)

// Option customizes a Pool.
type Option interface {
	apply(*Pool)
}

// WithLogger configures the logger used to report worker lifecycle and
// prober panics. By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	})
}

// Pool is a fixed-size pool of workers that run resolves. It is safe for
// concurrent use.
type Pool struct {
	prober  resolver.ResolveProber
	logger  *zap.Logger
	metrics metrics
	ctx     context.Context //nolint:containedctx // cancelled by Close to abandon probes
	cancel  context.CancelFunc
	group   errgroup.Group

	mu    sync.Mutex
	ready sync.Cond
	// +checklocks:mu
	queue []unit
	// +checklocks:mu
	closed bool

	closeOnce sync.Once
}

type unit struct {
	name   string
	result chan resolver.Result
}

// New starts a pool of the given number of workers, which run resolves with
// the given prober.
func New(workers int, prober resolver.ResolveProber, opts ...Option) (*Pool, error) {
	if workers < 1 || workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidWorkerCount, workers, MaxWorkers)
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		prober:  prober,
		logger:  zap.NewNop(),
		metrics: newMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
	pool.ready.L = &pool.mu
	for _, opt := range opts {
		opt.apply(pool)
	}
	for i := range workers {
		pool.group.Go(func() error {
			pool.work(i)
			return nil
		})
	}
	pool.logger.Debug("worker pool started", zap.Int("workers", workers))
	return pool, nil
}

// Execute queues a resolve of name. The returned channel receives exactly
// one result. It implements [resolver.Executor].
func (p *Pool) Execute(name string) <-chan resolver.Result {
	result := make(chan resolver.Result, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		result <- resolver.Result{Err: ErrClosed}
		return result
	}
	p.queue = append(p.queue, unit{name: name, result: result})
	p.metrics.QueueLength.Inc()
	p.ready.Signal()
	return result
}

// Resolve runs a resolve of name and waits for its result. If ctx is done
// first, Resolve returns ctx.Err() and the resolve runs to completion
// unobserved.
func (p *Pool) Resolve(ctx context.Context, name string) ([]resolver.Address, error) {
	results := p.Execute(name)
	select {
	case result := <-results:
		return result.Addresses, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the pool. Queued resolves that have not started fail with
// ErrClosed. Resolves in progress have their context cancelled and Close
// waits for them to return before returning itself.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		abandoned := p.queue
		p.queue = nil
		p.ready.Broadcast()
		p.mu.Unlock()

		p.cancel()
		for _, u := range abandoned {
			p.metrics.QueueLength.Dec()
			u.result <- resolver.Result{Err: ErrClosed}
		}
		_ = p.group.Wait()
		p.logger.Debug("worker pool stopped", zap.Int("abandoned", len(abandoned)))
	})
	return nil
}

func (p *Pool) work(worker int) {
	for {
		u, ok := p.next()
		if !ok {
			return
		}
		u.result <- p.probe(worker, u.name)
	}
}

// next blocks until there is a unit to run, or the pool is closed.
func (p *Pool) next() (unit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.ready.Wait()
	}
	if p.closed {
		return unit{}, false
	}
	u := p.queue[0]
	p.queue[0] = unit{}
	p.queue = p.queue[1:]
	p.metrics.QueueLength.Dec()
	return u, true
}

func (p *Pool) probe(worker int, name string) (result resolver.Result) {
	p.metrics.BusyWorkers.Inc()
	start := time.Now()
	defer func() {
		p.metrics.BusyWorkers.Dec()
		p.metrics.ProbeDuration.Observe(time.Since(start).Seconds())
		p.metrics.ProbesTotal.Inc()
		if r := recover(); r != nil {
			p.metrics.ProbePanics.Inc()
			p.logger.Error("resolve prober panicked",
				zap.Int("worker", worker),
				zap.String("name", name),
				zap.Any("panic", r),
				zap.StackSkip("stack", 1),
			)
			result = resolver.Result{Err: fmt.Errorf("%w: %v", ErrProbePanicked, r)}
		}
		if result.Err != nil {
			p.metrics.ProbeErrors.Inc()
		}
	}()
	addresses, err := p.prober.ResolveOnce(p.ctx, name)
	return resolver.Result{Addresses: addresses, Err: err}
}

type optionFunc func(*Pool)

func (f optionFunc) apply(p *Pool) {
	f(p)
}
