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

package resolver

import (
	"context"
	"io"
	"maps"
	"time"

	"github.com/bufbuild/nsenv/internal"
	"go.uber.org/zap"
)

// IntervalResolver turns one-shot resolves, run by an [Executor], into
// continuous resolution by repeating them on an interval. It implements
// both [Resolver] and [SingleShotResolver].
//
// Every task created by New resolves its name immediately and then again no
// earlier than the interval after the previous resolve began. A task never
// has more than one resolve outstanding: the next one is only scheduled once
// the previous one completed. A result set equal to the last one delivered
// (ignoring order) is not delivered again. Errors are always delivered and
// do not change the schedule.
//
// The task goroutines only wait on timers and on the executor; they never
// call a [ResolveProber] themselves.
type IntervalResolver struct {
	executor Executor
	interval time.Duration
	clock    internal.Clock
	logger   *zap.Logger
}

// IntervalOption customizes an IntervalResolver.
type IntervalOption interface {
	applyInterval(*IntervalResolver)
}

// WithIntervalLogger configures the logger used to report the lifecycle of
// subscriptions. By default nothing is logged.
func WithIntervalLogger(logger *zap.Logger) IntervalOption {
	return intervalOptionFunc(func(r *IntervalResolver) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// NewIntervalResolver creates a resolver that polls names through the given
// executor, no more often than once per interval per subscription.
func NewIntervalResolver(executor Executor, interval time.Duration, opts ...IntervalOption) *IntervalResolver {
	resolver := &IntervalResolver{
		executor: executor,
		interval: interval,
		clock:    internal.NewRealClock(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt.applyInterval(resolver)
	}
	return resolver
}

// ResolveOnce runs a single resolve of name. If ctx is done first, the
// resolve keeps running to completion but its result is dropped.
func (r *IntervalResolver) ResolveOnce(ctx context.Context, name string) ([]Address, error) {
	results := r.executor.Execute(name)
	select {
	case result := <-results:
		return result.Addresses, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// New starts a subscription task for name. See [Resolver].
func (r *IntervalResolver) New(ctx context.Context, name string, receiver Receiver) io.Closer {
	ctx, cancel := context.WithCancel(ctx)
	task := &intervalResolverTask{
		cancel:     cancel,
		doneSignal: make(chan struct{}),
		resolver:   r,
		name:       name,
		receiver:   receiver,
		logger:     r.logger.With(zap.String("name", name)),
	}
	go task.run(ctx)
	return task
}

type intervalResolverTask struct {
	cancel     context.CancelFunc
	doneSignal chan struct{}
	resolver   *IntervalResolver
	name       string
	receiver   Receiver
	logger     *zap.Logger
}

func (task *intervalResolverTask) Close() error {
	task.cancel()
	<-task.doneSignal
	return nil
}

func (task *intervalResolverTask) run(ctx context.Context) {
	defer close(task.doneSignal)
	defer task.cancel()

	clock := task.resolver.clock
	task.logger.Debug("subscription started", zap.Duration("interval", task.resolver.interval))
	defer task.logger.Debug("subscription stopped")

	// nil until the first address set is delivered
	var lastPublished map[string]struct{}
	for {
		if ctx.Err() != nil {
			return
		}
		start := clock.Now()
		results := task.resolver.executor.Execute(task.name)
		var result Result
		select {
		case <-ctx.Done():
			// The resolve is left to finish on its own; its result is dropped.
			return
		case result = <-results:
		}
		if ctx.Err() != nil {
			return
		}

		switch {
		case result.Err != nil:
			task.receiver.OnResolveError(result.Err)
		case lastPublished != nil && sameAddresses(lastPublished, result.Addresses):
			task.logger.Debug("addresses unchanged", zap.Int("count", len(result.Addresses)))
		default:
			lastPublished = addressSet(result.Addresses)
			task.receiver.OnResolve(result.Addresses)
		}

		wait := task.resolver.interval - clock.Since(start)
		if wait <= 0 {
			continue
		}
		timer := clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func addressSet(addresses []Address) map[string]struct{} {
	set := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		set[address.HostPort] = struct{}{}
	}
	return set
}

// sameAddresses reports whether addresses holds exactly the members of set,
// irrespective of order and duplicates.
func sameAddresses(set map[string]struct{}, addresses []Address) bool {
	return maps.Equal(set, addressSet(addresses))
}

type intervalOptionFunc func(*IntervalResolver)

func (f intervalOptionFunc) applyInterval(r *IntervalResolver) {
	f(r)
}
