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

// Package router dispatches name resolution to routes.
//
// A [Router] holds a table of routes keyed by name suffix, plus a
// fallthrough route used for every name that no suffix matches. Each
// route is both a continuous [resolver.Resolver] and a
// [resolver.SingleShotResolver]; [resolver.IntervalResolver] is the usual
// implementation.
//
// The router is what applications use: it answers one-shot queries with
// [Router.ResolveOnce] and [Router.ResolveAll], and subscriptions with
// [Router.ResolveAuto]. In all cases a port in the queried name
// ("host:port") takes precedence over the default port given by the
// caller, and resolved addresses without a port get that port.
package router

import (
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bufbuild/nsenv/picker"
	"github.com/bufbuild/nsenv/resolver"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

var (
	// ErrNoRoute is returned when a name matches no suffix route and there
	// is no fallthrough route.
	ErrNoRoute = errors.New("no route for name")
	// ErrClosed is returned by resolves made after the router was closed.
	ErrClosed = errors.New("router closed")
)

// Route is a resolution policy the router can dispatch names to.
type Route interface {
	resolver.Resolver
	resolver.SingleShotResolver
}

// Config is the route table of a Router. Build one with [NewConfig].
type Config struct {
	fallthroughRoute Route
	suffixes         []suffixRoute
	owned            []io.Closer
}

type suffixRoute struct {
	suffix string
	route  Route
}

// ConfigBuilder builds a Config.
type ConfigBuilder struct {
	cfg      Config
	suffixes map[string]Route
}

// NewConfig starts building a route table.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{suffixes: map[string]Route{}}
}

// SetFallthrough sets the route used for names that match no suffix.
func (b *ConfigBuilder) SetFallthrough(route Route) *ConfigBuilder {
	b.cfg.fallthroughRoute = route
	return b
}

// AddSuffix routes names equal to suffix, or ending in "."+suffix, to the
// given route. Matching ignores case and a trailing dot. Adding the same
// suffix twice replaces the earlier route.
func (b *ConfigBuilder) AddSuffix(suffix string, route Route) *ConfigBuilder {
	b.suffixes[normalizeName(suffix)] = route
	return b
}

// Own registers a resource that is closed along with the router, such as
// the worker pool behind a route. Resources are closed in the reverse order
// of registration.
func (b *ConfigBuilder) Own(closer io.Closer) *ConfigBuilder {
	b.cfg.owned = append(b.cfg.owned, closer)
	return b
}

// Done returns the built Config.
func (b *ConfigBuilder) Done() *Config {
	cfg := &Config{
		fallthroughRoute: b.cfg.fallthroughRoute,
		suffixes:         make([]suffixRoute, 0, len(b.suffixes)),
		owned:            append([]io.Closer(nil), b.cfg.owned...),
	}
	for suffix, route := range b.suffixes {
		cfg.suffixes = append(cfg.suffixes, suffixRoute{suffix: suffix, route: route})
	}
	// longest first, so the first match is the most specific
	sort.Slice(cfg.suffixes, func(i, j int) bool {
		if len(cfg.suffixes[i].suffix) != len(cfg.suffixes[j].suffix) {
			return len(cfg.suffixes[i].suffix) > len(cfg.suffixes[j].suffix)
		}
		return cfg.suffixes[i].suffix < cfg.suffixes[j].suffix
	})
	return cfg
}

// Option customizes a Router.
type Option interface {
	apply(*Router)
}

// WithPicker configures how ResolveOnce selects one address from a
// resolved set. The default is [picker.NewRoundRobin].
func WithPicker(p picker.Picker) Option {
	return optionFunc(func(r *Router) {
		if p != nil {
			r.picker = p
		}
	})
}

// WithLogger configures the router's logger. By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// Router resolves names by dispatching them to routes. It is safe for
// concurrent use.
type Router struct {
	cfg    *Config
	picker picker.Picker
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error

	mu sync.Mutex
	// +checklocks:mu
	subscriptions map[*subscription]struct{}
	// +checklocks:mu
	closed bool
}

// New creates a router over the given route table.
func New(cfg *Config, opts ...Option) *Router {
	router := &Router{
		cfg:           cfg,
		picker:        picker.NewRoundRobin(),
		logger:        zap.NewNop(),
		subscriptions: map[*subscription]struct{}{},
	}
	for _, opt := range opts {
		opt.apply(router)
	}
	return router
}

// ResolveOnce resolves name once and picks a single address. A port in name
// overrides defaultPort.
func (r *Router) ResolveOnce(ctx context.Context, name string, defaultPort int) (resolver.Address, error) {
	addresses, err := r.ResolveAll(ctx, name, defaultPort)
	if err != nil {
		return resolver.Address{}, err
	}
	return r.picker.Pick(addresses)
}

// ResolveAll resolves name once and returns every resolved address. A port
// in name overrides defaultPort.
func (r *Router) ResolveAll(ctx context.Context, name string, defaultPort int) ([]resolver.Address, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	host, port := splitName(name, defaultPort)
	route, err := r.route(host)
	if err != nil {
		return nil, err
	}
	addresses, err := route.ResolveOnce(ctx, host)
	if err != nil {
		return nil, err
	}
	return resolver.CompletePorts(addresses, port), nil
}

// ResolveAuto subscribes the receiver to updates of the addresses of name.
// Every address set delivered has ports, with a port in name overriding
// defaultPort. The subscription lasts until the returned closer is closed,
// ctx is done, or the router is closed.
func (r *Router) ResolveAuto(ctx context.Context, name string, defaultPort int, receiver resolver.Receiver) io.Closer {
	host, port := splitName(name, defaultPort)
	route, err := r.route(host)
	if err != nil {
		receiver.OnResolveError(err)
		return nopCloser{}
	}

	sub, ok := r.subscribe(ctx, route, host, resolver.WithDefaultPort(receiver, port))
	if !ok {
		receiver.OnResolveError(ErrClosed)
		return nopCloser{}
	}
	return closerFunc(func() error {
		defer r.forget(sub)
		sub.stop()
		return sub.Close()
	})
}

// Close stops every subscription made through the router and closes the
// resources owned by its route table. No subscription delivers anything
// after Close returns. It returns the aggregated errors of those resources.
func (r *Router) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		subscriptions := r.subscriptions
		r.subscriptions = nil
		r.mu.Unlock()

		var errs *multierror.Error
		for sub := range subscriptions {
			sub.stop()
			if err := sub.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for i := len(r.cfg.owned) - 1; i >= 0; i-- {
			if err := r.cfg.owned[i].Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		r.closeErr = errs.ErrorOrNil()
		r.logger.Debug("router closed",
			zap.Int("subscriptions", len(subscriptions)),
			zap.Error(r.closeErr),
		)
	})
	return r.closeErr
}

func (r *Router) subscribe(ctx context.Context, route Route, host string, receiver resolver.Receiver) (*subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		cancel: cancel,
		task:   route.New(taskCtx, host, receiver),
	}
	r.subscriptions[sub] = struct{}{}
	// a subscription ended by its caller's context needs no closer call
	sub.stop = context.AfterFunc(ctx, func() {
		_ = sub.Close()
		r.forget(sub)
	})
	return sub, true
}

func (r *Router) forget(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscriptions, sub)
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// route returns the most specific route for host.
func (r *Router) route(host string) (Route, error) {
	name := normalizeName(host)
	for _, candidate := range r.cfg.suffixes {
		if name == candidate.suffix || strings.HasSuffix(name, "."+candidate.suffix) {
			return candidate.route, nil
		}
	}
	if r.cfg.fallthroughRoute == nil {
		return nil, ErrNoRoute
	}
	return r.cfg.fallthroughRoute, nil
}

// splitName separates an optional port from name. The port in name, if
// any, takes precedence over defaultPort.
func splitName(name string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(name)
	if err != nil {
		return name, defaultPort
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		// not a numeric port; leave the name alone
		return name, defaultPort
	}
	return host, int(port)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

type optionFunc func(*Router)

func (f optionFunc) apply(r *Router) {
	f(r)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// subscription is one live ResolveAuto task. Close may be called by the
// router, by the caller and once the caller's context is done.
type subscription struct {
	cancel context.CancelFunc
	stop   func() bool
	task   io.Closer

	closeOnce sync.Once
	closeErr  error
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.task.Close()
	})
	return s.closeErr
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
