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

package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPollInterval is the poll interval of a std route when none is
	// configured.
	DefaultPollInterval = time.Second
	// DefaultThreads is the worker count of a std route when none is
	// configured.
	DefaultThreads = 4
)

// Config is the resolver configuration. It is immutable; use [New],
// [Default] or [Parse] to obtain one.
type Config struct {
	fallthroughRoute Route
}

// Option customizes a Config built with [New].
type Option interface {
	apply(*Config)
}

// WithFallthrough sets the route used for names that match no more specific
// route. A nil route leaves the default in place.
func WithFallthrough(route Route) Option {
	return optionFunc(func(c *Config) {
		if route != nil {
			c.fallthroughRoute = route
		}
	})
}

// Default returns the configuration used when nothing is configured: a std
// fallthrough route with default settings.
func Default() Config {
	return Config{fallthroughRoute: NewStd()}
}

// New returns the default configuration with the given options applied.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return cfg
}

// Fallthrough returns the route applied when no more specific route matches
// a queried name.
func (c Config) Fallthrough() Route {
	if c.fallthroughRoute == nil {
		// zero Config
		return NewStd()
	}
	return c.fallthroughRoute
}

// String renders the configuration in the directive grammar accepted by
// [Parse].
func (c Config) String() string {
	return c.Fallthrough().String()
}

// Route is a named resolution policy. The set of implementations is closed
// to this package; code that switches on a Route should handle [Std],
// [Unknown] and a default case, so that new route kinds can be added without
// breaking it.
type Route interface {
	// Kind is the route name used in the directive grammar.
	Kind() string
	// String renders the route in the directive grammar.
	String() string

	isRoute()
}

// Std configures the standard library resolver, run on a pool of worker
// goroutines. The standard resolver has no way of subscribing to changes,
// so subscriptions poll it on an interval.
type Std struct {
	pollInterval time.Duration
	threads      int
}

// StdOption customizes a [Std] route built with [NewStd].
type StdOption interface {
	applyStd(*Std)
}

// WithPollInterval sets how often subscribed names are resolved again.
// Non-positive intervals are ignored.
func WithPollInterval(interval time.Duration) StdOption {
	return stdOptionFunc(func(s *Std) {
		if interval > 0 {
			s.pollInterval = interval
		}
	})
}

// WithThreads sets the number of worker goroutines that run blocking
// lookups. Values below one are ignored.
func WithThreads(threads int) StdOption {
	return stdOptionFunc(func(s *Std) {
		if threads >= 1 {
			s.threads = threads
		}
	})
}

// NewStd returns a std route with default settings and the given options
// applied.
func NewStd(opts ...StdOption) Std {
	std := Std{
		pollInterval: DefaultPollInterval,
		threads:      DefaultThreads,
	}
	for _, opt := range opts {
		opt.applyStd(&std)
	}
	return std
}

// PollInterval is the minimum time between the starts of two consecutive
// resolves of one subscription.
func (s Std) PollInterval() time.Duration {
	if s.pollInterval <= 0 {
		return DefaultPollInterval
	}
	return s.pollInterval
}

// Threads is the number of worker goroutines.
func (s Std) Threads() int {
	if s.threads < 1 {
		return DefaultThreads
	}
	return s.threads
}

// Kind implements Route.
func (Std) Kind() string {
	return "std"
}

// String implements Route. Poll intervals that are not a whole number of
// seconds are rounded up, as the grammar only has second resolution.
func (s Std) String() string {
	ivl := s.PollInterval()
	secs := int64(ivl / time.Second)
	if ivl%time.Second != 0 {
		secs++
	}
	var builder strings.Builder
	builder.WriteString(s.Kind())
	builder.WriteString(":threads=")
	builder.WriteString(strconv.Itoa(s.Threads()))
	builder.WriteString(":poll_ivl=")
	builder.WriteString(strconv.FormatInt(secs, 10))
	return builder.String()
}

func (Std) isRoute() {}

// Unknown stands for a route kind this version does not implement. The
// parser never produces it; it exists so that switches over [Route] have an
// explicit arm for kinds added later.
type Unknown struct {
	Name string
}

// Kind implements Route.
func (u Unknown) Kind() string {
	return u.Name
}

// String implements Route.
func (u Unknown) String() string {
	return u.Name
}

func (Unknown) isRoute() {}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) {
	f(c)
}

type stdOptionFunc func(*Std)

func (f stdOptionFunc) applyStd(s *Std) {
	f(s)
}
