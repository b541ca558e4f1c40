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

package nsenv

import (
	"net"
	"os"

	"github.com/bufbuild/nsenv/picker"
	"github.com/bufbuild/nsenv/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option is an option used to customize how a router is built.
type Option interface {
	apply(*options)
}

// WithEnvVar configures the environment variable that Init and InitDefault
// read the configuration from. If not specified, [DefaultEnvVar] is used.
func WithEnvVar(name string) Option {
	return optionFunc(func(opts *options) {
		opts.envVar = name
	})
}

// WithLogger configures the logger of the router and everything it
// creates. If not specified, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	})
}

// WithProber replaces the blocking capability behind the std route. If not
// specified, names are resolved with [net.DefaultResolver], using addresses
// of both families.
func WithProber(prober resolver.ResolveProber) Option {
	return optionFunc(func(opts *options) {
		if prober != nil {
			opts.prober = prober
		}
	})
}

// WithPicker configures how [router.Router.ResolveOnce] chooses among the
// resolved addresses. If not specified, addresses are used in round-robin
// order.
func WithPicker(p picker.Picker) Option {
	return optionFunc(func(opts *options) {
		opts.picker = p
	})
}

// WithMetricsRegisterer registers the metrics of the worker pool with the
// given registerer. If not specified, metrics are collected but not
// registered anywhere.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return optionFunc(func(opts *options) {
		opts.registerer = registerer
	})
}

type options struct {
	envVar     string
	lookupEnv  func(string) (string, bool)
	logger     *zap.Logger
	prober     resolver.ResolveProber
	picker     picker.Picker
	registerer prometheus.Registerer
}

func newOptions(opts []Option) *options {
	options := &options{
		envVar:    DefaultEnvVar,
		lookupEnv: os.LookupEnv,
		logger:    zap.NewNop(),
		prober:    resolver.NewStdProber(net.DefaultResolver, resolver.UseBothIPv4AndIPv6),
	}
	for _, opt := range opts {
		opt.apply(options)
	}
	return options
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) {
	f(opts)
}
