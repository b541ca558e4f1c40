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
	"errors"
	"fmt"

	"github.com/bufbuild/nsenv/config"
	"github.com/bufbuild/nsenv/pool"
	"github.com/bufbuild/nsenv/resolver"
	"github.com/bufbuild/nsenv/router"
	"go.uber.org/zap"
)

// DefaultEnvVar is the environment variable read by Init and InitDefault
// unless WithEnvVar says otherwise.
const DefaultEnvVar = "RUST_NS"

// ErrUnsupportedRoute is the cause of an InitError for a route kind this
// package cannot build.
var ErrUnsupportedRoute = errors.New("unsupported route kind")

// InitError is returned when a router cannot be built from a
// configuration, for example because its worker pool cannot be created.
type InitError struct {
	// Route is the route that could not be built.
	Route config.Route
	// Err is the cause.
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init name resolution: route %q: %v", e.Route.Kind(), e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Init builds a router from the environment, falling back to the default
// configuration when the environment variable is unset or empty. It is
// equivalent to InitDefault(config.Default(), opts...).
func Init(opts ...Option) (*router.Router, error) {
	return InitDefault(config.Default(), opts...)
}

// InitDefault builds a router from the environment, falling back to cfg
// when the environment variable is unset or empty.
func InitDefault(cfg config.Config, opts ...Option) (*router.Router, error) {
	options := newOptions(opts)
	if value, ok := options.lookupEnv(options.envVar); ok && value != "" {
		parsed, err := config.ParseStrict(value)
		if err != nil {
			options.logger.Warn("ignored part of name resolution config",
				zap.String("env", options.envVar),
				zap.String("value", value),
				zap.Error(err),
			)
		}
		return build(parsed, "env", options)
	}
	return build(cfg, "default", options)
}

// ForceConfig builds a router from cfg, ignoring the environment.
func ForceConfig(cfg config.Config, opts ...Option) (*router.Router, error) {
	return build(cfg, "forced", newOptions(opts))
}

func build(cfg config.Config, source string, options *options) (*router.Router, error) {
	builder := router.NewConfig()
	switch route := cfg.Fallthrough().(type) {
	case config.Std:
		workers, err := newStdPool(route, options)
		if err != nil {
			return nil, &InitError{Route: route, Err: err}
		}
		builder.
			SetFallthrough(resolver.NewIntervalResolver(
				workers,
				route.PollInterval(),
				resolver.WithIntervalLogger(options.logger.Named("std")),
			)).
			Own(workers)
	default:
		// config.Unknown, and any route kind added after this version.
		return nil, &InitError{Route: route, Err: ErrUnsupportedRoute}
	}
	options.logger.Info("name resolution configured",
		zap.Stringer("config", cfg),
		zap.String("source", source),
	)
	return router.New(
		builder.Done(),
		router.WithPicker(options.picker),
		router.WithLogger(options.logger.Named("router")),
	), nil
}

func newStdPool(route config.Std, options *options) (*pool.Pool, error) {
	workers, err := pool.New(route.Threads(), options.prober, pool.WithLogger(options.logger.Named("pool")))
	if err != nil {
		return nil, err
	}
	if options.registerer != nil {
		for _, collector := range workers.Metrics() {
			if err := options.registerer.Register(collector); err != nil {
				_ = workers.Close()
				return nil, fmt.Errorf("register pool metrics: %w", err)
			}
		}
	}
	return workers, nil
}
