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

// Command nsresolve resolves host names using the name resolution
// configured by the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bufbuild/nsenv"
	"github.com/bufbuild/nsenv/resolver"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	port        int
	watch       time.Duration
	envVar      string
	envFiles    []string
	verbose     bool
	metricsAddr string
}

func newCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "nsresolve [flags] name...",
		Short: "Resolve host names using environment-configured name resolution",
		Long: `Resolve host names using the name resolution configured by the
environment. The configuration is read from the RUST_NS environment variable
(see --env-var), for example "std:threads=2:poll_ivl=5".`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), f, args)
		},
	}
	cmd.Flags().IntVarP(&f.port, "port", "p", 80, "port used for names that do not carry one")
	cmd.Flags().DurationVarP(&f.watch, "watch", "w", 0, "subscribe to the names and print updates for this long")
	cmd.Flags().StringVar(&f.envVar, "env-var", nsenv.DefaultEnvVar, "environment variable holding the resolution config")
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", nil, "dotenv files loaded before reading the environment")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func run(ctx context.Context, out io.Writer, f flags, names []string) error {
	if len(f.envFiles) > 0 {
		// Variables already present in the environment take precedence.
		if err := godotenv.Load(f.envFiles...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	}
	logger, err := newLogger(f.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	ns, err := nsenv.Init(
		nsenv.WithEnvVar(f.envVar),
		nsenv.WithLogger(logger),
		nsenv.WithMetricsRegisterer(registry),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := ns.Close(); err != nil {
			logger.Warn("close name resolution", zap.Error(err))
		}
	}()

	if f.metricsAddr != "" {
		server := serveMetrics(f.metricsAddr, registry, logger)
		defer func() { _ = server.Close() }()
	}

	if f.watch <= 0 {
		var errs error
		for _, name := range names {
			addresses, err := ns.ResolveAll(ctx, name, f.port)
			if err != nil {
				logger.Error("resolve failed", zap.String("name", name), zap.Error(err))
				errs = errors.Join(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			printAddresses(out, name, addresses)
		}
		return errs
	}

	ctx, cancel := context.WithTimeout(ctx, f.watch)
	defer cancel()
	var mu sync.Mutex
	for _, name := range names {
		subscription := ns.ResolveAuto(ctx, name, f.port, &printReceiver{
			name:   name,
			out:    out,
			mu:     &mu,
			logger: logger,
		})
		defer func() { _ = subscription.Close() }()
	}
	<-ctx.Done()
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return server
}

func printAddresses(out io.Writer, name string, addresses []resolver.Address) {
	for _, address := range addresses {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", name, address.HostPort)
	}
}

type printReceiver struct {
	name   string
	out    io.Writer
	mu     *sync.Mutex
	logger *zap.Logger
}

func (r *printReceiver) OnResolve(addresses []resolver.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	printAddresses(r.out, r.name, addresses)
}

func (r *printReceiver) OnResolveError(err error) {
	r.logger.Warn("resolve failed", zap.String("name", r.name), zap.Error(err))
}
