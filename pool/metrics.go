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

package pool

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	QueueLength   prometheus.Gauge
	BusyWorkers   prometheus.Gauge
	ProbesTotal   prometheus.Counter
	ProbeErrors   prometheus.Counter
	ProbePanics   prometheus.Counter
	ProbeDuration prometheus.Histogram
}

func newMetrics() metrics {
	const (
		namespace = "nsenv"
		subsystem = "pool"
	)
	return metrics{
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_length",
			Help:      "Number of resolves waiting for a worker.",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "busy_workers",
			Help:      "Number of workers running a resolve.",
		}),
		ProbesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probes_total",
			Help:      "Total number of resolves run by workers.",
		}),
		ProbeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probe_errors_total",
			Help:      "Total number of resolves that failed.",
		}),
		ProbePanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probe_panics_total",
			Help:      "Total number of resolves whose prober panicked.",
		}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probe_duration_seconds",
			Help:      "Time spent by workers in resolves.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// Metrics returns the pool's collectors, for registration with a
// prometheus registry.
func (p *Pool) Metrics() []prometheus.Collector {
	m := p.metrics
	return []prometheus.Collector{
		m.QueueLength,
		m.BusyWorkers,
		m.ProbesTotal,
		m.ProbeErrors,
		m.ProbePanics,
		m.ProbeDuration,
	}
}
