// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

package taint

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "argot"
	metricsSubsystem = "taint"
)

// Metrics holds the Prometheus collectors of one analysis run. Each run registers its collectors in its own
// registry, so that concurrent runs never share counters.
type Metrics struct {
	Registry *prometheus.Registry

	SeedsTotal        prometheus.Counter
	NodesTotal        prometheus.Counter
	PathsTotal        *prometheus.CounterVec
	LimitsTotal       *prometheus.CounterVec
	CFGFallbacksTotal prometheus.Counter
	HopCount          prometheus.Histogram
	DurationSeconds   prometheus.Gauge
}

// NewMetrics returns the collectors of a run, registered in a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SeedsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "seeds_total",
			Help:      "Number of sources and sinks the worklists were started from",
		}),
		NodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "nodes_expanded_total",
			Help:      "Number of worklist states and blocks expanded",
		}),
		PathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "paths_total",
			Help:      "Number of reported paths by track",
		}, []string{"track"}),
		LimitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "limits_total",
			Help:      "Number of times a limit stopped the exploration, by kind",
		}, []string{"kind"}),
		CFGFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cfg_fallbacks_total",
			Help:      "Number of functions analyzed without control-flow graph by the flow-sensitive track",
		}),
		HopCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "path_hops",
			Help:      "Distribution of the hop counts of the reported paths",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		DurationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of the analysis",
		}),
	}
	m.Registry.MustRegister(m.SeedsTotal, m.NodesTotal, m.PathsTotal, m.LimitsTotal, m.CFGFallbacksTotal,
		m.HopCount, m.DurationSeconds)
	return m
}

// Record adds the counters of a finished run
func (m *Metrics) Record(summary Summary, paths []*TaintPath) {
	m.SeedsTotal.Add(float64(summary.SeedsProcessed))
	m.NodesTotal.Add(float64(summary.NodesExpanded))
	m.CFGFallbacksTotal.Add(float64(summary.CFGFallbacks))
	for _, p := range paths {
		m.PathsTotal.WithLabelValues(p.Track).Inc()
		m.HopCount.Observe(float64(p.HopCount))
	}
	if summary.DepthLimitReached {
		m.LimitsTotal.WithLabelValues("depth").Inc()
	}
	if summary.BudgetLimitReached {
		m.LimitsTotal.WithLabelValues("budget").Inc()
	}
	m.LimitsTotal.WithLabelValues("signature_cap").Add(float64(summary.SignatureCapHits))
	m.LimitsTotal.WithLabelValues("recursion_guard").Add(float64(summary.RecursionGuardHits))
	m.DurationSeconds.Set(summary.DurationSeconds)
}

// WriteToFile writes the metrics in the Prometheus text format
func (m *Metrics) WriteToFile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, m.Registry); err != nil {
		return fmt.Errorf("could not write metrics to %s: %w", filename, err)
	}
	return nil
}
