// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry registers the scansentry_* Prometheus metrics and
// exposes a /metrics HTTP endpoint. All public functions are safe to call
// from hot paths; nothing here blocks on I/O.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scansentry_scans_total",
		Help: "Total scans run, labeled by terminal state",
	}, []string{"state"})

	PortsProbedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scansentry_ports_probed_total",
		Help: "Total TCP ports probed across all scans",
	})

	OpenPortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scansentry_open_ports_total",
		Help: "Total ports observed OPEN across all scans",
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scansentry_cache_hits_total",
		Help: "Scan result cache outcomes",
	}, []string{"outcome"}) // hit|miss

	CVELookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scansentry_cve_lookups_total",
		Help: "CVE enrichment outcomes by status",
	}, []string{"status"})

	RateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scansentry_rate_limit_rejections_total",
		Help: "Admission rejections by reason",
	}, []string{"reason"}) // rate_limited|cooldown|concurrency

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scansentry_scan_duration_seconds",
		Help:    "Wall-clock duration of completed scans",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	AdaptiveConcurrency = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scansentry_adaptive_concurrency",
		Help: "Current adaptive controller concurrency ceiling (last scan observed)",
	})

	ActiveScans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scansentry_active_scans",
		Help: "Scans currently in flight across all clients",
	})
)

func init() {
	prometheus.MustRegister(
		ScansTotal, PortsProbedTotal, OpenPortsTotal, CacheHitsTotal,
		CVELookupsTotal, RateLimitRejectionsTotal, ScanDuration,
		AdaptiveConcurrency, ActiveScans,
	)
}

// ServeMetrics starts a dedicated /metrics HTTP server in the background,
// mirroring the teacher's opt-in standalone metrics endpoint. A blank addr
// is a no-op so embedding the exporter in the main server mux is possible
// instead.
func ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
