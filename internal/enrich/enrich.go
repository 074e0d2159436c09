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

// Package enrich implements the evidence-gated CVE lookup (§4.I): cache
// first, one live fetch on miss, bounded by a worker pool independent of the
// probe pool's concurrency.
package enrich

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

const minConfidenceForCVE = 0.3
const bannerEvidenceLen = 10

// Evidence is the input the gate inspects; it is a plain struct (not the
// full PortResult) so the gate's rules are visible without threading the
// whole domain type through.
type Evidence struct {
	Port       int
	Service    string
	Version    string
	Banner     string
	Confidence float64
}

// gate applies the three ordered evidence checks from §4.I. It returns
// ok=false with the status to report when enrichment must not proceed.
func gate(e Evidence) (ok bool, status model.CVEStatus) {
	hasVersion := e.Version != ""
	hasBanner := len(e.Banner) >= bannerEvidenceLen

	if e.Service == "" && e.Version == "" && e.Banner == "" {
		return false, model.CVESkippedNoEvidence
	}
	if e.Service == "unknown" && !hasVersion && !hasBanner {
		return false, model.CVESkippedUnknownSvc
	}
	if e.Confidence < minConfidenceForCVE && !hasVersion && !hasBanner {
		return false, model.CVESkippedLowConfidence
	}
	return true, ""
}

// Feed fetches CVEs for a service±version from a live source (NVD 2.0 by
// convention). Implementations must tolerate 403/5xx/timeout/malformed JSON
// by returning (nil, nil) — a feed error is never fatal to the scan.
type Feed interface {
	Fetch(ctx context.Context, service, version string) ([]model.CVE, error)
}

type cacheEntry struct {
	key   string
	value model.CVECacheEntry
	elem  *list.Element
}

// Enricher runs the evidence gate, then cache, then a bounded live-fetch
// worker pool.
type Enricher struct {
	feed Feed
	ttl  time.Duration

	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      *list.List
	maxEntries int

	pool *workerPool
}

// Options configures cache sizing and the live-fetch concurrency bound.
type Options struct {
	TTL           time.Duration
	MaxEntries    int
	FetchWorkers  int
}

// New builds an Enricher. feed may be nil; a nil feed always yields
// NO_CVES_FOUND on cache miss, matching a non-fatal disabled-feed config.
func New(feed Feed, opts Options) *Enricher {
	workers := opts.FetchWorkers
	if workers < 1 {
		workers = 1
	}
	return &Enricher{
		feed:       feed,
		ttl:        opts.TTL,
		entries:    make(map[string]*cacheEntry),
		order:      list.New(),
		maxEntries: opts.MaxEntries,
		pool:       newWorkerPool(workers),
	}
}

// Close stops the underlying fetch worker pool.
func (en *Enricher) Close() { en.pool.stop() }

// Enrich runs the full §4.I pipeline for one open port's evidence. The
// static per-port vulnerability table (§9 S6) supplies MitreTags
// unconditionally and supplies Severity as a fallback whenever no live CVE
// data was found for the port; a real CVE match always overrides it.
func (en *Enricher) Enrich(ctx context.Context, e Evidence) model.EnrichedPort {
	ep := model.EnrichedPort{}
	baseline := lookupPortVuln(e.Port)
	ep.MitreTags = baseline.mitre

	if ok, status := gate(e); !ok {
		ep.CVEStatus = status
		ep.Severity = baseline.severity
		return ep
	}

	key := cacheKey(e.Service, e.Version)
	if cves, hit := en.getCache(key); hit {
		ep.CVEs = topFive(cves)
		ep.MaxCVSS = maxCVSS(ep.CVEs)
		ep.CVEStatus = model.CVESuccessCached
		ep.Severity = model.SeverityFromCVSS(ep.MaxCVSS)
		return ep
	}

	cves, err := en.fetchBounded(ctx, e.Service, e.Version)
	if err != nil || len(cves) == 0 {
		ep.CVEStatus = model.CVENoCVEsFound
		ep.Severity = baseline.severity
		return ep
	}

	en.setCache(key, cves)
	ep.CVEs = topFive(cves)
	ep.MaxCVSS = maxCVSS(ep.CVEs)
	ep.CVEStatus = model.CVESuccessLive
	ep.Severity = model.SeverityFromCVSS(ep.MaxCVSS)
	return ep
}

func (en *Enricher) fetchBounded(ctx context.Context, service, version string) ([]model.CVE, error) {
	if en.feed == nil {
		return nil, nil
	}
	type result struct {
		cves []model.CVE
		err  error
	}
	out := make(chan result, 1)
	submitted := en.pool.submit(func() {
		cves, err := en.feed.Fetch(ctx, service, version)
		out <- result{cves, err}
	})
	if !submitted {
		return nil, nil
	}
	select {
	case r := <-out:
		return r.cves, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func cacheKey(service, version string) string {
	if version == "" {
		return service
	}
	return service + ":" + version
}

func (en *Enricher) getCache(key string) ([]model.CVE, bool) {
	en.mu.Lock()
	defer en.mu.Unlock()
	e, ok := en.entries[key]
	if !ok {
		return nil, false
	}
	if e.value.Expired(time.Now()) {
		en.removeLocked(e)
		return nil, false
	}
	en.order.MoveToFront(e.elem)
	return e.value.CVEs, true
}

func (en *Enricher) setCache(key string, cves []model.CVE) {
	en.mu.Lock()
	defer en.mu.Unlock()
	e := &cacheEntry{key: key, value: model.CVECacheEntry{ServiceKey: key, CVEs: cves, FetchedAt: time.Now(), TTL: en.ttl}}
	e.elem = en.order.PushFront(e)
	en.entries[key] = e
	if en.maxEntries > 0 && len(en.entries) > en.maxEntries {
		if back := en.order.Back(); back != nil {
			en.removeLocked(back.Value.(*cacheEntry))
		}
	}
}

func (en *Enricher) removeLocked(e *cacheEntry) {
	en.order.Remove(e.elem)
	delete(en.entries, e.key)
}

func topFive(cves []model.CVE) []model.CVE {
	sorted := append([]model.CVE(nil), cves...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CVSS > sorted[j].CVSS })
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	return sorted
}

func maxCVSS(cves []model.CVE) float64 {
	max := 0.0
	for _, c := range cves {
		if c.CVSS > max {
			max = c.CVSS
		}
	}
	return max
}
