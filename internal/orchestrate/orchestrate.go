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

// Package orchestrate drives one scan's lifecycle (§4.J): validate, resolve,
// check the cache, partition ports, then probe/identify/enrich tier by tier,
// emitting events as it goes. One goroutine per scan; many orchestrators run
// concurrently, bounded by the Coordinator's global ceiling.
package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/scansentry/scansentry/internal/adaptive"
	"github.com/scansentry/scansentry/internal/cache"
	"github.com/scansentry/scansentry/internal/coordinate"
	"github.com/scansentry/scansentry/internal/enrich"
	"github.com/scansentry/scansentry/internal/identify"
	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/internal/policy"
	"github.com/scansentry/scansentry/internal/priority"
	"github.com/scansentry/scansentry/internal/probe"
	"github.com/scansentry/scansentry/internal/resolve"
	"github.com/scansentry/scansentry/internal/validate"
	"github.com/scansentry/scansentry/pkg/log"
)

// Deps bundles every collaborator the orchestrator drives. Each scan gets
// its own adaptive.Controller (concurrency/timeout state is per-scan, not
// shared across targets), but shares the Coordinator, Cache and Enricher.
type Deps struct {
	Coordinator  *coordinate.Coordinator
	Cache        *cache.Cache
	Resolver     *resolve.Resolver
	Identifier   *identify.Identifier
	Enricher     *enrich.Enricher
	Whitelist    validate.Whitelist
	Gate         *policy.Gate
	AdaptiveOpts adaptive.Options
	ScanTimeout  time.Duration
	CacheTTL     time.Duration
}

// Orchestrator runs a single scan to completion or cancellation.
type Orchestrator struct {
	deps     Deps
	scanID   string
	clientID string
	events   chan model.ScanEvent
	cancel   context.CancelFunc
	ctx      context.Context
	wg       sync.WaitGroup
}

// New constructs an Orchestrator for one scan. Events is buffered so the
// dispatcher (K) can drain it without blocking the orchestrator on a slow
// subscriber — back-pressure policy lives in internal/stream, not here.
func New(deps Deps, scanID, clientID string) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		scanID:   scanID,
		clientID: clientID,
		events:   make(chan model.ScanEvent, 256),
		ctx:      context.Background(),
	}
}

// Events returns the channel of emitted ScanEvents; closed when Run returns.
func (o *Orchestrator) Events() <-chan model.ScanEvent { return o.events }

// Cancel requests cooperative cancellation; safe to call multiple times.
func (o *Orchestrator) Cancel() {
	if o.cancel != nil {
		o.cancel()
	}
}

// Run executes the full state machine described in §4.J. It returns once
// the scan is COMPLETED or FAILED. After a successful BeginScan, Run defers
// Coordinator.EndScan itself, so every later exit path releases the slot.
func (o *Orchestrator) Run(ctx context.Context, raw string, ports []int, opts model.ScanOptions) *model.ScanTask {
	defer close(o.events)
	o.ctx = ctx

	task := &model.ScanTask{
		ScanID:      o.scanID,
		Target:      model.Target{Raw: raw},
		Options:     opts,
		State:       model.TaskPending,
		SubmittedAt: time.Now(),
	}

	logger := log.WithScanID(o.scanID)

	admission := o.deps.Coordinator.Admit(ctx, o.clientID)
	if admission != coordinate.Admitted {
		task.State = model.TaskFailure
		task.Error = string(model.ReasonRateLimited)
		if admission == coordinate.OnCooldown {
			task.Error = string(model.ReasonOnCooldown)
		}
		o.emit(model.ScanEvent{Type: model.EventError, ScanID: o.scanID, Message: task.Error})
		return task
	}

	if !o.deps.Coordinator.BeginScan(o.clientID) {
		task.State = model.TaskFailure
		task.Error = string(model.ReasonExceedsConcurrency)
		o.emit(model.ScanEvent{Type: model.EventError, ScanID: o.scanID, Message: task.Error})
		return task
	}
	defer o.deps.Coordinator.EndScan(o.clientID)

	scanCtx, cancel := context.WithTimeout(ctx, o.deps.ScanTimeout)
	o.cancel = cancel
	o.ctx = scanCtx
	defer cancel()

	task.State = model.TaskProgress

	target, err := validate.ValidateTarget(raw, opts.AllowPrivate, o.deps.Whitelist)
	if err != nil {
		return o.fail(task, err)
	}

	target, err = o.deps.Resolver.Resolve(scanCtx, target, o.deps.Whitelist)
	if err != nil {
		return o.fail(task, err)
	}
	task.Target = target

	if o.deps.Gate != nil && o.deps.Gate.Check(target.Raw, target.ResolvedIP) == policy.Denied {
		return o.fail(task, model.NewError(model.KindPolicy, model.ReasonDenied, "target is denylisted", nil))
	}

	validPorts, err := validate.ValidatePortSet(ports)
	if err != nil {
		return o.fail(task, err)
	}
	task.Ports = validPorts

	fingerprint := cache.Fingerprint(target.ResolvedIP, validPorts, opts)
	if hit, ok := o.deps.Cache.Get(fingerprint); ok {
		task.Cached = true
		task.Result = hit
		o.emitCachedEvents(target, validPorts, hit)
		task.State = model.TaskSuccess
		now := time.Now()
		task.CompletedAt = &now
		return task
	}

	result, buildErr := o.deps.Cache.BuildOnce(fingerprint, func() ([]model.EnrichedPort, error) {
		return o.runScan(scanCtx, target, validPorts)
	})
	if buildErr != nil {
		return o.fail(task, buildErr)
	}
	o.deps.Cache.Set(fingerprint, result, o.deps.CacheTTL)

	task.Result = result
	task.State = model.TaskSuccess
	task.Progress = 100
	now := time.Now()
	task.CompletedAt = &now
	o.emit(model.ScanEvent{Type: model.EventScanComplete, ScanID: o.scanID})

	logger.Info().Int("ports", len(validPorts)).Msg("scan complete")
	return task
}

func (o *Orchestrator) fail(task *model.ScanTask, err error) *model.ScanTask {
	task.State = model.TaskFailure
	task.Error = err.Error()
	o.emit(model.ScanEvent{Type: model.EventError, ScanID: o.scanID, Message: err.Error()})
	return task
}

// runScan is the actual probe sweep; it is only ever invoked once per
// fingerprint thanks to Cache.BuildOnce (Testable Property 3).
func (o *Orchestrator) runScan(ctx context.Context, target model.Target, ports []int) ([]model.EnrichedPort, error) {
	o.emit(model.ScanEvent{Type: model.EventScanStart, ScanID: o.scanID, Target: target.Raw, TotalPorts: len(ports)})

	tiers := priority.Partition(ports)
	ctrl := adaptive.New(o.deps.AdaptiveOpts)
	pool := probe.New(ctrl, nil)

	var all []model.EnrichedPort
	scanned := 0
	total := len(ports)

	for _, tier := range model.TierOrder {
		tierPorts := tiers[tier]
		o.emit(model.ScanEvent{Type: model.EventTierStart, ScanID: o.scanID, Tier: tier, Count: len(tierPorts), Progress: progressOf(scanned, total)})

		if ctx.Err() != nil {
			o.emit(model.ScanEvent{Type: model.EventError, ScanID: o.scanID, Message: string(model.ReasonCancelled)})
			return all, model.NewError(model.KindCancellation, model.ReasonCancelled, "scan cancelled", ctx.Err())
		}

		results := pool.Scan(ctx, target.ResolvedIP, tierPorts)
		openCount := 0
		for _, r := range results {
			scanned++
			if r.State != model.PortOpen {
				continue
			}
			openCount++
			enriched := o.identifyAndEnrich(ctx, target, r)
			all = append(all, enriched)
			o.emit(model.ScanEvent{Type: model.EventOpenPort, ScanID: o.scanID, Port: &enriched, Progress: progressOf(scanned, total)})
		}

		o.emit(model.ScanEvent{Type: model.EventTierComplete, ScanID: o.scanID, Tier: tier, OpenCount: openCount, Progress: progressOf(scanned, total)})
	}

	return all, nil
}

func (o *Orchestrator) identifyAndEnrich(ctx context.Context, target model.Target, r model.PortResult) model.EnrichedPort {
	if o.deps.Identifier != nil {
		c := o.deps.Identifier.Identify(ctx, target.ResolvedIP, r.Port, 2*time.Second)
		r.Service = c.Service
		r.Version = c.Version
		r.Banner = c.Banner
		r.Confidence = c.Confidence
		r.TLSVersion = c.TLSVersion
		r.TLSCipher = c.TLSCipher
	}

	enriched := model.EnrichedPort{PortResult: r}
	if o.deps.Enricher != nil {
		e := o.deps.Enricher.Enrich(ctx, enrich.Evidence{
			Port:       r.Port,
			Service:    r.Service,
			Version:    r.Version,
			Banner:     r.Banner,
			Confidence: r.Confidence,
		})
		enriched.CVEs = e.CVEs
		enriched.MaxCVSS = e.MaxCVSS
		enriched.CVEStatus = e.CVEStatus
		enriched.Severity = e.Severity
		enriched.MitreTags = e.MitreTags
	}
	return enriched
}

func (o *Orchestrator) emitCachedEvents(target model.Target, ports []int, result []model.EnrichedPort) {
	o.emit(model.ScanEvent{Type: model.EventScanStart, ScanID: o.scanID, Target: target.Raw, TotalPorts: len(ports)})
	for i := range result {
		port := result[i]
		o.emit(model.ScanEvent{Type: model.EventOpenPort, ScanID: o.scanID, Port: &port, Progress: 100})
	}
	o.emit(model.ScanEvent{Type: model.EventScanComplete, ScanID: o.scanID})
}

// protectedEvent classes must never be silently dropped (§4.K); everything
// else (tier_start) may be dropped under back-pressure.
func protectedEvent(t model.ScanEventType) bool {
	switch t {
	case model.EventOpenPort, model.EventTierComplete, model.EventScanComplete, model.EventError:
		return true
	}
	return false
}

func (o *Orchestrator) emit(ev model.ScanEvent) {
	if protectedEvent(ev.Type) {
		select {
		case o.events <- ev:
		case <-o.ctx.Done():
			// scan is being torn down; no subscriber will ever drain this.
		}
		return
	}
	select {
	case o.events <- ev:
	default:
		// droppable class (tier_start): subscriber-side back-pressure is
		// internal/stream's job, the orchestrator itself never blocks on it.
	}
}

func progressOf(scanned, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(scanned) / float64(total) * 100
}
