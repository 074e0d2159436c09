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

// Package coordinate implements the per-client rate limiter and global
// concurrency ceiling (§4.D). Admission decisions use this process's own
// in-memory state only. The optional Redis mirror receives window counts
// but is never read back, so limits are not shared across daemon instances.
package coordinate

import (
	"context"
	"sync"
	"time"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/pkg/budget"
	"github.com/scansentry/scansentry/pkg/log"
)

// Admission is the result of Admit.
type Admission int

const (
	Admitted Admission = iota
	RateLimited
	OnCooldown
)

// Options configures window size, per-client limit, and global ceiling.
type Options struct {
	WindowSize         time.Duration
	ClientLimit        int
	ClientConcurrency  int64
	GlobalConcurrency  int64
}

type clientState struct {
	mu          sync.Mutex
	windowStart time.Time
	windowCount int
	violations  int
	cooldownUntil time.Time
	activeScans *budget.Accumulator
}

// Coordinator tracks per-client budgets in a sync.Map (same GetOrCreate
// discipline as the teacher's keyed store) plus one global concurrency
// accumulator shared by every client.
type Coordinator struct {
	opts    Options
	clients sync.Map // clientID -> *clientState
	global  *budget.Accumulator
	mirror  Mirror // optional Redis mirror; nil disables it
}

// Mirror is the shared-store contract; RedisMirror implements it. Any
// failure from a Mirror call is treated as advisory only — the in-process
// accumulator remains authoritative for admission decisions.
type Mirror interface {
	RecordAttempt(ctx context.Context, clientID string) error
	Close() error
}

// New builds a Coordinator. mirror may be nil to run purely in-process.
func New(opts Options, mirror Mirror) *Coordinator {
	return &Coordinator{
		opts:   opts,
		global: budget.New(opts.GlobalConcurrency),
		mirror: mirror,
	}
}

func (c *Coordinator) getOrCreate(clientID string) *clientState {
	if v, ok := c.clients.Load(clientID); ok {
		return v.(*clientState)
	}
	cs := &clientState{
		windowStart: time.Now(),
		activeScans: budget.New(c.opts.ClientConcurrency),
	}
	actual, loaded := c.clients.LoadOrStore(clientID, cs)
	if loaded {
		return actual.(*clientState)
	}
	return cs
}

// cooldownFor returns the exponential backoff for a given violation count:
// 1st violation=0, 2nd=5m, 3rd=1h, 4th+=24h (cap), per §4.D.
func cooldownFor(violations int) time.Duration {
	switch {
	case violations <= 1:
		return 0
	case violations == 2:
		return 5 * time.Minute
	case violations == 3:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Admit applies the rate-limit + cooldown check and records an attempt.
func (c *Coordinator) Admit(ctx context.Context, clientID string) Admission {
	cs := c.getOrCreate(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := time.Now()
	if now.Before(cs.cooldownUntil) {
		return OnCooldown
	}
	if now.Sub(cs.windowStart) >= c.opts.WindowSize {
		cs.windowStart = now
		cs.windowCount = 0
	}
	if cs.windowCount >= c.opts.ClientLimit {
		cs.violations++
		cs.cooldownUntil = now.Add(cooldownFor(cs.violations))
		return RateLimited
	}
	cs.windowCount++

	if c.mirror != nil {
		if err := c.mirror.RecordAttempt(ctx, clientID); err != nil {
			log.WithComponent("coordinate").Warn().Err(err).Str("client_id", clientID).Msg("shared store unavailable, enforcing locally only")
		}
	}
	return Admitted
}

// BeginScan reserves one concurrency slot against both the client's and the
// global ceiling. Returns false (ExceedsConcurrency) if either is exhausted;
// no partial reservation is left behind on failure.
func (c *Coordinator) BeginScan(clientID string) bool {
	cs := c.getOrCreate(clientID)
	if !cs.activeScans.Reserve(1) {
		return false
	}
	if !c.global.Reserve(1) {
		cs.activeScans.Release(1)
		return false
	}
	return true
}

// EndScan releases the concurrency slot reserved by BeginScan. Must be
// called on every exit path (Testable Property 4).
func (c *Coordinator) EndScan(clientID string) {
	cs := c.getOrCreate(clientID)
	cs.activeScans.Release(1)
	c.global.Release(1)
}

// ResetViolations is the admin override clearing a client's cooldown state.
func (c *Coordinator) ResetViolations(clientID string) {
	cs := c.getOrCreate(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.violations = 0
	cs.cooldownUntil = time.Time{}
}

// Snapshot returns a read-only view of a client's budget, for status APIs.
func (c *Coordinator) Snapshot(clientID string) model.ClientBudget {
	cs := c.getOrCreate(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return model.ClientBudget{
		ClientID:       clientID,
		WindowCount:    cs.windowCount,
		WindowStart:    cs.windowStart,
		ViolationCount: cs.violations,
		CooldownUntil:  cs.cooldownUntil,
		ActiveScans:    int(cs.activeScans.InUse()),
	}
}
