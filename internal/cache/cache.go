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

// Package cache implements the scan result cache (§4.E): fingerprinted,
// TTL-fresh, LRU-bounded, with at-most-one in-flight build per key.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

// Fingerprint hashes the result-affecting identity of a scan request.
func Fingerprint(target string, ports []int, opts model.ScanOptions) string {
	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%v|%v|%v|%v", target, sorted, opts.AllowPrivate, opts.ServiceDetect, opts.BannerGrab)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	key       string
	result    []model.EnrichedPort
	storedAt  time.Time
	ttl       time.Duration
	size      int
	elem      *list.Element
}

// build tracks an in-flight fingerprint computation; the first caller owns
// it, later callers block on done and read the result it produced.
type build struct {
	done   chan struct{}
	result []model.EnrichedPort
	err    error
}

// Cache is the scan result cache. One mutex guards both the map and the LRU
// list, matching the teacher's single-lock-per-shared-resource discipline.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // front = most recently used
	inFlight   map[string]*build
	maxEntries int
	maxValue   int
}

// New builds a Cache bounded by maxEntries rows and maxValue ports per row.
func New(maxEntries, maxValue int) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		inFlight:   make(map[string]*build),
		maxEntries: maxEntries,
		maxValue:   maxValue,
	}
}

// Get returns a fresh cached result, or ok=false if absent/expired.
func (c *Cache) Get(fingerprint string) (result []model.EnrichedPort, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[fingerprint]
	if !found {
		return nil, false
	}
	if e.ttl > 0 && time.Since(e.storedAt) > e.ttl {
		c.removeLocked(e)
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.result, true
}

// Set stores a result under fingerprint, evicting the least-recently-used
// entry if the cache is at capacity. Values exceeding maxValue are dropped
// silently — the next Get is simply a miss.
func (c *Cache) Set(fingerprint string, result []model.EnrichedPort, ttl time.Duration) {
	if c.maxValue > 0 && len(result) > c.maxValue {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, found := c.entries[fingerprint]; found {
		e.result = result
		e.storedAt = time.Now()
		e.ttl = ttl
		c.order.MoveToFront(e.elem)
		return
	}
	e := &entry{key: fingerprint, result: result, storedAt: time.Now(), ttl: ttl}
	e.elem = c.order.PushFront(e)
	c.entries[fingerprint] = e
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		back := c.order.Back()
		if back != nil {
			c.removeLocked(back.Value.(*entry))
		}
	}
}

// Invalidate drops a cached entry regardless of freshness.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, found := c.entries[fingerprint]; found {
		c.removeLocked(e)
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

// BuildOnce enforces at-most-one-in-flight-per-fingerprint (Testable
// Property 3): the first caller for a fingerprint runs fn; concurrent
// callers for the same fingerprint block until it finishes and then read
// its result rather than starting their own probe sweep.
func (c *Cache) BuildOnce(fingerprint string, fn func() ([]model.EnrichedPort, error)) ([]model.EnrichedPort, error) {
	c.mu.Lock()
	if b, inFlight := c.inFlight[fingerprint]; inFlight {
		c.mu.Unlock()
		<-b.done
		return b.result, b.err
	}
	b := &build{done: make(chan struct{})}
	c.inFlight[fingerprint] = b
	c.mu.Unlock()

	b.result, b.err = fn()
	close(b.done)

	c.mu.Lock()
	delete(c.inFlight, fingerprint)
	c.mu.Unlock()

	return b.result, b.err
}
