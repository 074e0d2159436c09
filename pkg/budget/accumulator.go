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

// Package budget provides a thread-safe admission-control accumulator: a
// ceiling (Scalar) minus an in-flight count (Vector) gives the Available
// headroom. It is the same scalar-minus-vector shape used elsewhere for
// write-batching, repurposed here for concurrency and rate admission.
package budget

import "sync"

// Accumulator tracks a ceiling and an in-flight count under one lock. Reserve
// admits up to the ceiling; Release returns capacity but never lets the
// in-flight count drop below zero, so an unmatched Release adds no headroom.
type Accumulator struct {
	mu      sync.Mutex
	ceiling int64
	inUse   int64
}

// New builds an Accumulator with the given ceiling. A ceiling of 0 admits
// nothing until SetCeiling raises it.
func New(ceiling int64) *Accumulator {
	return &Accumulator{ceiling: ceiling}
}

// Available returns ceiling - inUse; never negative.
func (a *Accumulator) Available() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available()
}

func (a *Accumulator) available() int64 {
	v := a.ceiling - a.inUse
	if v < 0 {
		return 0
	}
	return v
}

// Reserve attempts to admit n units; returns false without mutating state if
// insufficient headroom remains.
func (a *Accumulator) Reserve(n int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.available() < n {
		return false
	}
	a.inUse += n
	return true
}

// Release returns n units of previously reserved capacity. Must be called on
// every exit path that followed a successful Reserve (Testable Property 4).
func (a *Accumulator) Release(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= n
	if a.inUse < 0 {
		a.inUse = 0
	}
}

// SetCeiling adjusts the ceiling without disturbing in-flight reservations.
func (a *Accumulator) SetCeiling(c int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ceiling = c
}

// InUse returns the current reserved count, mainly for tests/telemetry.
func (a *Accumulator) InUse() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}
