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

package adaptive

import (
	"testing"
	"time"
)

func testOpts() Options {
	return Options{
		InitialConcurrency: 10,
		MinConcurrency:     1,
		MaxConcurrency:     100,
		InitialTimeout:     time.Second,
		MinTimeout:         100 * time.Millisecond,
		MaxTimeout:         5 * time.Second,
		MinInterval:        0,
	}
}

func TestAllFailureDropsToMinimum(t *testing.T) {
	c := New(testOpts())
	for i := 0; i < windowSize; i++ {
		c.Observe(false)
	}
	p := c.Params()
	if p.MaxConcurrent != 1 {
		t.Fatalf("expected concurrency floor of 1, got %d", p.MaxConcurrent)
	}
	if p.Timeout != 5*time.Second {
		t.Fatalf("expected timeout ceiling, got %v", p.Timeout)
	}
}

func TestHighSuccessRatioRaisesConcurrency(t *testing.T) {
	c := New(testOpts())
	for i := 0; i < 20; i++ {
		c.Observe(true)
	}
	p := c.Params()
	if p.MaxConcurrent <= 10 {
		t.Fatalf("expected concurrency to rise above initial 10, got %d", p.MaxConcurrent)
	}
}

func TestMinIntervalPreventsOscillation(t *testing.T) {
	opts := testOpts()
	opts.MinInterval = time.Hour
	c := New(opts)
	c.Observe(true)
	first := c.Params()
	for i := 0; i < 20; i++ {
		c.Observe(true)
	}
	second := c.Params()
	if first != second {
		t.Fatalf("expected no adjustment within min interval: %+v -> %+v", first, second)
	}
}
