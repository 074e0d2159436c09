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

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(10, 100)
	fp := Fingerprint("127.0.0.1", []int{22, 80}, model.ScanOptions{})
	c.Set(fp, []model.EnrichedPort{{PortResult: model.PortResult{Port: 22}}}, time.Minute)
	got, ok := c.Get(fp)
	if !ok || len(got) != 1 {
		t.Fatalf("expected cache hit with one entry, got ok=%v len=%d", ok, len(got))
	}
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(10, 100)
	fp := Fingerprint("127.0.0.1", []int{22}, model.ScanOptions{})
	c.Set(fp, []model.EnrichedPort{{}}, time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, ok := c.Get(fp); ok {
		t.Fatal("expected expired entry to be treated as absent")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := New(2, 100)
	c.Set("a", []model.EnrichedPort{{}}, time.Minute)
	c.Set("b", []model.EnrichedPort{{}}, time.Minute)
	c.Get("a") // touch a, making b the LRU victim
	c.Set("c", []model.EnrichedPort{{}}, time.Minute)
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive eviction")
	}
}

func TestBuildOnceRunsSingleBuildForConcurrentCallers(t *testing.T) {
	c := New(10, 100)
	var calls int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = c.BuildOnce("fp", func() ([]model.EnrichedPort, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return []model.EnrichedPort{{}}, nil
			})
		}()
	}
	close(start)
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected exactly one build to run, got %d", calls)
	}
}
