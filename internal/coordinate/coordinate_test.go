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

package coordinate

import (
	"context"
	"testing"
	"time"
)

func testOpts() Options {
	return Options{
		WindowSize:        time.Minute,
		ClientLimit:       2,
		ClientConcurrency: 2,
		GlobalConcurrency: 10,
	}
}

func TestAdmitRateLimitsAfterLimit(t *testing.T) {
	c := New(testOpts(), nil)
	ctx := context.Background()
	if got := c.Admit(ctx, "alice"); got != Admitted {
		t.Fatalf("expected first admit, got %v", got)
	}
	if got := c.Admit(ctx, "alice"); got != Admitted {
		t.Fatalf("expected second admit, got %v", got)
	}
	if got := c.Admit(ctx, "alice"); got != RateLimited {
		t.Fatalf("expected third call to be rate limited, got %v", got)
	}
}

func TestAdmitThenCooldown(t *testing.T) {
	c := New(testOpts(), nil)
	ctx := context.Background()
	c.Admit(ctx, "bob")
	c.Admit(ctx, "bob")
	if got := c.Admit(ctx, "bob"); got != RateLimited {
		t.Fatalf("expected rate limited, got %v", got)
	}
	// The first violation carries no cooldown; the second one starts it.
	if got := c.Admit(ctx, "bob"); got != RateLimited {
		t.Fatalf("expected second violation to be rate limited, got %v", got)
	}
	if got := c.Admit(ctx, "bob"); got != OnCooldown {
		t.Fatalf("expected cooldown after violation, got %v", got)
	}
}

func TestBeginEndScanConserveCounters(t *testing.T) {
	c := New(testOpts(), nil)
	if !c.BeginScan("carol") {
		t.Fatal("expected begin_scan to succeed")
	}
	before := c.Snapshot("carol").ActiveScans
	c.EndScan("carol")
	after := c.Snapshot("carol").ActiveScans
	if before != 1 || after != 0 {
		t.Fatalf("expected active scans 1->0, got %d->%d", before, after)
	}
}

func TestBeginScanRespectsClientConcurrency(t *testing.T) {
	c := New(testOpts(), nil)
	if !c.BeginScan("dave") || !c.BeginScan("dave") {
		t.Fatal("expected first two begin_scan calls to succeed")
	}
	if c.BeginScan("dave") {
		t.Fatal("expected third begin_scan to exceed client concurrency")
	}
}

func TestResetViolationsClearsCooldown(t *testing.T) {
	c := New(testOpts(), nil)
	ctx := context.Background()
	c.Admit(ctx, "erin")
	c.Admit(ctx, "erin")
	c.Admit(ctx, "erin") // violation #1, cooldown=0
	c.ResetViolations("erin")
	snap := c.Snapshot("erin")
	if snap.ViolationCount != 0 {
		t.Fatalf("expected violations reset, got %d", snap.ViolationCount)
	}
}
