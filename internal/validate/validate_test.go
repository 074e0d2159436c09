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

package validate

import (
	"testing"

	"github.com/scansentry/scansentry/internal/model"
)

func TestValidateTargetBlocksPrivateByDefault(t *testing.T) {
	_, err := ValidateTarget("10.0.0.5", false, NewWhitelist(""))
	if !model.IsKind(err, model.KindInput) {
		t.Fatalf("expected blocked target error, got %v", err)
	}
}

func TestValidateTargetAllowsPrivateWhenRequested(t *testing.T) {
	tg, err := ValidateTarget("10.0.0.5", true, NewWhitelist(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tg.ResolvedIP != "10.0.0.5" {
		t.Fatalf("expected resolved ip to be set, got %q", tg.ResolvedIP)
	}
}

func TestValidateTargetWhitelistOverride(t *testing.T) {
	wl := NewWhitelist("10.0.0.5")
	if _, err := ValidateTarget("10.0.0.5", false, wl); err != nil {
		t.Fatalf("expected whitelist to permit target, got %v", err)
	}
}

func TestValidateTargetMulticastAlwaysBlocked(t *testing.T) {
	wl := NewWhitelist("224.0.0.1")
	if _, err := ValidateTarget("224.0.0.1", true, wl); err == nil {
		t.Fatal("expected multicast target to be blocked regardless of allow_private/whitelist")
	}
}

func TestValidateTargetRejectsLeadingZeroOctet(t *testing.T) {
	if _, err := ValidateTarget("192.168.001.1", true, NewWhitelist("")); err == nil {
		t.Fatal("expected leading-zero octet to be rejected")
	}
}

func TestValidateTargetHostname(t *testing.T) {
	tg, err := ValidateTarget("scan-target.example-corp.io", false, NewWhitelist(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tg.Hostname == "" {
		t.Fatal("expected hostname to be captured for later resolution")
	}
}

func TestValidateTargetRejectsPlaceholder(t *testing.T) {
	if _, err := ValidateTarget("example.com", false, NewWhitelist("")); err == nil {
		t.Fatal("expected placeholder host to be rejected")
	}
}

func TestValidatePortSetRejectsOutOfRange(t *testing.T) {
	if _, err := ValidatePortSet([]int{1, 70000}); err == nil {
		t.Fatal("expected out-of-range port to be rejected")
	}
}

func TestValidatePortSetDedupesAndSorts(t *testing.T) {
	got, err := ValidatePortSet([]int{443, 22, 80, 22})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{22, 80, 443}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
