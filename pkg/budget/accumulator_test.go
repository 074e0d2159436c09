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

package budget

import "testing"

func TestReserveRespectsCeiling(t *testing.T) {
	a := New(2)
	if !a.Reserve(1) {
		t.Fatal("expected first reserve to succeed")
	}
	if !a.Reserve(1) {
		t.Fatal("expected second reserve to succeed")
	}
	if a.Reserve(1) {
		t.Fatal("expected third reserve to fail at ceiling")
	}
}

func TestReleaseRestoresHeadroom(t *testing.T) {
	a := New(1)
	if !a.Reserve(1) {
		t.Fatal("expected reserve to succeed")
	}
	a.Release(1)
	if a.Available() != 1 {
		t.Fatalf("expected full headroom after release, got %d", a.Available())
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	a := New(5)
	a.Release(3)
	if a.InUse() != 0 {
		t.Fatalf("expected inUse to floor at zero, got %d", a.InUse())
	}
}
