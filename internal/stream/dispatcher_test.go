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

package stream

import (
	"testing"

	"github.com/scansentry/scansentry/internal/model"
)

func TestSubscriberDropsTierStartUnderPressure(t *testing.T) {
	s := NewSubscriber(2)
	s.Push(model.ScanEvent{Type: model.EventTierStart, Tier: model.TierCritical})
	s.Push(model.ScanEvent{Type: model.EventOpenPort})
	s.Push(model.ScanEvent{Type: model.EventTierComplete}) // should evict tier_start, not open_port

	got := s.Drain()
	for _, ev := range got {
		if ev.Type == model.EventTierStart {
			t.Fatal("expected tier_start to be dropped under back-pressure")
		}
	}
	foundOpen, foundComplete := false, false
	for _, ev := range got {
		if ev.Type == model.EventOpenPort {
			foundOpen = true
		}
		if ev.Type == model.EventTierComplete {
			foundComplete = true
		}
	}
	if !foundOpen || !foundComplete {
		t.Fatalf("expected open_port and tier_complete to be preserved, got %v", got)
	}
}

func TestCheckTokenConstantTimeAndEmptyRefusesAll(t *testing.T) {
	if CheckToken("", "anything") {
		t.Fatal("expected empty configured token to refuse all connections")
	}
	if !CheckToken("secret", "secret") {
		t.Fatal("expected matching token to be accepted")
	}
	if CheckToken("secret", "wrong") {
		t.Fatal("expected mismatched token to be rejected")
	}
}

func TestDispatcherFanOutToMultipleSubscribers(t *testing.T) {
	d := NewDispatcher()
	a := d.Subscribe("conn-a", 10)
	b := d.Subscribe("conn-b", 10)

	src := make(chan model.ScanEvent, 1)
	src <- model.ScanEvent{Type: model.EventScanComplete}
	close(src)
	d.Pump(src)

	if len(a.Drain()) != 1 || len(b.Drain()) != 1 {
		t.Fatal("expected both subscribers to receive the event")
	}
}
