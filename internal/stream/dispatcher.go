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

// Package stream multiplexes ScanEvents to SSE/WebSocket subscribers (§4.K).
// Each subscriber gets an ordered, bounded queue; when the subscriber falls
// behind, the dispatcher drops the oldest tier_start event (the only
// droppable class) and never open_port, tier_complete, scan_complete, or
// error.
package stream

import (
	"container/list"
	"sync"

	"github.com/scansentry/scansentry/internal/model"
)

// droppable reports whether an event class may be discarded under
// back-pressure. Everything else is protected.
func droppable(t model.ScanEventType) bool {
	return t == model.EventTierStart
}

// Subscriber is a per-connection ordered event queue, adapted from a per-key
// actor queue into a per-connection one: instead of replaying an audit chain
// for one accounting key, it replays the scan's event order for one socket.
type Subscriber struct {
	mu       sync.Mutex
	queue    *list.List
	maxDepth int
	notify   chan struct{}
	closed   bool
}

// NewSubscriber builds a Subscriber bounded to maxDepth queued events.
func NewSubscriber(maxDepth int) *Subscriber {
	return &Subscriber{
		queue:    list.New(),
		maxDepth: maxDepth,
		notify:   make(chan struct{}, 1),
	}
}

// Push enqueues an event, applying the drop-oldest-droppable policy when the
// queue is at capacity.
func (s *Subscriber) Push(ev model.ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.queue.Len() >= s.maxDepth {
		s.evictOneDroppableLocked()
	}
	s.queue.PushBack(ev)
	s.wake()
}

func (s *Subscriber) evictOneDroppableLocked() {
	for e := s.queue.Front(); e != nil; e = e.Next() {
		if droppable(e.Value.(model.ScanEvent).Type) {
			s.queue.Remove(e)
			return
		}
	}
	// nothing droppable — queue is entirely protected events; grow past
	// the soft limit rather than lose a result the spec forbids dropping.
}

func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Wait returns a channel that is signalled after each Push; Close does not
// signal it.
func (s *Subscriber) Wait() <-chan struct{} { return s.notify }

// Drain returns (and removes) all currently queued events in FIFO order.
func (s *Subscriber) Drain() []model.ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScanEvent
	for e := s.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.ScanEvent))
	}
	s.queue.Init()
	return out
}

// Close marks the subscriber closed; subsequent Push calls are no-ops.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Dispatcher fans one scan's event channel out to N live subscribers.
type Dispatcher struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// NewDispatcher builds an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber under connID and returns it.
func (d *Dispatcher) Subscribe(connID string, maxDepth int) *Subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := NewSubscriber(maxDepth)
	d.subs[connID] = s
	return s
}

// Unsubscribe removes and closes a subscriber.
func (d *Dispatcher) Unsubscribe(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.subs[connID]; ok {
		s.Close()
		delete(d.subs, connID)
	}
}

// Pump reads from src until it closes, pushing every event to every current
// subscriber. Intended to run in its own goroutine per scan.
func (d *Dispatcher) Pump(src <-chan model.ScanEvent) {
	for ev := range src {
		d.mu.Lock()
		for _, s := range d.subs {
			s.Push(ev)
		}
		d.mu.Unlock()
	}
}
