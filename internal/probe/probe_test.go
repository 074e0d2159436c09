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

package probe

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

type fakeController struct {
	mu      sync.Mutex
	params  Params
	success int
	failure int
}

func (f *fakeController) Params() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

func (f *fakeController) Observe(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.success++
	} else {
		f.failure++
	}
}

type fakeConn struct{ net.Conn }

func (fakeConn) Close() error { return nil }

func TestScanClassifiesOpenClosedFiltered(t *testing.T) {
	ctrl := &fakeController{params: Params{MaxConcurrent: 4, Timeout: 50 * time.Millisecond}}
	dial := func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		switch addr {
		case "host:22":
			return fakeConn{}, nil
		case "host:23":
			return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		default:
			return nil, &timeoutErr{}
		}
	}
	pool := New(ctrl, dial)
	results := pool.Scan(context.Background(), "host", []int{22, 23, 24})

	byPort := map[int]model.PortResult{}
	for _, r := range results {
		byPort[r.Port] = r
	}
	if byPort[22].State != model.PortOpen {
		t.Fatalf("expected port 22 open, got %v", byPort[22].State)
	}
	if byPort[23].State != model.PortClosed {
		t.Fatalf("expected port 23 closed, got %v", byPort[23].State)
	}
	if byPort[24].State != model.PortFiltered {
		t.Fatalf("expected port 24 filtered, got %v", byPort[24].State)
	}
	if ctrl.success == 0 || ctrl.failure == 0 {
		t.Fatalf("expected controller to observe both outcomes, got success=%d failure=%d", ctrl.success, ctrl.failure)
	}
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

func TestScanDistinguishesUnreachableFromOtherErrors(t *testing.T) {
	ctrl := &fakeController{params: Params{MaxConcurrent: 2, Timeout: 50 * time.Millisecond}}
	dial := func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		switch addr {
		case "host:25":
			return nil, &net.OpError{Op: "dial", Err: errors.New("no route to host")}
		default:
			return nil, &net.OpError{Op: "dial", Err: errors.New("some other dial failure")}
		}
	}
	pool := New(ctrl, dial)
	results := pool.Scan(context.Background(), "host", []int{25, 26})

	byPort := map[int]model.PortResult{}
	for _, r := range results {
		byPort[r.Port] = r
	}
	if byPort[25].State != model.PortFiltered {
		t.Fatalf("expected unreachable host error to be filtered, got %v", byPort[25].State)
	}
	if byPort[26].State != model.PortClosed {
		t.Fatalf("expected an unclassified dial error to be closed, got %v", byPort[26].State)
	}
}
