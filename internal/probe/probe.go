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

// Package probe implements the bounded-parallel TCP-connect worker pool
// (§4.F). Each Scan call takes its worker count from the Controller when it
// starts; each worker re-reads the per-probe timeout before every dial, so a
// timeout adjustment takes effect at once and a concurrency adjustment at
// the next Scan call.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

// Params is the live (max_concurrent, timeout) pair a Controller exposes.
type Params struct {
	MaxConcurrent int
	Timeout       time.Duration
}

// Controller is the subset of internal/adaptive's interface the pool needs.
type Controller interface {
	Params() Params
	Observe(success bool)
}

// Outcome reports one probe result back to the caller and to the Controller.
type Outcome struct {
	Result model.PortResult
}

// Dial abstracts the network dial so tests can substitute a fake dialer.
type Dial func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error)

func defaultDial(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// Pool runs bounded-parallel probes against one target.
type Pool struct {
	ctrl Controller
	dial Dial
}

// New builds a Pool. dial may be nil to use the real network.
func New(ctrl Controller, dial Dial) *Pool {
	if dial == nil {
		dial = defaultDial
	}
	return &Pool{ctrl: ctrl, dial: dial}
}

// Scan probes every port in ports against host and returns one PortResult
// per port, in no particular order. The number of workers is fixed from
// Controller.Params() when Scan starts; the timeout is re-read before each dial.
func (p *Pool) Scan(ctx context.Context, host string, ports []int) []model.PortResult {
	results := make([]model.PortResult, len(ports))

	idxByPort := make(map[int]int, len(ports))
	for i, port := range ports {
		idxByPort[port] = i
	}

	portCh := make(chan int, len(ports))
	for _, port := range ports {
		portCh <- port
	}
	close(portCh)

	params := p.ctrl.Params()
	workers := params.MaxConcurrent
	if workers < 1 {
		workers = 1
	}
	if workers > len(ports) {
		workers = len(ports)
	}

	done := make(chan struct{})
	var remaining = len(ports)
	resultsCh := make(chan model.PortResult, len(ports))

	for w := 0; w < workers; w++ {
		go func() {
			for port := range portCh {
				select {
				case <-ctx.Done():
					resultsCh <- model.PortResult{Port: port, State: model.PortFiltered, Protocol: "tcp", Reason: "cancelled"}
					continue
				default:
				}
				live := p.ctrl.Params()
				timeout := live.Timeout
				addr := fmt.Sprintf("%s:%d", host, port)
				conn, err := p.dial(ctx, "tcp", addr, timeout)
				res := model.PortResult{Port: port, Protocol: "tcp"}
				switch {
				case err == nil:
					res.State = model.PortOpen
					_ = conn.Close()
					p.ctrl.Observe(true)
				case isTimeout(err):
					res.State = model.PortFiltered
					res.Reason = "timeout"
					p.ctrl.Observe(false)
				case isRefused(err):
					res.State = model.PortClosed
					res.Reason = "connection refused"
					p.ctrl.Observe(true)
				case isUnreachable(err):
					res.State = model.PortFiltered
					res.Reason = "host unreachable"
					p.ctrl.Observe(false)
				default:
					res.State = model.PortClosed
					res.Reason = err.Error()
					p.ctrl.Observe(false)
				}
				resultsCh <- res
			}
		}()
	}

	go func() {
		for i := 0; i < remaining; i++ {
			r := <-resultsCh
			results[idxByPort[r.Port]] = r
		}
		close(done)
	}()
	<-done
	return results
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func isRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "refused")
	}
	return false
}

// isUnreachable reports the "no route to host" / "network is unreachable"
// class of dial failure, distinct from a genuine protocol-level RST
// (isRefused) or an otherwise-unclassified dial error.
func isUnreachable(err error) bool {
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		msg := opErr.Err.Error()
		return strings.Contains(msg, "unreachable") || strings.Contains(msg, "no route to host")
	}
	return false
}
