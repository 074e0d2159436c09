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

package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/internal/orchestrate"
	"github.com/scansentry/scansentry/internal/policy"
	"github.com/scansentry/scansentry/internal/stream"
	"github.com/scansentry/scansentry/internal/validate"
	"github.com/scansentry/scansentry/pkg/log"
)

// handleStreamScan implements GET /scan/stream?target=&ports= — a
// synchronous SSE scan, distinct from the queued POST /scan path. It always
// runs with default ScanOptions; no options are read from the query.
func (s *Server) handleStreamScan(w http.ResponseWriter, r *http.Request, clientID string) {
	target := r.URL.Query().Get("target")
	ports, err := ParsePortSpec(r.URL.Query().Get("ports"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(ports) > s.portLimit {
		http.Error(w, string(model.ReasonInvalidPortSet), http.StatusBadRequest)
		return
	}

	scanID := uuid.NewString()
	sub := stream.NewSubscriber(256)
	orch := orchestrate.New(s.deps, scanID, clientID)

	go func() {
		for ev := range orch.Events() {
			sub.Push(ev)
		}
		sub.Close()
	}()
	go orch.Run(r.Context(), target, ports, model.ScanOptions{})

	stream.ServeSSE(w, r, sub)
}

// handleWSCommand implements GET /ws/command?token=&target=&ports= — the
// shared-secret WS transport with pre-scan reachability warning and
// denylist/allowlist enforcement (§6).
func (s *Server) handleWSCommand(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !stream.CheckToken(s.wsToken, token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	target := r.URL.Query().Get("target")
	ports, err := ParsePortSpec(r.URL.Query().Get("ports"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	resolvedTarget, resolveErr := validate.ValidateTarget(target, false, s.deps.Whitelist)
	if resolveErr == nil {
		resolvedTarget, resolveErr = s.deps.Resolver.Resolve(r.Context(), resolvedTarget, s.deps.Whitelist)
	}
	if resolveErr != nil {
		_ = stream.WriteDeniedFrame(conn, "denied", resolveErr.Error())
		return
	}

	verdict := s.gate.Check(target, resolvedTarget.ResolvedIP)
	if verdict == policy.Denied {
		_ = stream.WriteDeniedFrame(conn, "denied", "target is denylisted")
		return
	}

	scanID := uuid.NewString()
	sub := stream.NewSubscriber(256)

	forced := make(chan bool, 1)
	onCommand := func(cmd stream.Command) {
		if cmd.Command == "scan" && cmd.Force {
			select {
			case forced <- true:
			default:
			}
		}
	}

	if verdict == policy.AllowlistNotice {
		_ = stream.WriteDeniedFrame(conn, "allowlist_notice", "target is not on the allowlist; proceeding")
	}

	if !quickReachable(target, []int{80, 443}, 500*time.Millisecond) {
		_ = stream.WriteDeniedFrame(conn, "pre_scan_warning", "target did not respond on 80/443; resend with force=true to proceed")
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		for forcedScan := false; !forcedScan; {
			var cmd stream.Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			forcedScan = cmd.Command == "scan" && cmd.Force
		}
		_ = conn.SetReadDeadline(time.Time{})
		err := s.gate.RecordOverride(context.Background(), policy.AuditRecord{
			Timestamp:       time.Now(),
			Target:          target,
			ResolvedIP:      resolvedTarget.ResolvedIP,
			OriginalCommand: "scan",
			ClientHost:      r.RemoteAddr,
			Consent:         true,
			Note:            "forced past pre_scan_warning",
		})
		if err != nil {
			log.WithComponent("api").Warn().Err(err).Msg("audit record for forced scan not stored")
		}
	}

	orch := orchestrate.New(s.deps, scanID, r.RemoteAddr)
	go func() {
		for ev := range orch.Events() {
			sub.Push(ev)
		}
		sub.Close()
	}()
	go orch.Run(r.Context(), target, ports, model.ScanOptions{})

	_ = stream.ServeWSConn(r.Context(), conn, sub, onCommand)
}

// quickReachable performs a best-effort TCP connect probe used only to
// decide whether to surface pre_scan_warning; it never blocks the scan
// itself and failures here are not fatal.
func quickReachable(host string, ports []int, timeout time.Duration) bool {
	for _, p := range ports {
		addr := net.JoinHostPort(host, strconv.Itoa(p))
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}
