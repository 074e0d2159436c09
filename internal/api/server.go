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

// Package api implements the public-facing HTTP/WebSocket server: task
// submission and query, SSE/WS event streaming, bearer-token auth, and
// denylist/allowlist/pre-scan-warning enforcement (§6).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/internal/orchestrate"
	"github.com/scansentry/scansentry/internal/policy"
	"github.com/scansentry/scansentry/internal/stream"
	"github.com/scansentry/scansentry/internal/tasks"
	"github.com/scansentry/scansentry/pkg/log"
)

// Server wires the HTTP surface to the core collaborators. It holds no
// scan-specific state itself; every scan's lifetime lives in an
// orchestrate.Orchestrator.
type Server struct {
	deps       orchestrate.Deps
	tasks      *tasks.Registry
	gate       *policy.Gate
	keys       *KeyStore
	dispatcher *stream.Dispatcher
	wsToken    string
	portLimit  int
	warnAt     int
}

// Config bundles the server's own knobs, distinct from the scan engine's
// orchestrate.Deps.
type Config struct {
	WSToken   string
	PortLimit int
	WarnAt    int
}

// NewServer constructs the API server.
func NewServer(deps orchestrate.Deps, reg *tasks.Registry, gate *policy.Gate, keys *KeyStore, cfg Config) *Server {
	return &Server{
		deps:       deps,
		tasks:      reg,
		gate:       gate,
		keys:       keys,
		dispatcher: stream.NewDispatcher(),
		wsToken:    cfg.WSToken,
		portLimit:  cfg.PortLimit,
		warnAt:     cfg.WarnAt,
	}
}

// RegisterRoutes mounts every handler on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/scan", s.requireAuth(s.handleSubmitScan))
	mux.HandleFunc("/scan/stream", s.requireAuth(s.handleStreamScan))
	mux.HandleFunc("/ws/command", s.handleWSCommand)
	mux.HandleFunc("/scan/", s.requireAuth(s.handleGetScan))
}

// ListenAndServe starts the HTTP server with bounded read and idle windows
// on every connection; writes are unbounded so streaming responses stay open.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
		IdleTimeout:  120 * time.Second,
	}
	log.WithComponent("api").Info().Str("addr", addr).Msg("listening")
	return httpServer.ListenAndServe()
}

func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		clientID, ok := s.keys.Authenticate(token)
		if !ok {
			http.Error(w, "invalid or expired API key", http.StatusUnauthorized)
			return
		}
		next(w, r, clientID)
	}
}

type submitRequest struct {
	Target  string             `json:"target"`
	Ports   string             `json:"ports"`
	Options model.ScanOptions  `json:"options"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	ScanID string `json:"scan_id"`
	State  string `json:"state"`
}

// handleSubmitScan implements POST /scan: validate shape, enqueue, and run
// the scan asynchronously — the request path never blocks on the scan.
func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	ports, err := ParsePortSpec(req.Ports)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(ports) > s.portLimit {
		http.Error(w, string(model.ReasonInvalidPortSet), http.StatusBadRequest)
		return
	}

	task := s.tasks.Submit(req.Target, ports, req.Options, clientID)

	go s.runAsync(task.TaskID, task.ScanID, clientID, req.Target, ports, req.Options)

	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: task.TaskID, ScanID: task.ScanID, State: string(model.TaskPending)})
}

func (s *Server) runAsync(taskID, scanID, clientID, target string, ports []int, opts model.ScanOptions) {
	ctx := context.Background()
	orch := orchestrate.New(s.deps, scanID, clientID)
	sub := s.dispatcher.Subscribe(scanID, 256)
	defer s.dispatcher.Unsubscribe(scanID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		events := orch.Events()
		for ev := range events {
			sub.Push(ev)
		}
	}()

	result := orch.Run(ctx, target, ports, opts)
	<-done
	result.TaskID = taskID
	result.UserID = clientID
	s.tasks.Update(ctx, result)
}

type statusResponse struct {
	State    string              `json:"state"`
	Progress float64             `json:"progress,omitempty"`
	Result   []model.EnrichedPort `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
	Cached   bool                `json:"cached,omitempty"`
}

// handleGetScan implements GET /scan/{task_id}.
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request, _ string) {
	taskID := r.URL.Path[len("/scan/"):]
	if taskID == "" || taskID == "stream" {
		http.NotFound(w, r)
		return
	}
	task, ok := s.tasks.Status(taskID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:    string(task.State),
		Progress: task.Progress,
		Result:   task.Result,
		Error:    task.Error,
		Cached:   task.Cached,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
