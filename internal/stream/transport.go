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
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// CheckToken compares the supplied token against the configured one in
// constant time (Testable Property 8). An empty configured token refuses
// every connection — the endpoint is closed, not open, by default.
func CheckToken(configured, supplied string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}

// ServeSSE writes events from sub as text/event-stream frames until the
// request context is cancelled or the flusher disappears.
func ServeSSE(w http.ResponseWriter, r *http.Request, sub *Subscriber) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Wait():
			for _, ev := range sub.Drain() {
				b, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				w.Write([]byte("data: "))
				w.Write(b)
				w.Write([]byte("\n\n"))
			}
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Command is the JSON frame a WebSocket client may send.
type Command struct {
	Command string `json:"command"`
	Force   bool   `json:"force,omitempty"`
	Consent bool   `json:"consent,omitempty"`
}

// ServeWS upgrades the connection and relays events from sub as JSON frames,
// reading Commands from the client on a separate goroutine via onCommand.
func ServeWS(w http.ResponseWriter, r *http.Request, sub *Subscriber, onCommand func(Command)) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	return ServeWSConn(r.Context(), conn, sub, onCommand)
}

// ServeWSConn relays events from sub as JSON frames over an already-upgraded
// connection. Callers that need to write control frames (denied,
// pre_scan_warning) before the event stream starts upgrade the connection
// themselves and call this directly instead of ServeWS.
func ServeWSConn(ctx context.Context, conn *websocket.Conn, sub *Subscriber, onCommand func(Command)) error {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if onCommand != nil {
				onCommand(cmd)
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-readDone:
			return nil
		case <-sub.Wait():
			for _, ev := range sub.Drain() {
				if err := conn.WriteJSON(ev); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// WriteDeniedFrame sends a one-off control frame for auth/policy rejections
// that occur before a ScanEvent stream exists (auth_error, denied, etc.).
func WriteDeniedFrame(conn *websocket.Conn, kind string, message string) error {
	return conn.WriteJSON(map[string]string{"type": kind, "message": message})
}
