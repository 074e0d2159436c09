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

// Package policy implements denylist/allowlist target gating and the audit
// trail for forced pre-scan-warning overrides (§6).
package policy

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"
)

// Verdict is the outcome of checking a target against the configured lists.
type Verdict string

const (
	// Allowed means the target may proceed with no annotation.
	Allowed Verdict = "allowed"
	// Denied means the target appears on the denylist and must be refused.
	Denied Verdict = "denied"
	// AllowlistNotice means an allowlist is configured, the target is not on
	// it, and the scan may proceed but must be annotated.
	AllowlistNotice Verdict = "allowlist_notice"
)

// List is a case-insensitive set of normalized host/IP entries.
type List struct {
	entries map[string]bool
}

// LoadList reads a newline-delimited host list file. A missing path yields
// an empty, always-pass list rather than an error — denylist/allowlist
// files are optional.
func LoadList(path string) (*List, error) {
	l := &List{entries: make(map[string]bool)}
	if path == "" {
		return l, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		l.entries[strings.ToLower(line)] = true
	}
	return l, scanner.Err()
}

// Empty reports whether the list has no entries (distinguishes "no
// allowlist configured" from "allowlist configured but target absent").
func (l *List) Empty() bool {
	return l == nil || len(l.entries) == 0
}

func (l *List) contains(host string) bool {
	if l == nil {
		return false
	}
	return l.entries[strings.ToLower(strings.TrimSpace(host))]
}

// AuditRecord is persisted for every forced pre-scan-warning override.
type AuditRecord struct {
	Timestamp       time.Time
	Target          string
	ResolvedIP      string
	OriginalCommand string
	ClientHost      string
	Consent         bool
	Note            string
}

// AuditStore persists AuditRecords. Implementations must not block the
// scan path on slow storage; callers log a warning and proceed on error.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// Gate evaluates a denylist and an optional allowlist against both the
// normalized raw target string and its resolved IP.
type Gate struct {
	Denylist  *List
	Allowlist *List
	Audit     AuditStore
}

// Check applies Testable Property 6 (case-insensitive block matching) and
// the allowlist-notice rule (§6).
func (g *Gate) Check(rawTarget, resolvedIP string) Verdict {
	if g.Denylist.contains(rawTarget) || g.Denylist.contains(resolvedIP) {
		return Denied
	}
	if !g.Allowlist.Empty() && !g.Allowlist.contains(rawTarget) && !g.Allowlist.contains(resolvedIP) {
		return AllowlistNotice
	}
	return Allowed
}

// RecordOverride persists an audit entry for a forced pre-scan-warning
// override. Failures are swallowed by the caller's logging, not returned
// as scan-blocking errors.
func (g *Gate) RecordOverride(ctx context.Context, rec AuditRecord) error {
	if g.Audit == nil {
		return nil
	}
	return g.Audit.Append(ctx, rec)
}
