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

package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeListFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write list file: %v", err)
	}
	return path
}

func TestDenylistBlocksCaseInsensitively(t *testing.T) {
	path := writeListFile(t, "Example.COM")
	deny, err := LoadList(path)
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	g := &Gate{Denylist: deny, Allowlist: &List{}}
	if got := g.Check("example.com", "93.184.216.34"); got != Denied {
		t.Fatalf("expected Denied for case-insensitive match, got %v", got)
	}
}

func TestDenylistMatchesResolvedIP(t *testing.T) {
	path := writeListFile(t, "10.1.2.3")
	deny, err := LoadList(path)
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	g := &Gate{Denylist: deny, Allowlist: &List{}}
	if got := g.Check("internal-host", "10.1.2.3"); got != Denied {
		t.Fatalf("expected Denied when resolved IP matches denylist, got %v", got)
	}
}

func TestAllowlistAbsentTargetGetsNotice(t *testing.T) {
	path := writeListFile(t, "trusted.example.com")
	allow, err := LoadList(path)
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	g := &Gate{Denylist: &List{}, Allowlist: allow}
	if got := g.Check("other.example.com", "1.2.3.4"); got != AllowlistNotice {
		t.Fatalf("expected AllowlistNotice, got %v", got)
	}
	if got := g.Check("trusted.example.com", "1.2.3.4"); got != Allowed {
		t.Fatalf("expected Allowed for listed target, got %v", got)
	}
}

func TestNoListsConfiguredAllowsEverything(t *testing.T) {
	g := &Gate{Denylist: &List{}, Allowlist: &List{}}
	if got := g.Check("anything.example.com", "1.2.3.4"); got != Allowed {
		t.Fatalf("expected Allowed with no lists configured, got %v", got)
	}
}

type fakeAudit struct {
	records []AuditRecord
}

func (f *fakeAudit) Append(ctx context.Context, rec AuditRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func TestRecordOverrideAppendsToAuditStore(t *testing.T) {
	audit := &fakeAudit{}
	g := &Gate{Denylist: &List{}, Allowlist: &List{}, Audit: audit}
	rec := AuditRecord{Timestamp: time.Now(), Target: "example.com", Consent: true, Note: "forced past pre_scan_warning"}
	if err := g.RecordOverride(context.Background(), rec); err != nil {
		t.Fatalf("RecordOverride: %v", err)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
}

func TestMissingListFileYieldsEmptyList(t *testing.T) {
	l, err := LoadList(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	if !l.Empty() {
		t.Fatal("expected empty list for missing file")
	}
}
