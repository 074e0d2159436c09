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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	s, err := openSQLite(":memory:")
	if err != nil {
		t.Fatalf("openSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &model.ScanTask{
		TaskID:      "task-1",
		ScanID:      "scan-1",
		UserID:      "user-1",
		Target:      model.Target{Raw: "example.com", ResolvedIP: "93.184.216.34"},
		State:       model.TaskSuccess,
		Progress:    1.0,
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
		Cached:      true,
	}
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "scan-1", "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TaskID != task.TaskID || got.State != model.TaskSuccess || !got.Cached {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &model.ScanTask{TaskID: "t1", ScanID: "s1", UserID: "u1", State: model.TaskPending, SubmittedAt: time.Now()}
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("Save: %v", err)
	}
	task.State = model.TaskSuccess
	task.Progress = 1.0
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := s.Get(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.TaskSuccess || got.Progress != 1.0 {
		t.Fatalf("expected upsert to update state/progress, got %+v", got)
	}
}

func TestDeleteOlderThanRemovesStaleTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &model.ScanTask{TaskID: "old", ScanID: "old", UserID: "u1", State: model.TaskSuccess, SubmittedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &model.ScanTask{TaskID: "fresh", ScanID: "fresh", UserID: "u1", State: model.TaskSuccess, SubmittedAt: time.Now()}
	if err := s.Save(ctx, old); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, fresh); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := s.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := s.Get(ctx, "old", "u1"); err == nil {
		t.Fatal("expected old task to be gone")
	}
	if _, err := s.Get(ctx, "fresh", "u1"); err != nil {
		t.Fatal("expected fresh task to survive")
	}
}

func TestListOrdersBySubmittedAtDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		task := &model.ScanTask{
			TaskID: id, ScanID: id, UserID: "u1", State: model.TaskSuccess,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Save(ctx, task); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	list, err := s.List(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ScanID != "c" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}
