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

package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/scansentry/scansentry/internal/model"
)

type fakeStore struct {
	saved []*model.ScanTask
}

func (f *fakeStore) Save(ctx context.Context, task *model.ScanTask) error {
	f.saved = append(f.saved, task)
	return nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func TestSubmitThenStatus(t *testing.T) {
	r := New(context.Background(), &fakeStore{}, 0)
	task := r.Submit("127.0.0.1", []int{22}, model.ScanOptions{}, "user-1")
	if task.State != model.TaskPending {
		t.Fatalf("expected PENDING state, got %v", task.State)
	}
	got, ok := r.Status(task.TaskID)
	if !ok || got.TaskID != task.TaskID {
		t.Fatal("expected to find submitted task by id")
	}
}

func TestUpdateMirrorsToStore(t *testing.T) {
	store := &fakeStore{}
	r := New(context.Background(), store, 0)
	task := r.Submit("127.0.0.1", []int{22}, model.ScanOptions{}, "user-1")
	task.State = model.TaskSuccess
	r.Update(context.Background(), task)
	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one save call, got %d", len(store.saved))
	}
}
