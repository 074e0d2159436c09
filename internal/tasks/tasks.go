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

// Package tasks implements the task registry (§4.L): submission, live
// status, and a startup retention sweep against the durable ScanStore.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/pkg/log"
)

// Store is the subset of internal/store.ScanStore the registry needs.
type Store interface {
	Save(ctx context.Context, task *model.ScanTask) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Registry tracks live ScanTasks in memory, mirroring every transition to
// the durable Store.
type Registry struct {
	store Store
	tasks sync.Map // task_id -> *model.ScanTask
}

// New builds a Registry and runs the retention sweep once synchronously,
// matching the teacher's pattern of deterministic startup work before
// serving traffic.
func New(ctx context.Context, store Store, retention time.Duration) *Registry {
	r := &Registry{store: store}
	if store != nil && retention > 0 {
		cutoff := time.Now().Add(-retention)
		if n, err := store.DeleteOlderThan(ctx, cutoff); err != nil {
			log.WithComponent("tasks").Warn().Err(err).Msg("retention sweep failed")
		} else if n > 0 {
			log.WithComponent("tasks").Info().Int("deleted", n).Msg("retention sweep removed stale tasks")
		}
	}
	return r
}

// Submit assigns a new task/scan ID pair and records the task as PENDING.
func (r *Registry) Submit(target string, ports []int, opts model.ScanOptions, userID string) *model.ScanTask {
	task := &model.ScanTask{
		TaskID:      uuid.NewString(),
		ScanID:      uuid.NewString(),
		UserID:      userID,
		Target:      model.Target{Raw: target},
		Ports:       ports,
		Options:     opts,
		State:       model.TaskPending,
		SubmittedAt: time.Now(),
	}
	r.tasks.Store(task.TaskID, task)
	return task
}

// Update replaces the stored task, mirroring it to the durable store.
func (r *Registry) Update(ctx context.Context, task *model.ScanTask) {
	r.tasks.Store(task.TaskID, task)
	if r.store != nil {
		if err := r.store.Save(ctx, task); err != nil {
			log.WithComponent("tasks").Warn().Err(err).Str("task_id", task.TaskID).Msg("failed to persist task")
		}
	}
}

// Status returns the live view of a task, if known to this process.
func (r *Registry) Status(taskID string) (*model.ScanTask, bool) {
	v, ok := r.tasks.Load(taskID)
	if !ok {
		return nil, false
	}
	return v.(*model.ScanTask), true
}
