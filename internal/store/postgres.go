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
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/scansentry/scansentry/internal/model"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS scan_tasks (
//   task_id      TEXT PRIMARY KEY,
//   scan_id      TEXT NOT NULL,
//   user_id      TEXT NOT NULL,
//   target_raw   TEXT NOT NULL,
//   resolved_ip  TEXT,
//   state        TEXT NOT NULL,
//   progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
//   submitted_at TIMESTAMPTZ NOT NULL,
//   completed_at TIMESTAMPTZ,
//   cached       BOOLEAN NOT NULL DEFAULT false,
//   error        TEXT
// );
// CREATE INDEX IF NOT EXISTS idx_scan_tasks_user ON scan_tasks(user_id, submitted_at DESC);

type postgresStore struct {
	db *sql.DB
}

// openPostgres dials databaseURL and requires a successful PingContext
// before returning: a reachable-but-wrong DSN must never be handed to the
// orchestrator as if it were durable storage.
func openPostgres(ctx context.Context, databaseURL string) (*postgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &postgresStore{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scan_tasks (
	task_id      TEXT PRIMARY KEY,
	scan_id      TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	target_raw   TEXT NOT NULL,
	resolved_ip  TEXT,
	state        TEXT NOT NULL,
	progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
	submitted_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	cached       BOOLEAN NOT NULL DEFAULT false,
	error        TEXT
)`

// Save is an idempotent upsert keyed by task_id: ON CONFLICT DO UPDATE
// overwrites the stored row with the task's current fields.
func (s *postgresStore) Save(ctx context.Context, t *model.ScanTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_tasks (task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (task_id) DO UPDATE SET
			state = EXCLUDED.state,
			progress = EXCLUDED.progress,
			completed_at = EXCLUDED.completed_at,
			cached = EXCLUDED.cached,
			error = EXCLUDED.error
	`, t.TaskID, t.ScanID, t.UserID, t.Target.Raw, t.Target.ResolvedIP, string(t.State),
		t.Progress, t.SubmittedAt, t.CompletedAt, t.Cached, nullableString(t.Error))
	return err
}

func (s *postgresStore) Get(ctx context.Context, scanID, userID string) (*model.ScanTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error
		FROM scan_tasks WHERE scan_id = $1 AND user_id = $2`, scanID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	t := &model.ScanTask{}
	if err := scanRow(rows, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *postgresStore) List(ctx context.Context, userID string, limit, offset int) ([]*model.ScanTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error
		FROM scan_tasks WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ScanTask
	for rows.Next() {
		t := &model.ScanTask{}
		if err := scanRow(rows, t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *postgresStore) Delete(ctx context.Context, scanID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scan_tasks WHERE scan_id = $1`, scanID)
	return err
}

func (s *postgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_tasks WHERE submitted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
