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

	_ "modernc.org/sqlite"

	"github.com/scansentry/scansentry/internal/model"
)

// sqliteStore is the default, dependency-free backend: every deployment
// gets durable task history even with no external database configured.
type sqliteStore struct {
	db *sql.DB
}

func openSQLite(path string) (*sqliteStore, error) {
	if path == "" {
		path = "scansentry.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY
	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS scan_tasks (
	task_id      TEXT PRIMARY KEY,
	scan_id      TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	target_raw   TEXT NOT NULL,
	resolved_ip  TEXT,
	state        TEXT NOT NULL,
	progress     REAL NOT NULL DEFAULT 0,
	submitted_at DATETIME NOT NULL,
	completed_at DATETIME,
	cached       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
)`

func (s *sqliteStore) Save(ctx context.Context, t *model.ScanTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_tasks (task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(task_id) DO UPDATE SET
			state = excluded.state,
			progress = excluded.progress,
			completed_at = excluded.completed_at,
			cached = excluded.cached,
			error = excluded.error
	`, t.TaskID, t.ScanID, t.UserID, t.Target.Raw, t.Target.ResolvedIP, string(t.State),
		t.Progress, t.SubmittedAt, t.CompletedAt, t.Cached, nullableString(t.Error))
	return err
}

func (s *sqliteStore) Get(ctx context.Context, scanID, userID string) (*model.ScanTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error
		FROM scan_tasks WHERE scan_id = ? AND user_id = ?`, scanID, userID)
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

func (s *sqliteStore) List(ctx context.Context, userID string, limit, offset int) ([]*model.ScanTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, scan_id, user_id, target_raw, resolved_ip, state, progress, submitted_at, completed_at, cached, error
		FROM scan_tasks WHERE user_id = ? ORDER BY submitted_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
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

func (s *sqliteStore) Delete(ctx context.Context, scanID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scan_tasks WHERE scan_id = ?`, scanID)
	return err
}

func (s *sqliteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_tasks WHERE submitted_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
