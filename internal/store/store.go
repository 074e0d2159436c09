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

// Package store implements the ScanStore persistence contract (§6) with a
// SQLite-by-default, PostgreSQL-when-available adapter selection. A
// PostgreSQL DSN is only trusted after an explicit successful ping — never
// routed to blind (Open Question 3).
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/pkg/log"
)

// ScanStore is the collaborator contract the core consumes; it does not
// know or care which SQL backend is behind it.
type ScanStore interface {
	Save(ctx context.Context, task *model.ScanTask) error
	Get(ctx context.Context, scanID string, userID string) (*model.ScanTask, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*model.ScanTask, error)
	Delete(ctx context.Context, scanID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open selects SQLite or PostgreSQL depending on databaseURL. An empty URL,
// a dial failure, or a failed ping all fall back to SQLite at sqlitePath —
// PostgreSQL is never used without a verified-live connection.
func Open(ctx context.Context, databaseURL, sqlitePath string) (ScanStore, error) {
	logger := log.WithComponent("store")
	if databaseURL != "" {
		pg, err := openPostgres(ctx, databaseURL)
		if err == nil {
			logger.Info().Msg("using PostgreSQL scan store")
			return pg, nil
		}
		logger.Warn().Err(err).Msg("PostgreSQL unavailable, falling back to SQLite")
	}
	return openSQLite(sqlitePath)
}

func scanRow(row *sql.Rows, t *model.ScanTask) error {
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&t.TaskID, &t.ScanID, &t.UserID, &t.Target.Raw, &t.Target.ResolvedIP,
		&t.State, &t.Progress, &t.SubmittedAt, &completedAt, &t.Cached, &errMsg); err != nil {
		return err
	}
	if completedAt.Valid {
		ct := completedAt.Time
		t.CompletedAt = &ct
	}
	if errMsg.Valid {
		t.Error = errMsg.String
	}
	return nil
}
