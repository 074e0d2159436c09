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
	"database/sql"
	"fmt"
)

// SQLAuditStore appends audit records to whatever *sql.DB backs the scan
// store. Placeholder style differs between the SQLite (?) and PostgreSQL
// ($N) drivers, so the caller names which one it opened.
type SQLAuditStore struct {
	db       *sql.DB
	postgres bool
}

// NewSQLAuditStore wires an audit trail against an already-opened database
// handle and ensures its table exists. Set postgres to true when db was
// opened against PostgreSQL so the correct placeholder style is used.
func NewSQLAuditStore(ctx context.Context, db *sql.DB, postgres bool) (*SQLAuditStore, error) {
	schema := auditSchemaSQLite
	if postgres {
		schema = auditSchemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, err
	}
	return &SQLAuditStore{db: db, postgres: postgres}, nil
}

const auditSchemaSQLite = `
CREATE TABLE IF NOT EXISTS audit_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp        DATETIME NOT NULL,
	target           TEXT NOT NULL,
	resolved_ip      TEXT,
	original_command TEXT,
	client_host      TEXT,
	consent          INTEGER NOT NULL,
	note             TEXT
)`

const auditSchemaPostgres = `
CREATE TABLE IF NOT EXISTS audit_records (
	id               BIGSERIAL PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL,
	target           TEXT NOT NULL,
	resolved_ip      TEXT,
	original_command TEXT,
	client_host      TEXT,
	consent          BOOLEAN NOT NULL,
	note             TEXT
)`

// Append persists one forced-override record.
func (s *SQLAuditStore) Append(ctx context.Context, rec AuditRecord) error {
	query := `INSERT INTO audit_records (timestamp, target, resolved_ip, original_command, client_host, consent, note) VALUES (?,?,?,?,?,?,?)`
	if s.postgres {
		query = `INSERT INTO audit_records (timestamp, target, resolved_ip, original_command, client_host, consent, note) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	}
	if _, err := s.db.ExecContext(ctx, query,
		rec.Timestamp, rec.Target, rec.ResolvedIP, rec.OriginalCommand, rec.ClientHost, rec.Consent, rec.Note); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}
