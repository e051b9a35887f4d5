// Copyright 2026 The Authgrid Authors
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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/authgrid/authgrid/internal/audit"
)

const auditColumns = `id, ts, user_id, action, resource_type, resource_id, decision, reason, ip_address, user_agent`

// AuditRepository implements audit.Store. Rows are insert-only.
type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *audit.Entry) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO authorization_audit_log
			(ts, user_id, action, resource_type, resource_id, decision, reason, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, e.Timestamp, e.UserID, e.Action, e.ResourceType, e.ResourceID,
		e.Decision, e.Reason, e.IPAddress, e.UserAgent).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*audit.Entry, error) {
	return r.queryMany(ctx, `
		SELECT `+auditColumns+` FROM authorization_audit_log
		WHERE user_id = $1
		ORDER BY ts DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
}

func (r *AuditRepository) ListByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*audit.Entry, error) {
	return r.queryMany(ctx, `
		SELECT `+auditColumns+` FROM authorization_audit_log
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts DESC
		LIMIT $3 OFFSET $4
	`, from, to, limit, offset)
}

func (r *AuditRepository) queryMany(ctx context.Context, query string, args ...any) ([]*audit.Entry, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Decision, &e.Reason, &e.IPAddress, &e.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
