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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/authgrid/authgrid/internal/authz"
)

const resourcePermColumns = `id, user_id, resource_type, resource_id, permission, reason, granted_at, granted_by, expires_at, revoked_at, revoked_by`

// ResourcePermissionRepository implements
// authz.ResourcePermissionRepository.
type ResourcePermissionRepository struct {
	db *DB
}

func NewResourcePermissionRepository(db *DB) *ResourcePermissionRepository {
	return &ResourcePermissionRepository{db: db}
}

func (r *ResourcePermissionRepository) Insert(ctx context.Context, rp *authz.ResourcePermission) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO resource_permissions
			(user_id, resource_type, resource_id, permission, reason, granted_at, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, rp.UserID, rp.ResourceType, rp.ResourceID, rp.Permission, rp.Reason,
		rp.GrantedAt, rp.GrantedBy, rp.ExpiresAt).Scan(&rp.ID)
	if err != nil {
		return fmt.Errorf("failed to insert resource permission: %w", err)
	}
	return nil
}

func (r *ResourcePermissionRepository) Save(ctx context.Context, rp *authz.ResourcePermission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE resource_permissions SET revoked_at = $2, revoked_by = $3 WHERE id = $1
	`, rp.ID, rp.RevokedAt, rp.RevokedBy)
	if err != nil {
		return fmt.Errorf("failed to save resource permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "resource permission", ID: fmt.Sprintf("%d", rp.ID)}
	}
	return nil
}

func (r *ResourcePermissionRepository) GetByID(ctx context.Context, id int64) (*authz.ResourcePermission, error) {
	var rp authz.ResourcePermission
	err := r.db.pool.QueryRow(ctx,
		`SELECT `+resourcePermColumns+` FROM resource_permissions WHERE id = $1`, id,
	).Scan(
		&rp.ID, &rp.UserID, &rp.ResourceType, &rp.ResourceID, &rp.Permission, &rp.Reason,
		&rp.GrantedAt, &rp.GrantedBy, &rp.ExpiresAt, &rp.RevokedAt, &rp.RevokedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "resource permission", ID: fmt.Sprintf("%d", id)}
		}
		return nil, fmt.Errorf("failed to get resource permission: %w", err)
	}
	return &rp, nil
}

func (r *ResourcePermissionRepository) FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*authz.ResourcePermission, error) {
	return r.queryMany(ctx, `
		SELECT `+resourcePermColumns+` FROM resource_permissions
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at
	`, userID, now)
}

func (r *ResourcePermissionRepository) FindAtInstant(ctx context.Context, userID string, t time.Time) ([]*authz.ResourcePermission, error) {
	return r.queryMany(ctx, `
		SELECT `+resourcePermColumns+` FROM resource_permissions
		WHERE user_id = $1
		  AND granted_at <= $2
		  AND (revoked_at IS NULL OR revoked_at > $2)
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at
	`, userID, t)
}

func (r *ResourcePermissionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*authz.ResourcePermission, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource permissions: %w", err)
	}
	defer rows.Close()

	var rps []*authz.ResourcePermission
	for rows.Next() {
		var rp authz.ResourcePermission
		if err := rows.Scan(
			&rp.ID, &rp.UserID, &rp.ResourceType, &rp.ResourceID, &rp.Permission, &rp.Reason,
			&rp.GrantedAt, &rp.GrantedBy, &rp.ExpiresAt, &rp.RevokedAt, &rp.RevokedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resource permission: %w", err)
		}
		rps = append(rps, &rp)
	}
	return rps, rows.Err()
}
