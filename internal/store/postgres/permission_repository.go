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

	"github.com/jackc/pgx/v5"

	"github.com/authgrid/authgrid/internal/authz"
)

const permissionColumns = `id, name, resource_type, action, deleted, deleted_at, deleted_by, created_at`

// PermissionRepository implements authz.PermissionRepository.
type PermissionRepository struct {
	db *DB
}

func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Create(ctx context.Context, p *authz.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permissions (id, name, resource_type, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Name, p.ResourceType, p.Action, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert permission: %w", err)
	}
	return nil
}

func (r *PermissionRepository) GetActive(ctx context.Context, id string) (*authz.Permission, error) {
	return r.getWhere(ctx, `id = $1 AND NOT deleted`, id)
}

func (r *PermissionRepository) GetAny(ctx context.Context, id string) (*authz.Permission, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *PermissionRepository) getWhere(ctx context.Context, where string, arg any) (*authz.Permission, error) {
	var p authz.Permission
	err := r.db.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE `+where, arg,
	).Scan(
		&p.ID, &p.Name, &p.ResourceType, &p.Action,
		&p.Deleted, &p.DeletedAt, &p.DeletedBy, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "permission", ID: fmt.Sprint(arg)}
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &p, nil
}

func (r *PermissionRepository) Update(ctx context.Context, p *authz.Permission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE permissions SET
			name = $2,
			resource_type = $3,
			action = $4,
			deleted = $5,
			deleted_at = $6,
			deleted_by = $7
		WHERE id = $1
	`, p.ID, p.Name, p.ResourceType, p.Action, p.Deleted, p.DeletedAt, p.DeletedBy)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "permission", ID: p.ID}
	}
	return nil
}

func (r *PermissionRepository) ListActive(ctx context.Context) ([]*authz.Permission, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE NOT deleted ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(
			&p.ID, &p.Name, &p.ResourceType, &p.Action,
			&p.Deleted, &p.DeletedAt, &p.DeletedBy, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}
