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

const roleColumns = `id, name, description, parent_role_id, deleted, deleted_at, deleted_by, created_at, updated_at`

// RoleRepository implements authz.RoleRepository.
type RoleRepository struct {
	db *DB
}

func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, parent_role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, role.ID, role.Name, role.Description, role.ParentRoleID, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetActive(ctx context.Context, id string) (*authz.Role, error) {
	return r.getWhere(ctx, `id = $1 AND NOT deleted`, id)
}

func (r *RoleRepository) GetAny(ctx context.Context, id string) (*authz.Role, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *RoleRepository) getWhere(ctx context.Context, where string, arg any) (*authz.Role, error) {
	var role authz.Role
	err := r.db.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE `+where, arg,
	).Scan(
		&role.ID, &role.Name, &role.Description, &role.ParentRoleID,
		&role.Deleted, &role.DeletedAt, &role.DeletedBy, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "role", ID: fmt.Sprint(arg)}
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role *authz.Role) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET
			name = $2,
			description = $3,
			parent_role_id = $4,
			deleted = $5,
			deleted_at = $6,
			deleted_by = $7,
			updated_at = $8
		WHERE id = $1
	`, role.ID, role.Name, role.Description, role.ParentRoleID,
		role.Deleted, role.DeletedAt, role.DeletedBy, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "role", ID: role.ID}
	}
	return nil
}

func (r *RoleRepository) ListActive(ctx context.Context) ([]*authz.Role, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE NOT deleted ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.Role
	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Description, &role.ParentRoleID,
			&role.Deleted, &role.DeletedAt, &role.DeletedBy, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}
