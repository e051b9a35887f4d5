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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/authgrid/authgrid/internal/authz"
)

const rolePermColumns = `id, role_id, permission_id, granted_at, granted_by, revoked_at, revoked_by`

// RolePermissionRepository implements authz.RolePermissionRepository.
type RolePermissionRepository struct {
	db *DB
}

func NewRolePermissionRepository(db *DB) *RolePermissionRepository {
	return &RolePermissionRepository{db: db}
}

func (r *RolePermissionRepository) Insert(ctx context.Context, rp *authz.RolePermission) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, granted_at, granted_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rp.RoleID, rp.PermissionID, rp.GrantedAt, rp.GrantedBy).Scan(&rp.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: role %s already carries permission %s",
				authz.ErrDuplicateAssignment, rp.RoleID, rp.PermissionID)
		}
		return fmt.Errorf("failed to insert role permission: %w", err)
	}
	return nil
}

func (r *RolePermissionRepository) Save(ctx context.Context, rp *authz.RolePermission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_permissions SET revoked_at = $2, revoked_by = $3 WHERE id = $1
	`, rp.ID, rp.RevokedAt, rp.RevokedBy)
	if err != nil {
		return fmt.Errorf("failed to save role permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "role permission", ID: fmt.Sprintf("%d", rp.ID)}
	}
	return nil
}

func (r *RolePermissionRepository) FindActiveByRole(ctx context.Context, roleID string) ([]*authz.RolePermission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+rolePermColumns+` FROM role_permissions
		WHERE role_id = $1 AND revoked_at IS NULL
		ORDER BY granted_at
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	var rps []*authz.RolePermission
	for rows.Next() {
		var rp authz.RolePermission
		if err := rows.Scan(
			&rp.ID, &rp.RoleID, &rp.PermissionID,
			&rp.GrantedAt, &rp.GrantedBy, &rp.RevokedAt, &rp.RevokedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		rps = append(rps, &rp)
	}
	return rps, rows.Err()
}

func (r *RolePermissionRepository) FindActiveByRoleAndPermission(ctx context.Context, roleID, permissionID string) (*authz.RolePermission, error) {
	var rp authz.RolePermission
	err := r.db.pool.QueryRow(ctx, `
		SELECT `+rolePermColumns+` FROM role_permissions
		WHERE role_id = $1 AND permission_id = $2 AND revoked_at IS NULL
	`, roleID, permissionID).Scan(
		&rp.ID, &rp.RoleID, &rp.PermissionID,
		&rp.GrantedAt, &rp.GrantedBy, &rp.RevokedAt, &rp.RevokedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "role permission grant", ID: roleID + "/" + permissionID}
		}
		return nil, fmt.Errorf("failed to get role permission: %w", err)
	}
	return &rp, nil
}
