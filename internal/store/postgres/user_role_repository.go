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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/authgrid/authgrid/internal/authz"
)

// pgErrUniqueViolation is the SQLSTATE for unique constraint errors.
const pgErrUniqueViolation = "23505"

const userRoleColumns = `id, user_id, role_id, organization_id, granted_at, granted_by, expires_at, revoked_at, revoked_by`

// UserRoleRepository implements authz.UserRoleRepository.
type UserRoleRepository struct {
	db *DB
}

func NewUserRoleRepository(db *DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// Insert adds a new assignment row. The partial unique index on
// active rows turns a concurrent double-grant into a unique
// violation, surfaced as DuplicateAssignmentError.
func (r *UserRoleRepository) Insert(ctx context.Context, ur *authz.UserRole) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO user_roles (user_id, role_id, organization_id, granted_at, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, ur.UserID, ur.RoleID, ur.OrganizationID, ur.GrantedAt, ur.GrantedBy, ur.ExpiresAt).Scan(&ur.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return &authz.DuplicateAssignmentError{UserID: ur.UserID, RoleID: ur.RoleID}
		}
		return fmt.Errorf("failed to insert user role: %w", err)
	}
	return nil
}

// Save persists the revocation fields of an existing row.
func (r *UserRoleRepository) Save(ctx context.Context, ur *authz.UserRole) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE user_roles SET revoked_at = $2, revoked_by = $3 WHERE id = $1
	`, ur.ID, ur.RevokedAt, ur.RevokedBy)
	if err != nil {
		return fmt.Errorf("failed to save user role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "user role", ID: fmt.Sprintf("%d", ur.ID)}
	}
	return nil
}

func (r *UserRoleRepository) FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*authz.UserRole, error) {
	return r.queryMany(ctx, `
		SELECT `+userRoleColumns+` FROM user_roles
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at
	`, userID, now)
}

func (r *UserRoleRepository) FindActiveByUserAndRole(ctx context.Context, userID, roleID string, now time.Time) (*authz.UserRole, error) {
	var ur authz.UserRole
	err := r.db.pool.QueryRow(ctx, `
		SELECT `+userRoleColumns+` FROM user_roles
		WHERE user_id = $1
		  AND role_id = $2
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)
	`, userID, roleID, now).Scan(
		&ur.ID, &ur.UserID, &ur.RoleID, &ur.OrganizationID,
		&ur.GrantedAt, &ur.GrantedBy, &ur.ExpiresAt, &ur.RevokedAt, &ur.RevokedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "role assignment", ID: userID + "/" + roleID}
		}
		return nil, fmt.Errorf("failed to get user role: %w", err)
	}
	return &ur, nil
}

func (r *UserRoleRepository) FindActiveByRole(ctx context.Context, roleID string, now time.Time) ([]*authz.UserRole, error) {
	return r.queryMany(ctx, `
		SELECT `+userRoleColumns+` FROM user_roles
		WHERE role_id = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at
	`, roleID, now)
}

// FindAtInstant returns assignments whose grant window covered t:
// granted on or before t and neither revoked nor expired by t.
func (r *UserRoleRepository) FindAtInstant(ctx context.Context, userID string, t time.Time) ([]*authz.UserRole, error) {
	return r.queryMany(ctx, `
		SELECT `+userRoleColumns+` FROM user_roles
		WHERE user_id = $1
		  AND granted_at <= $2
		  AND (revoked_at IS NULL OR revoked_at > $2)
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY granted_at
	`, userID, t)
}

// ActivePermissionIDs joins active assignments against active
// role-permission grants in one query.
func (r *UserRoleRepository) ActivePermissionIDs(ctx context.Context, userID string, now time.Time) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT rp.permission_id
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE ur.user_id = $1
		  AND ur.revoked_at IS NULL
		  AND (ur.expires_at IS NULL OR ur.expires_at > $2)
		  AND rp.revoked_at IS NULL
		ORDER BY rp.permission_id
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permission ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan permission id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRoleRepository) queryMany(ctx context.Context, query string, args ...any) ([]*authz.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var urs []*authz.UserRole
	for rows.Next() {
		var ur authz.UserRole
		if err := rows.Scan(
			&ur.ID, &ur.UserID, &ur.RoleID, &ur.OrganizationID,
			&ur.GrantedAt, &ur.GrantedBy, &ur.ExpiresAt, &ur.RevokedAt, &ur.RevokedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		urs = append(urs, &ur)
	}
	return urs, rows.Err()
}
