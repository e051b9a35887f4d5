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

	"github.com/jackc/pgx/v5"

	"github.com/authgrid/authgrid/internal/authz"
)

// RevocationStore implements authz.RevocationStore. Each cascade runs
// in one transaction: either every active row is revoked or the
// caller gets an error and nothing changed.
type RevocationStore struct {
	db *DB
}

func NewRevocationStore(db *DB) *RevocationStore {
	return &RevocationStore{db: db}
}

func (s *RevocationStore) RevokeAllForUser(ctx context.Context, userID, revokedBy string, at time.Time) (authz.CascadeResult, error) {
	var res authz.CascadeResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		n, err := execCount(ctx, tx, `
			UPDATE user_roles SET revoked_at = $2, revoked_by = $3
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke user roles: %w", err)
		}
		res.UserRoles = n

		n, err = execCount(ctx, tx, `
			UPDATE resource_permissions SET revoked_at = $2, revoked_by = $3
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke resource permissions: %w", err)
		}
		res.ResourcePermissions = n

		// Delegations fall on both sides: given and received.
		n, err = execCount(ctx, tx, `
			UPDATE delegations SET revoked_at = $2, revoked_by = $3
			WHERE (delegator_id = $1 OR delegatee_id = $1) AND revoked_at IS NULL
		`, userID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke delegations: %w", err)
		}
		res.Delegations = n

		res.AffectedUserIDs = []string{userID}
		return nil
	})
	if err != nil {
		return authz.CascadeResult{}, err
	}
	return res, nil
}

func (s *RevocationStore) RevokeAllForRole(ctx context.Context, roleID, revokedBy string, at time.Time) (authz.CascadeResult, error) {
	var res authz.CascadeResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		users, err := queryStrings(ctx, tx, `
			UPDATE user_roles SET revoked_at = $2, revoked_by = $3
			WHERE role_id = $1 AND revoked_at IS NULL
			RETURNING user_id
		`, roleID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke role assignments: %w", err)
		}
		res.UserRoles = len(users)
		res.AffectedUserIDs = distinct(users)

		n, err := execCount(ctx, tx, `
			UPDATE role_permissions SET revoked_at = $2, revoked_by = $3
			WHERE role_id = $1 AND revoked_at IS NULL
		`, roleID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke role permissions: %w", err)
		}
		res.RolePermissions = n
		return nil
	})
	if err != nil {
		return authz.CascadeResult{}, err
	}
	return res, nil
}

func (s *RevocationStore) RevokeAllForPermission(ctx context.Context, permissionID, revokedBy string, at time.Time) (authz.CascadeResult, error) {
	var res authz.CascadeResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		roles, err := queryStrings(ctx, tx, `
			UPDATE role_permissions SET revoked_at = $2, revoked_by = $3
			WHERE permission_id = $1 AND revoked_at IS NULL
			RETURNING role_id
		`, permissionID, at, revokedBy)
		if err != nil {
			return fmt.Errorf("revoke role permissions: %w", err)
		}
		res.RolePermissions = len(roles)
		res.AffectedRoleIDs = distinct(roles)

		// Second hop: users currently holding any affected role lose
		// the permission from their effective set.
		if len(res.AffectedRoleIDs) > 0 {
			users, err := queryStrings(ctx, tx, `
				SELECT DISTINCT user_id FROM user_roles
				WHERE role_id = ANY($1)
				  AND revoked_at IS NULL
				  AND (expires_at IS NULL OR expires_at > $2)
			`, res.AffectedRoleIDs, at)
			if err != nil {
				return fmt.Errorf("derive affected users: %w", err)
			}
			res.AffectedUserIDs = users
		}
		return nil
	})
	if err != nil {
		return authz.CascadeResult{}, err
	}
	return res, nil
}

func (s *RevocationStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func execCount(ctx context.Context, tx pgx.Tx, query string, args ...any) (int, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func queryStrings(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func distinct(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
