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

	"github.com/authgrid/authgrid/internal/identity"
)

const userColumns = `id, subject, email, display_name, deleted, deleted_at, deleted_by, created_at, updated_at`

// UserRepository implements identity.UserRepository. It also serves
// as the authz.UserDirectory.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, subject, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Subject, u.Email, u.DisplayName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *identity.User) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			email = $2,
			display_name = $3,
			deleted = $4,
			deleted_at = $5,
			deleted_by = $6,
			updated_at = $7
		WHERE id = $1
	`, u.ID, u.Email, u.DisplayName, u.Deleted, u.DeletedAt, u.DeletedBy, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) GetActive(ctx context.Context, id string) (*identity.User, error) {
	return r.getWhere(ctx, `id = $1 AND NOT deleted`, id)
}

func (r *UserRepository) GetAny(ctx context.Context, id string) (*identity.User, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (*identity.User, error) {
	return r.getWhere(ctx, `subject = $1`, subject)
}

func (r *UserRepository) getWhere(ctx context.Context, where string, arg any) (*identity.User, error) {
	var u identity.User
	err := r.db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	).Scan(
		&u.ID, &u.Subject, &u.Email, &u.DisplayName,
		&u.Deleted, &u.DeletedAt, &u.DeletedBy, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]*identity.User, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE NOT deleted ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		var u identity.User
		if err := rows.Scan(
			&u.ID, &u.Subject, &u.Email, &u.DisplayName,
			&u.Deleted, &u.DeletedAt, &u.DeletedBy, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// ActiveExists implements authz.UserDirectory.
func (r *UserRepository) ActiveExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND NOT deleted)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
