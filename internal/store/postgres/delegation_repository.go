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

const delegationColumns = `id, delegator_id, delegatee_id, scope, resource_type, resource_ids, valid_from, valid_until, revoked_at, revoked_by, created_at`

// DelegationRepository implements authz.DelegationRepository.
type DelegationRepository struct {
	db *DB
}

func NewDelegationRepository(db *DB) *DelegationRepository {
	return &DelegationRepository{db: db}
}

func (r *DelegationRepository) Insert(ctx context.Context, d *authz.Delegation) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO delegations
			(delegator_id, delegatee_id, scope, resource_type, resource_ids, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, d.DelegatorID, d.DelegateeID, string(d.Scope), d.ResourceType, d.ResourceIDs,
		d.ValidFrom, d.ValidUntil, d.CreatedAt).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to insert delegation: %w", err)
	}
	return nil
}

func (r *DelegationRepository) Save(ctx context.Context, d *authz.Delegation) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE delegations SET revoked_at = $2, revoked_by = $3 WHERE id = $1
	`, d.ID, d.RevokedAt, d.RevokedBy)
	if err != nil {
		return fmt.Errorf("failed to save delegation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &authz.NotFoundError{Kind: "delegation", ID: fmt.Sprintf("%d", d.ID)}
	}
	return nil
}

func (r *DelegationRepository) GetByID(ctx context.Context, id int64) (*authz.Delegation, error) {
	var d authz.Delegation
	var scope string
	err := r.db.pool.QueryRow(ctx,
		`SELECT `+delegationColumns+` FROM delegations WHERE id = $1`, id,
	).Scan(
		&d.ID, &d.DelegatorID, &d.DelegateeID, &scope, &d.ResourceType, &d.ResourceIDs,
		&d.ValidFrom, &d.ValidUntil, &d.RevokedAt, &d.RevokedBy, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &authz.NotFoundError{Kind: "delegation", ID: fmt.Sprintf("%d", id)}
		}
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}
	d.Scope = authz.DelegationScope(scope)
	return &d, nil
}

func (r *DelegationRepository) FindActiveByDelegatee(ctx context.Context, delegateeID string, now time.Time) ([]*authz.Delegation, error) {
	return r.queryMany(ctx, `
		SELECT `+delegationColumns+` FROM delegations
		WHERE delegatee_id = $1
		  AND revoked_at IS NULL
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY valid_from
	`, delegateeID, now)
}

func (r *DelegationRepository) FindActiveByDelegator(ctx context.Context, delegatorID string, now time.Time) ([]*authz.Delegation, error) {
	return r.queryMany(ctx, `
		SELECT `+delegationColumns+` FROM delegations
		WHERE delegator_id = $1
		  AND revoked_at IS NULL
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY valid_from
	`, delegatorID, now)
}

func (r *DelegationRepository) queryMany(ctx context.Context, query string, args ...any) ([]*authz.Delegation, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delegations: %w", err)
	}
	defer rows.Close()

	var ds []*authz.Delegation
	for rows.Next() {
		var d authz.Delegation
		var scope string
		if err := rows.Scan(
			&d.ID, &d.DelegatorID, &d.DelegateeID, &scope, &d.ResourceType, &d.ResourceIDs,
			&d.ValidFrom, &d.ValidUntil, &d.RevokedAt, &d.RevokedBy, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		d.Scope = authz.DelegationScope(scope)
		ds = append(ds, &d)
	}
	return ds, rows.Err()
}
