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

package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/authgrid/authgrid/internal/observability/logger"
)

// EffectivePermissions is a user's authorization state at the moment
// of the query, from all three sources.
type EffectivePermissions struct {
	// RolePermissionIDs are permission ids derived from active role
	// assignments, deduplicated.
	RolePermissionIDs []string
	// ResourcePermissions are the active direct grants, as objects,
	// since callers need the resource coordinates.
	ResourcePermissions []*ResourcePermission
	// Delegations are the active delegations received.
	Delegations []*Delegation
}

// AllPermissionIDs flattens role-derived ids and resource-permission
// strings into one sorted, deduplicated set. Delegations contribute
// no ids; they are evaluated per resource.
func (p *EffectivePermissions) AllPermissionIDs() []string {
	set := make(map[string]bool, len(p.RolePermissionIDs))
	for _, id := range p.RolePermissionIDs {
		set[id] = true
	}
	for _, rp := range p.ResourcePermissions {
		set[rp.Permission] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether the flattened set contains permissionID.
func (p *EffectivePermissions) Has(permissionID string) bool {
	for _, id := range p.RolePermissionIDs {
		if id == permissionID {
			return true
		}
	}
	for _, rp := range p.ResourcePermissions {
		if rp.Permission == permissionID {
			return true
		}
	}
	return false
}

// HistoricalPermissions is the reconstructed state at a past instant.
// Delegations are deliberately excluded from the historical view.
type HistoricalPermissions struct {
	At                  time.Time
	Roles               []*UserRole
	RolePermissionIDs   []string
	ResourcePermissions []*ResourcePermission
}

// Resolver computes effective and historical permissions. It only
// reads; all writes go through the Governor and its siblings.
type Resolver struct {
	userRoles     UserRoleRepository
	rolePerms     RolePermissionRepository
	resourcePerms ResourcePermissionRepository
	delegations   DelegationRepository
	cache         PermissionCache
	now           func() time.Time
}

func NewResolver(
	userRoles UserRoleRepository,
	rolePerms RolePermissionRepository,
	resourcePerms ResourcePermissionRepository,
	delegations DelegationRepository,
	cache PermissionCache,
) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	return &Resolver{
		userRoles:     userRoles,
		rolePerms:     rolePerms,
		resourcePerms: resourcePerms,
		delegations:   delegations,
		cache:         cache,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GetEffectivePermissions assembles the user's current authorization
// state. Unknown users get an empty result, not an error: absence of
// rows is a valid state.
func (r *Resolver) GetEffectivePermissions(ctx context.Context, userID string) (*EffectivePermissions, error) {
	now := r.now()

	roleIDs, err := r.userRoles.ActivePermissionIDs(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve role permissions: %w", err)
	}
	resource, err := r.resourcePerms.FindActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve resource permissions: %w", err)
	}
	delegations, err := r.delegations.FindActiveByDelegatee(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve delegations: %w", err)
	}

	return &EffectivePermissions{
		RolePermissionIDs:   roleIDs,
		ResourcePermissions: resource,
		Delegations:         delegations,
	}, nil
}

// EffectivePermissionIDs returns the flattened permission-id set with
// the cache in front. Cache trouble is logged and ignored; the
// answer always comes from storage on a miss.
func (r *Resolver) EffectivePermissionIDs(ctx context.Context, userID string) ([]string, error) {
	if ids, ok := r.cache.Get(ctx, userID); ok {
		return ids, nil
	}

	perms, err := r.GetEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := perms.AllPermissionIDs()
	r.cache.Put(ctx, userID, ids)
	return ids, nil
}

// HasPermission reports whether the user's flattened set contains
// permissionID.
func (r *Resolver) HasPermission(ctx context.Context, userID, permissionID string) (bool, error) {
	ids, err := r.EffectivePermissionIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == permissionID {
			return true, nil
		}
	}
	return false, nil
}

// GetPermissionsAtPointInTime reconstructs the state at instant t from
// the temporal rows: a row counted if grantedAt <= t and it was not
// yet revoked or expired at t.
//
// Role-permission grants are reconstructed from rows that are still
// unrevoked today, window-filtered by t. A grant revoked after t is
// therefore not recovered; this is a recorded limitation of the
// historical view, kept for predictability.
func (r *Resolver) GetPermissionsAtPointInTime(ctx context.Context, userID string, t time.Time) (*HistoricalPermissions, error) {
	roles, err := r.userRoles.FindAtInstant(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("reconstruct roles at %s: %w", t.Format(time.RFC3339), err)
	}
	resource, err := r.resourcePerms.FindAtInstant(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("reconstruct resource permissions at %s: %w", t.Format(time.RFC3339), err)
	}

	permSet := make(map[string]bool)
	for _, ur := range roles {
		grants, err := r.rolePerms.FindActiveByRole(ctx, ur.RoleID)
		if err != nil {
			return nil, fmt.Errorf("reconstruct permissions of role %s: %w", ur.RoleID, err)
		}
		for _, g := range grants {
			if g.GrantedAt.After(t) {
				continue
			}
			if g.RevokedAt != nil && !g.RevokedAt.After(t) {
				continue
			}
			permSet[g.PermissionID] = true
		}
	}
	permIDs := make([]string, 0, len(permSet))
	for id := range permSet {
		permIDs = append(permIDs, id)
	}
	sort.Strings(permIDs)

	return &HistoricalPermissions{
		At:                  t,
		Roles:               roles,
		RolePermissionIDs:   permIDs,
		ResourcePermissions: resource,
	}, nil
}

// InvalidateUser drops the user's cached permission set. Called after
// every write that changes what the user can do.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) {
	r.cache.Invalidate(ctx, userID)
	slog.DebugContext(ctx, "permission cache invalidated", logger.UserID(userID))
}
