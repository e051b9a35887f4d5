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
	"time"
)

// RoleRepository stores the role catalog.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	// GetActive returns the role only if it is not soft-deleted.
	GetActive(ctx context.Context, id string) (*Role, error)
	// GetAny returns the role including soft-deleted ones.
	GetAny(ctx context.Context, id string) (*Role, error)
	Update(ctx context.Context, role *Role) error
	ListActive(ctx context.Context) ([]*Role, error)
}

// PermissionRepository stores the permission catalog.
type PermissionRepository interface {
	Create(ctx context.Context, perm *Permission) error
	GetActive(ctx context.Context, id string) (*Permission, error)
	GetAny(ctx context.Context, id string) (*Permission, error)
	Update(ctx context.Context, perm *Permission) error
	ListActive(ctx context.Context) ([]*Permission, error)
}

// UserRoleRepository stores temporal role assignments. Insert must
// return a DuplicateAssignmentError when an active row for the same
// (user, role, organization) already exists; the postgres
// implementation relies on a partial unique index so the guarantee
// holds under concurrent assignment.
type UserRoleRepository interface {
	Insert(ctx context.Context, ur *UserRole) error
	// Save persists a revocation on an existing row.
	Save(ctx context.Context, ur *UserRole) error
	FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*UserRole, error)
	FindActiveByUserAndRole(ctx context.Context, userID, roleID string, now time.Time) (*UserRole, error)
	FindActiveByRole(ctx context.Context, roleID string, now time.Time) ([]*UserRole, error)
	// FindAtInstant returns assignments whose grant window covered t.
	FindAtInstant(ctx context.Context, userID string, t time.Time) ([]*UserRole, error)
	// ActivePermissionIDs resolves the user's role-derived permission
	// ids in one join over active assignments and active
	// role-permission grants.
	ActivePermissionIDs(ctx context.Context, userID string, now time.Time) ([]string, error)
}

// RolePermissionRepository stores temporal role-permission grants.
type RolePermissionRepository interface {
	Insert(ctx context.Context, rp *RolePermission) error
	Save(ctx context.Context, rp *RolePermission) error
	FindActiveByRole(ctx context.Context, roleID string) ([]*RolePermission, error)
	FindActiveByRoleAndPermission(ctx context.Context, roleID, permissionID string) (*RolePermission, error)
}

// ResourcePermissionRepository stores direct resource-level grants.
type ResourcePermissionRepository interface {
	Insert(ctx context.Context, rp *ResourcePermission) error
	Save(ctx context.Context, rp *ResourcePermission) error
	GetByID(ctx context.Context, id int64) (*ResourcePermission, error)
	FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*ResourcePermission, error)
	FindAtInstant(ctx context.Context, userID string, t time.Time) ([]*ResourcePermission, error)
}

// DelegationRepository stores delegations.
type DelegationRepository interface {
	Insert(ctx context.Context, d *Delegation) error
	Save(ctx context.Context, d *Delegation) error
	GetByID(ctx context.Context, id int64) (*Delegation, error)
	FindActiveByDelegatee(ctx context.Context, delegateeID string, now time.Time) ([]*Delegation, error)
	FindActiveByDelegator(ctx context.Context, delegatorID string, now time.Time) ([]*Delegation, error)
}

// UserDirectory is the slice of the identity store the authorization
// services need: existence checks for non-deleted users.
type UserDirectory interface {
	ActiveExists(ctx context.Context, userID string) (bool, error)
}

// CascadeResult reports what a bulk revocation touched.
type CascadeResult struct {
	UserRoles           int
	RolePermissions     int
	ResourcePermissions int
	Delegations         int
	// AffectedUserIDs are the distinct users whose effective
	// permissions changed. For a user cascade it is the user itself.
	AffectedUserIDs []string
	// AffectedRoleIDs is populated by permission cascades.
	AffectedRoleIDs []string
}

// Total returns the number of rows revoked.
func (r CascadeResult) Total() int {
	return r.UserRoles + r.RolePermissions + r.ResourcePermissions + r.Delegations
}

// RevocationStore executes cascading revocations. Each call runs in a
// single storage transaction: either every active row is revoked or
// none is.
type RevocationStore interface {
	RevokeAllForUser(ctx context.Context, userID, revokedBy string, at time.Time) (CascadeResult, error)
	RevokeAllForRole(ctx context.Context, roleID, revokedBy string, at time.Time) (CascadeResult, error)
	RevokeAllForPermission(ctx context.Context, permissionID, revokedBy string, at time.Time) (CascadeResult, error)
}

// PermissionCache fronts the resolver's flattened permission-id set.
// All methods are best-effort: implementations log failures and the
// resolver treats every miss identically.
type PermissionCache interface {
	Get(ctx context.Context, userID string) ([]string, bool)
	Put(ctx context.Context, userID string, permissionIDs []string)
	Invalidate(ctx context.Context, userID string)
}

// NopCache satisfies PermissionCache with no storage.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]string, bool) { return nil, false }
func (NopCache) Put(context.Context, string, []string)        {}
func (NopCache) Invalidate(context.Context, string)           {}
