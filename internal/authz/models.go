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

// Package authz implements the temporal authorization model: roles,
// permissions, user-role assignments, resource-level grants and
// delegations, together with the services that govern them.
//
// Assignment tables are append-only. A grant is one row; revoking it
// sets revoked_at/revoked_by on that row and a later re-grant inserts
// a new row. Nothing is ever deleted, which is what makes
// point-in-time reconstruction possible.
package authz

import "time"

// Role is a named bundle of permissions. Roles are soft-deletable,
// not temporal: deletion marks the row and cascades revocation of the
// assignments that reference it.
type Role struct {
	ID           string
	Name         string
	Description  string
	ParentRoleID *string
	Deleted      bool
	DeletedAt    *time.Time
	DeletedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Permission is a grantable capability, identified by a
// "resource:action" string such as "transactions:read".
type Permission struct {
	ID           string
	Name         string
	ResourceType string
	Action       string
	Deleted      bool
	DeletedAt    *time.Time
	DeletedBy    string
	CreatedAt    time.Time
}

// UserRole is one temporal assignment of a role to a user.
type UserRole struct {
	ID             int64
	UserID         string
	RoleID         string
	OrganizationID *string
	GrantedAt      time.Time
	GrantedBy      string
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
	RevokedBy      string
}

// ActiveAt reports whether the assignment confers the role at instant
// now: not revoked and not past its expiry.
func (ur *UserRole) ActiveAt(now time.Time) bool {
	if ur.RevokedAt != nil {
		return false
	}
	if ur.ExpiresAt != nil && !ur.ExpiresAt.After(now) {
		return false
	}
	return true
}

// HeldAt reports whether the assignment was in force at instant t,
// regardless of what happened to it afterwards.
func (ur *UserRole) HeldAt(t time.Time) bool {
	if ur.GrantedAt.After(t) {
		return false
	}
	if ur.RevokedAt != nil && !ur.RevokedAt.After(t) {
		return false
	}
	if ur.ExpiresAt != nil && !ur.ExpiresAt.After(t) {
		return false
	}
	return true
}

// Revoke closes the assignment. It is the only mutation a row ever
// receives after insert.
func (ur *UserRole) Revoke(by string, at time.Time) {
	ur.RevokedAt = &at
	ur.RevokedBy = by
}

// RolePermission is one temporal grant of a permission to a role.
type RolePermission struct {
	ID           int64
	RoleID       string
	PermissionID string
	GrantedAt    time.Time
	GrantedBy    string
	RevokedAt    *time.Time
	RevokedBy    string
}

func (rp *RolePermission) Active() bool {
	return rp.RevokedAt == nil
}

func (rp *RolePermission) Revoke(by string, at time.Time) {
	rp.RevokedAt = &at
	rp.RevokedBy = by
}

// ResourcePermission grants a user a permission on one specific
// resource instance, outside any role.
type ResourcePermission struct {
	ID           int64
	UserID       string
	ResourceType string
	ResourceID   string
	Permission   string
	Reason       string
	GrantedAt    time.Time
	GrantedBy    string
	ExpiresAt    *time.Time
	RevokedAt    *time.Time
	RevokedBy    string
}

func (rp *ResourcePermission) ActiveAt(now time.Time) bool {
	if rp.RevokedAt != nil {
		return false
	}
	if rp.ExpiresAt != nil && !rp.ExpiresAt.After(now) {
		return false
	}
	return true
}

// HeldAt reports whether the grant was in force at instant t.
func (rp *ResourcePermission) HeldAt(t time.Time) bool {
	if rp.GrantedAt.After(t) {
		return false
	}
	if rp.RevokedAt != nil && !rp.RevokedAt.After(t) {
		return false
	}
	if rp.ExpiresAt != nil && !rp.ExpiresAt.After(t) {
		return false
	}
	return true
}

func (rp *ResourcePermission) Revoke(by string, at time.Time) {
	rp.RevokedAt = &at
	rp.RevokedBy = by
}

// DelegationScope bounds what a delegatee may do on the delegator's
// behalf.
type DelegationScope string

const (
	// ScopeFull delegates everything the delegator can do.
	ScopeFull DelegationScope = "full"
	// ScopeReadOnly delegates read and list operations only.
	ScopeReadOnly DelegationScope = "read_only"
	// ScopeTransactionsOnly delegates access to transaction resources,
	// whatever the operation.
	ScopeTransactionsOnly DelegationScope = "transactions_only"
)

// Valid reports whether s is a known scope. Evaluation denies unknown
// scopes regardless, this only guards creation input.
func (s DelegationScope) Valid() bool {
	switch s {
	case ScopeFull, ScopeReadOnly, ScopeTransactionsOnly:
		return true
	}
	return false
}

// Delegation lets one user act with (a subset of) another user's
// permissions for a bounded time.
type Delegation struct {
	ID           int64
	DelegatorID  string
	DelegateeID  string
	Scope        DelegationScope
	ResourceType *string
	// ResourceIDs restricts the delegation to specific resource
	// instances. Nil or empty means no restriction.
	ResourceIDs []string
	ValidFrom   time.Time
	ValidUntil  *time.Time
	RevokedAt   *time.Time
	RevokedBy   string
	CreatedAt   time.Time
}

// ActiveAt reports whether the delegation is in force at instant now.
func (d *Delegation) ActiveAt(now time.Time) bool {
	if d.RevokedAt != nil {
		return false
	}
	if d.ValidFrom.After(now) {
		return false
	}
	if d.ValidUntil != nil && !d.ValidUntil.After(now) {
		return false
	}
	return true
}

func (d *Delegation) Revoke(by string, at time.Time) {
	d.RevokedAt = &at
	d.RevokedBy = by
}

// coversResource reports whether the delegation's resource
// restrictions admit the given resource.
func (d *Delegation) coversResource(resourceType, resourceID string) bool {
	if d.ResourceType != nil && *d.ResourceType != resourceType {
		return false
	}
	if len(d.ResourceIDs) == 0 {
		return true
	}
	for _, id := range d.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}
