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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleServiceFixture struct {
	svc       *RoleService
	catalog   *PermissionCatalog
	roles     *memRoleRepo
	perms     *memPermRepo
	rolePerms *memRolePermRepo
	userRoles *memUserRoleRepo
	cache     *recordingCache
	now       time.Time
}

func newRoleServiceFixture(t *testing.T) *roleServiceFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	roles := newMemRoleRepo(&Role{ID: "MANAGER", Name: "Manager"})
	perms := newMemPermRepo(&Permission{ID: "reports:approve", Name: "Approve reports", ResourceType: "reports", Action: "approve"})
	rolePerms := newMemRolePermRepo()
	userRoles := newMemUserRoleRepo()
	userRoles.rolePerms = rolePerms
	cache := newRecordingCache()
	events := &recordingPublisher{}

	store := &memRevocationStore{
		userRoles:     userRoles,
		rolePerms:     rolePerms,
		resourcePerms: newMemResourcePermRepo(),
		delegations:   newMemDelegationRepo(),
	}
	cascader := NewCascader(store, cache, events)
	cascader.now = func() time.Time { return now }

	svc := NewRoleService(roles, perms, rolePerms, userRoles, cascader, cache, DefaultGovernance(), events)
	svc.now = func() time.Time { return now }
	catalog := NewPermissionCatalog(perms, cascader)
	catalog.now = func() time.Time { return now }

	return &roleServiceFixture{
		svc:       svc,
		catalog:   catalog,
		roles:     roles,
		perms:     perms,
		rolePerms: rolePerms,
		userRoles: userRoles,
		cache:     cache,
		now:       now,
	}
}

// TestPurpose: Validates role creation, including generated ids for ad-hoc roles and the protected-id refusal.
// Scope: Unit Test
// Security: Role catalog integrity
// Expected: Empty id yields a generated role_ id; the protected role id is rejected; empty name is invalid input.
// Test Case ID: ROL-01
func TestRoleService_CreateRole(t *testing.T) {
	f := newRoleServiceFixture(t)
	ctx := context.Background()

	role, err := f.svc.CreateRole(ctx, "", "Billing Clerk", "handles invoices", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(role.ID, "role_"))
	assert.Equal(t, f.now, role.CreatedAt)

	_, err = f.svc.CreateRole(ctx, "SYSTEM_ADMIN", "Sneaky", "", nil)
	assert.ErrorIs(t, err, ErrProtectedRole)

	_, err = f.svc.CreateRole(ctx, "X", "", "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// TestPurpose: Validates role soft deletion with its revocation cascade, and restoration without grant reinstatement.
// Scope: Unit Test
// Security: Access removal on role deletion
// Expected: Deletion revokes the role's assignments and grants then marks the role; restore clears the mark but revoked rows stay revoked.
// Test Case ID: ROL-02
func TestRoleService_DeleteAndRestore(t *testing.T) {
	f := newRoleServiceFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "MANAGER", PermissionID: "reports:approve", GrantedAt: granted, GrantedBy: "admin"}))

	require.NoError(t, f.svc.DeleteRole(ctx, "MANAGER", "admin"))

	_, err := f.svc.GetRole(ctx, "MANAGER")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotNil(t, f.userRoles.rows[0].RevokedAt)
	assert.NotNil(t, f.rolePerms.rows[0].RevokedAt)

	role, err := f.svc.RestoreRole(ctx, "MANAGER")
	require.NoError(t, err)
	assert.False(t, role.Deleted)
	// The cascade is not undone.
	assert.NotNil(t, f.userRoles.rows[0].RevokedAt)

	_, err = f.svc.RestoreRole(ctx, "MANAGER")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = f.svc.DeleteRole(ctx, "SYSTEM_ADMIN", "admin")
	assert.ErrorIs(t, err, ErrProtectedRole)
}

// TestPurpose: Validates permission grants on roles: duplicate refusal, revocation, and cache invalidation of current holders.
// Scope: Unit Test
// Security: Role-permission grant integrity
// Expected: A second active grant of the same pair is refused; revocation closes the row; holders' cache entries are invalidated on both operations.
// Test Case ID: ROL-03
func TestRoleService_GrantAndRevokePermission(t *testing.T) {
	f := newRoleServiceFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))

	require.NoError(t, f.svc.GrantPermission(ctx, "MANAGER", "reports:approve", "admin"))
	assert.Contains(t, f.cache.invalidated, "alice")

	err := f.svc.GrantPermission(ctx, "MANAGER", "reports:approve", "admin")
	assert.ErrorIs(t, err, ErrDuplicateAssignment)

	err = f.svc.GrantPermission(ctx, "MANAGER", "no:such", "admin")
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.svc.GrantPermission(ctx, "NO_ROLE", "reports:approve", "admin")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.RevokePermission(ctx, "MANAGER", "reports:approve", "admin"))
	grants, err := f.svc.RolePermissions(ctx, "MANAGER")
	require.NoError(t, err)
	assert.Empty(t, grants)

	err = f.svc.RevokePermission(ctx, "MANAGER", "reports:approve", "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPurpose: Validates the permission catalog id convention and the deletion cascade through carrying roles.
// Scope: Unit Test
// Security: Permission catalog integrity
// Expected: Ids must be resource:action; deletion revokes role grants of the permission then marks it; restore clears the mark only.
// Test Case ID: ROL-04
func TestPermissionCatalog(t *testing.T) {
	f := newRoleServiceFixture(t)
	ctx := context.Background()

	p, err := f.catalog.CreatePermission(ctx, "invoices:write", "Write invoices")
	require.NoError(t, err)
	assert.Equal(t, "invoices", p.ResourceType)
	assert.Equal(t, "write", p.Action)

	_, err = f.catalog.CreatePermission(ctx, "not-a-permission", "Broken")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.catalog.CreatePermission(ctx, "trailing:", "Broken")
	assert.ErrorIs(t, err, ErrInvalidInput)

	granted := f.now.Add(-time.Hour)
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "MANAGER", PermissionID: "invoices:write", GrantedAt: granted, GrantedBy: "admin"}))

	require.NoError(t, f.catalog.DeletePermission(ctx, "invoices:write", "admin"))
	_, err = f.catalog.GetPermission(ctx, "invoices:write")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotNil(t, f.rolePerms.rows[0].RevokedAt)

	restored, err := f.catalog.RestorePermission(ctx, "invoices:write")
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.NotNil(t, f.rolePerms.rows[0].RevokedAt)
}
