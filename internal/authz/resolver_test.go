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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	resolver      *Resolver
	userRoles     *memUserRoleRepo
	rolePerms     *memRolePermRepo
	resourcePerms *memResourcePermRepo
	delegations   *memDelegationRepo
	cache         *recordingCache
	now           time.Time
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	userRoles := newMemUserRoleRepo()
	rolePerms := newMemRolePermRepo()
	userRoles.rolePerms = rolePerms
	resourcePerms := newMemResourcePermRepo()
	delegations := newMemDelegationRepo()
	cache := newRecordingCache()

	resolver := NewResolver(userRoles, rolePerms, resourcePerms, delegations, cache)
	resolver.now = func() time.Time { return now }

	return &resolverFixture{
		resolver:      resolver,
		userRoles:     userRoles,
		rolePerms:     rolePerms,
		resourcePerms: resourcePerms,
		delegations:   delegations,
		cache:         cache,
		now:           now,
	}
}

// TestPurpose: Validates that effective permissions union role-derived ids with resource-level grants, deduplicated and sorted.
// Scope: Unit Test
// Security: Correctness of the effective permission set
// Expected: AllPermissionIDs contains each id once; delegations contribute objects, not ids.
// Test Case ID: RSV-01
func TestResolver_GetEffectivePermissions_Union(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "ACCOUNTANT", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "ACCOUNTANT", PermissionID: "transactions:read", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "ACCOUNTANT", PermissionID: "reports:read", GrantedAt: granted, GrantedBy: "admin"}))
	// Direct grant overlapping a role-derived permission.
	require.NoError(t, f.resourcePerms.Insert(ctx, &ResourcePermission{
		UserID: "alice", ResourceType: "transaction", ResourceID: "tx-9", Permission: "transactions:read", GrantedAt: granted, GrantedBy: "admin",
	}))
	require.NoError(t, f.delegations.Insert(ctx, &Delegation{
		DelegatorID: "bob", DelegateeID: "alice", Scope: ScopeFull, ValidFrom: granted, CreatedAt: granted,
	}))

	perms, err := f.resolver.GetEffectivePermissions(ctx, "alice")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"transactions:read", "reports:read"}, perms.RolePermissionIDs)
	require.Len(t, perms.ResourcePermissions, 1)
	require.Len(t, perms.Delegations, 1)

	assert.Equal(t, []string{"reports:read", "transactions:read"}, perms.AllPermissionIDs())
	assert.True(t, perms.Has("transactions:read"))
	assert.False(t, perms.Has("transactions:delete"))
}

// TestPurpose: Validates that unknown users resolve to an empty state rather than an error.
// Scope: Unit Test
// Security: Fail-closed resolution for unknown principals
// Expected: Empty permission sets, nil error.
// Test Case ID: RSV-02
func TestResolver_GetEffectivePermissions_UnknownUser(t *testing.T) {
	f := newResolverFixture(t)

	perms, err := f.resolver.GetEffectivePermissions(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, perms.RolePermissionIDs)
	assert.Empty(t, perms.ResourcePermissions)
	assert.Empty(t, perms.Delegations)
	assert.Empty(t, perms.AllPermissionIDs())
}

// TestPurpose: Validates the cache read-through on the flattened id set.
// Scope: Unit Test
// Security: Cache consistency of authorization answers
// Expected: First call populates the cache from storage; second call is served from the cache without recomputation.
// Test Case ID: RSV-03
func TestResolver_EffectivePermissionIDs_CacheReadThrough(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "USER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "USER", PermissionID: "profile:read", GrantedAt: granted, GrantedBy: "admin"}))

	ids, err := f.resolver.EffectivePermissionIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile:read"}, ids)
	assert.Equal(t, 1, f.cache.puts)

	ids, err = f.resolver.EffectivePermissionIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile:read"}, ids)
	assert.Equal(t, 1, f.cache.puts)
	assert.Equal(t, 1, f.cache.hits)

	ok, err := f.resolver.HasPermission(ctx, "alice", "profile:read")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.resolver.HasPermission(ctx, "alice", "profile:write")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPurpose: Validates point-in-time reconstruction across a grant/revoke/re-grant history.
// Scope: Unit Test
// Security: Temporal audit accuracy
// Expected: Instants before the grant, during the grant, after revocation and after re-grant each reconstruct the correct role set.
// Test Case ID: RSV-04
func TestResolver_GetPermissionsAtPointInTime(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	t0 := f.now.Add(-4 * time.Hour) // before anything
	t1 := f.now.Add(-3 * time.Hour) // grant
	t2 := f.now.Add(-2 * time.Hour) // revoke
	t3 := f.now.Add(-1 * time.Hour) // re-grant

	first := &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: t1, GrantedBy: "admin"}
	require.NoError(t, f.userRoles.Insert(ctx, first))
	first.Revoke("admin", t2)
	require.NoError(t, f.userRoles.Save(ctx, first))
	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: t3, GrantedBy: "admin"}))

	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "MANAGER", PermissionID: "reports:approve", GrantedAt: t1, GrantedBy: "admin"}))

	hist, err := f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t0)
	require.NoError(t, err)
	assert.Empty(t, hist.Roles)
	assert.Empty(t, hist.RolePermissionIDs)

	hist, err = f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t1.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, hist.Roles, 1)
	assert.Equal(t, []string{"reports:approve"}, hist.RolePermissionIDs)

	// Between revocation and re-grant: nothing.
	hist, err = f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t2.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, hist.Roles)

	hist, err = f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t3.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, hist.Roles, 1)
	assert.Equal(t, t3, hist.Roles[0].GrantedAt)
}

// TestPurpose: Validates that historical reconstruction window-filters role-permission grants by the queried instant.
// Scope: Unit Test
// Security: Temporal audit accuracy
// Expected: A role-permission grant made after the queried instant does not appear in the reconstruction.
// Test Case ID: RSV-05
func TestResolver_GetPermissionsAtPointInTime_PermissionWindow(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	t1 := f.now.Add(-3 * time.Hour)
	t2 := f.now.Add(-1 * time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "AUDITOR", GrantedAt: t1, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "AUDITOR", PermissionID: "audit:read", GrantedAt: t1, GrantedBy: "admin"}))
	// Granted only later; invisible at t1+.
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "AUDITOR", PermissionID: "audit:export", GrantedAt: t2, GrantedBy: "admin"}))

	hist, err := f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t1.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"audit:read"}, hist.RolePermissionIDs)

	hist, err = f.resolver.GetPermissionsAtPointInTime(ctx, "alice", t2.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"audit:export", "audit:read"}, hist.RolePermissionIDs)
}

// TestPurpose: Validates that expired resource permissions are excluded from the current view but visible historically while they were in force.
// Scope: Unit Test
// Security: Temporal grant expiry
// Expected: The expired grant is absent now and present at an instant inside its validity window.
// Test Case ID: RSV-06
func TestResolver_ResourcePermissionExpiry(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	granted := f.now.Add(-2 * time.Hour)
	expired := f.now.Add(-time.Hour)
	require.NoError(t, f.resourcePerms.Insert(ctx, &ResourcePermission{
		UserID: "alice", ResourceType: "report", ResourceID: "r-1", Permission: "reports:read",
		GrantedAt: granted, GrantedBy: "admin", ExpiresAt: &expired,
	}))

	perms, err := f.resolver.GetEffectivePermissions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, perms.ResourcePermissions)

	hist, err := f.resolver.GetPermissionsAtPointInTime(ctx, "alice", granted.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, hist.ResourcePermissions, 1)
}
