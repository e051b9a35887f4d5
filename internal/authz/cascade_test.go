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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgrid/authgrid/internal/event"
)

// memRevocationStore runs cascades over the in-memory repos, mirroring
// the bulk UPDATE semantics of the postgres store.
type memRevocationStore struct {
	userRoles     *memUserRoleRepo
	rolePerms     *memRolePermRepo
	resourcePerms *memResourcePermRepo
	delegations   *memDelegationRepo
	failWith      error
}

func (s *memRevocationStore) RevokeAllForUser(_ context.Context, userID, revokedBy string, at time.Time) (CascadeResult, error) {
	if s.failWith != nil {
		return CascadeResult{}, s.failWith
	}
	var res CascadeResult
	for _, ur := range s.userRoles.rows {
		if ur.UserID == userID && ur.RevokedAt == nil {
			ur.Revoke(revokedBy, at)
			res.UserRoles++
		}
	}
	for _, rp := range s.resourcePerms.rows {
		if rp.UserID == userID && rp.RevokedAt == nil {
			rp.Revoke(revokedBy, at)
			res.ResourcePermissions++
		}
	}
	for _, d := range s.delegations.rows {
		if (d.DelegatorID == userID || d.DelegateeID == userID) && d.RevokedAt == nil {
			d.Revoke(revokedBy, at)
			res.Delegations++
		}
	}
	res.AffectedUserIDs = []string{userID}
	return res, nil
}

func (s *memRevocationStore) RevokeAllForRole(_ context.Context, roleID, revokedBy string, at time.Time) (CascadeResult, error) {
	if s.failWith != nil {
		return CascadeResult{}, s.failWith
	}
	var res CascadeResult
	affected := make(map[string]bool)
	for _, ur := range s.userRoles.rows {
		if ur.RoleID == roleID && ur.RevokedAt == nil {
			ur.Revoke(revokedBy, at)
			res.UserRoles++
			affected[ur.UserID] = true
		}
	}
	for _, rp := range s.rolePerms.rows {
		if rp.RoleID == roleID && rp.RevokedAt == nil {
			rp.Revoke(revokedBy, at)
			res.RolePermissions++
		}
	}
	for id := range affected {
		res.AffectedUserIDs = append(res.AffectedUserIDs, id)
	}
	return res, nil
}

func (s *memRevocationStore) RevokeAllForPermission(_ context.Context, permissionID, revokedBy string, at time.Time) (CascadeResult, error) {
	if s.failWith != nil {
		return CascadeResult{}, s.failWith
	}
	var res CascadeResult
	roles := make(map[string]bool)
	for _, rp := range s.rolePerms.rows {
		if rp.PermissionID == permissionID && rp.RevokedAt == nil {
			rp.Revoke(revokedBy, at)
			res.RolePermissions++
			roles[rp.RoleID] = true
		}
	}
	affected := make(map[string]bool)
	for _, ur := range s.userRoles.rows {
		if roles[ur.RoleID] && ur.ActiveAt(at) {
			affected[ur.UserID] = true
		}
	}
	for id := range roles {
		res.AffectedRoleIDs = append(res.AffectedRoleIDs, id)
	}
	for id := range affected {
		res.AffectedUserIDs = append(res.AffectedUserIDs, id)
	}
	return res, nil
}

type cascadeFixture struct {
	cascader      *Cascader
	store         *memRevocationStore
	userRoles     *memUserRoleRepo
	rolePerms     *memRolePermRepo
	resourcePerms *memResourcePermRepo
	delegations   *memDelegationRepo
	cache         *recordingCache
	events        *recordingPublisher
	now           time.Time
}

func newCascadeFixture(t *testing.T) *cascadeFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	userRoles := newMemUserRoleRepo()
	rolePerms := newMemRolePermRepo()
	resourcePerms := newMemResourcePermRepo()
	delegations := newMemDelegationRepo()
	store := &memRevocationStore{
		userRoles:     userRoles,
		rolePerms:     rolePerms,
		resourcePerms: resourcePerms,
		delegations:   delegations,
	}
	cache := newRecordingCache()
	events := &recordingPublisher{}

	cascader := NewCascader(store, cache, events)
	cascader.now = func() time.Time { return now }

	return &cascadeFixture{
		cascader:      cascader,
		store:         store,
		userRoles:     userRoles,
		rolePerms:     rolePerms,
		resourcePerms: resourcePerms,
		delegations:   delegations,
		cache:         cache,
		events:        events,
		now:           now,
	}
}

// TestPurpose: Validates that deleting a user revokes every active grant touching them: role assignments, resource permissions, and delegations on either side.
// Scope: Unit Test
// Security: Complete access removal on user deletion
// Expected: All active rows are revoked with the acting user recorded; historical (already revoked) rows stay untouched; the user's cache entry is invalidated.
// Test Case ID: CSC-01
func TestCascader_RevokeAllForUser(t *testing.T) {
	f := newCascadeFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.resourcePerms.Insert(ctx, &ResourcePermission{UserID: "alice", ResourceType: "report", ResourceID: "r-1", Permission: "reports:read", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.delegations.Insert(ctx, &Delegation{DelegatorID: "alice", DelegateeID: "bob", Scope: ScopeFull, ValidFrom: granted, CreatedAt: granted}))
	require.NoError(t, f.delegations.Insert(ctx, &Delegation{DelegatorID: "carol", DelegateeID: "alice", Scope: ScopeReadOnly, ValidFrom: granted, CreatedAt: granted}))

	// An already-revoked row must not be counted or rewritten.
	old := &UserRole{UserID: "alice", RoleID: "USER", GrantedAt: granted.Add(-time.Hour), GrantedBy: "admin"}
	require.NoError(t, f.userRoles.Insert(ctx, old))
	old.Revoke("admin", granted)
	require.NoError(t, f.userRoles.Save(ctx, old))

	res, err := f.cascader.RevokeAllForUser(ctx, "alice", "admin")
	require.NoError(t, err)

	assert.Equal(t, 1, res.UserRoles)
	assert.Equal(t, 1, res.ResourcePermissions)
	assert.Equal(t, 2, res.Delegations)
	assert.Equal(t, 4, res.Total())
	assert.Equal(t, []string{"alice"}, res.AffectedUserIDs)

	// Prior revocation metadata preserved.
	assert.Equal(t, granted, *old.RevokedAt)

	assert.Equal(t, []string{"alice"}, f.cache.invalidated)
	changes := f.events.published()
	require.Len(t, changes, 1)
	assert.Equal(t, event.ActionCascadingRevocation, changes[0].Action)
}

// TestPurpose: Validates that deleting a role revokes its assignments and permission grants and reports every holder who lost access.
// Scope: Unit Test
// Security: Cascade completeness on role deletion
// Expected: Assignments and role-permission grants close; AffectedUserIDs lists the distinct holders, each invalidated in the cache.
// Test Case ID: CSC-02
func TestCascader_RevokeAllForRole(t *testing.T) {
	f := newCascadeFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "bob", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "MANAGER", PermissionID: "reports:approve", GrantedAt: granted, GrantedBy: "admin"}))

	res, err := f.cascader.RevokeAllForRole(ctx, "MANAGER", "admin")
	require.NoError(t, err)

	assert.Equal(t, 2, res.UserRoles)
	assert.Equal(t, 1, res.RolePermissions)
	assert.ElementsMatch(t, []string{"alice", "bob"}, res.AffectedUserIDs)
	assert.ElementsMatch(t, []string{"alice", "bob"}, f.cache.invalidated)
}

// TestPurpose: Validates the two-hop permission cascade: permission to carrying roles to their holders.
// Scope: Unit Test
// Security: Cascade completeness on permission deletion
// Expected: Every role grant of the permission closes; affected users are derived through the carrying roles.
// Test Case ID: CSC-03
func TestCascader_RevokeAllForPermission(t *testing.T) {
	f := newCascadeFixture(t)
	ctx := context.Background()
	granted := f.now.Add(-time.Hour)

	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "MANAGER", PermissionID: "reports:approve", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.rolePerms.Insert(ctx, &RolePermission{RoleID: "AUDITOR", PermissionID: "reports:approve", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "alice", RoleID: "MANAGER", GrantedAt: granted, GrantedBy: "admin"}))
	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "bob", RoleID: "AUDITOR", GrantedAt: granted, GrantedBy: "admin"}))
	// carol holds an unrelated role and must not be touched.
	require.NoError(t, f.userRoles.Insert(ctx, &UserRole{UserID: "carol", RoleID: "USER", GrantedAt: granted, GrantedBy: "admin"}))

	res, err := f.cascader.RevokeAllForPermission(ctx, "reports:approve", "admin")
	require.NoError(t, err)

	assert.Equal(t, 2, res.RolePermissions)
	assert.ElementsMatch(t, []string{"MANAGER", "AUDITOR"}, res.AffectedRoleIDs)
	assert.ElementsMatch(t, []string{"alice", "bob"}, res.AffectedUserIDs)
	assert.NotContains(t, f.cache.invalidated, "carol")
}

// TestPurpose: Validates that a failed cascade surfaces the error and produces no invalidations or events.
// Scope: Unit Test
// Security: Atomicity contract of cascades
// Expected: The store error propagates; nothing was invalidated or published.
// Test Case ID: CSC-04
func TestCascader_StoreFailure(t *testing.T) {
	f := newCascadeFixture(t)
	f.store.failWith = errors.New("deadlock detected")

	_, err := f.cascader.RevokeAllForUser(context.Background(), "alice", "admin")
	require.Error(t, err)
	assert.Empty(t, f.cache.invalidated)
	assert.Empty(t, f.events.published())
}
