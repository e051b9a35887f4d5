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

// Package event carries permission-change notifications between the
// authorization services and their subscribers (audit log, cache).
package event

import (
	"fmt"
	"time"
)

// Action tags describe what changed about a user's authorization state.
const (
	ActionRoleAssigned              = "ROLE_ASSIGNED"
	ActionRoleRevoked               = "ROLE_REVOKED"
	ActionCascadingRevocation       = "CASCADING_REVOCATION"
	ActionDelegationCreated         = "DELEGATION_CREATED"
	ActionDelegationRevoked         = "DELEGATION_REVOKED"
	ActionUserDeleted               = "USER_DELETED"
	ActionUserRestored              = "USER_RESTORED"
	ActionResourcePermissionGranted = "RESOURCE_PERMISSION_GRANTED"
	ActionResourcePermissionRevoked = "RESOURCE_PERMISSION_REVOKED"
)

// Change is a single authorization state change affecting one user.
// UserID is the subject whose permissions changed, except for cascades
// keyed on a role or permission, where it identifies the revoked entity.
type Change struct {
	UserID     string
	Action     string
	OccurredAt time.Time
	Context    map[string]string
}

func newChange(userID, action string, ctx map[string]string) Change {
	return Change{UserID: userID, Action: action, OccurredAt: time.Now().UTC(), Context: ctx}
}

// RoleAssigned reports a role grant to a user.
func RoleAssigned(userID, roleID, grantedBy string) Change {
	return newChange(userID, ActionRoleAssigned, map[string]string{
		"roleId":    roleID,
		"grantedBy": grantedBy,
	})
}

// RoleRevoked reports a single role revocation.
func RoleRevoked(userID, roleID, revokedBy string) Change {
	return newChange(userID, ActionRoleRevoked, map[string]string{
		"roleId":    roleID,
		"revokedBy": revokedBy,
	})
}

// CascadingRevocation reports a bulk revocation triggered by a soft
// delete. entityType is one of "user", "role" or "permission".
func CascadingRevocation(entityType, entityID, revokedBy string, revoked int) Change {
	return newChange(entityID, ActionCascadingRevocation, map[string]string{
		"entityType":   entityType,
		"entityId":     entityID,
		"revokedBy":    revokedBy,
		"revokedCount": fmt.Sprintf("%d", revoked),
	})
}

// DelegationCreated reports a new delegation received by delegateeID.
func DelegationCreated(delegateeID, delegatorID, scope string) Change {
	return newChange(delegateeID, ActionDelegationCreated, map[string]string{
		"delegatorId": delegatorID,
		"scope":       scope,
	})
}

// DelegationRevoked reports a delegation revocation, keyed on the
// delegatee who loses access.
func DelegationRevoked(delegateeID, delegatorID, revokedBy string) Change {
	return newChange(delegateeID, ActionDelegationRevoked, map[string]string{
		"delegatorId": delegatorID,
		"revokedBy":   revokedBy,
	})
}

// UserDeleted reports a user soft delete.
func UserDeleted(userID, deletedBy string) Change {
	return newChange(userID, ActionUserDeleted, map[string]string{
		"deletedBy": deletedBy,
	})
}

// UserRestored reports a user restore.
func UserRestored(userID string) Change {
	return newChange(userID, ActionUserRestored, nil)
}

// ResourcePermissionGranted reports a direct resource-level grant.
func ResourcePermissionGranted(userID, resourceType, resourceID, permission, grantedBy string) Change {
	return newChange(userID, ActionResourcePermissionGranted, map[string]string{
		"resourceType": resourceType,
		"resourceId":   resourceID,
		"permission":   permission,
		"grantedBy":    grantedBy,
	})
}

// ResourcePermissionRevoked reports revocation of a direct grant.
func ResourcePermissionRevoked(userID, resourceType, resourceID, permission, revokedBy string) Change {
	return newChange(userID, ActionResourcePermissionRevoked, map[string]string{
		"resourceType": resourceType,
		"resourceId":   resourceID,
		"permission":   permission,
		"revokedBy":    revokedBy,
	})
}
