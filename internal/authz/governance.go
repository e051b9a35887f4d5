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

// Governance permissions. Holding one of these is what lets a user
// hand out or take away roles.
const (
	PermAssignBasicRoles    = "user-roles:assign-basic"
	PermAssignElevatedRoles = "user-roles:assign-elevated"
	PermRevokeRoles         = "user-roles:revoke"
)

// GovernanceConfig tiers the role catalog for assignment control.
// Injected into the Governor so deployments can tune the tiers without
// code changes.
type GovernanceConfig struct {
	// BasicRoles may be assigned by holders of either assign
	// permission.
	BasicRoles []string
	// ElevatedRoles require the elevated assign permission, as does
	// any role outside both tiers.
	ElevatedRoles []string
	// ProtectedRole can never be assigned, revoked or deleted through
	// the service.
	ProtectedRole string
	// DefaultRole is granted to newly synchronized users when it
	// exists in the catalog.
	DefaultRole string
}

// DefaultGovernance returns the stock tier layout.
func DefaultGovernance() GovernanceConfig {
	return GovernanceConfig{
		BasicRoles:    []string{"USER", "ACCOUNTANT", "AUDITOR"},
		ElevatedRoles: []string{"MANAGER", "ORG_ADMIN"},
		ProtectedRole: "SYSTEM_ADMIN",
		DefaultRole:   "USER",
	}
}

func (c GovernanceConfig) isBasic(roleID string) bool {
	return contains(c.BasicRoles, roleID)
}

func (c GovernanceConfig) isProtected(roleID string) bool {
	return roleID == c.ProtectedRole
}

// requiredAssignPermission returns the permission needed to assign
// roleID. Roles outside both tiers are treated as elevated.
func (c GovernanceConfig) requiredAssignPermission(roleID string) string {
	if c.isBasic(roleID) {
		return PermAssignBasicRoles
	}
	return PermAssignElevatedRoles
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
