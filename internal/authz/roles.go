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
	"fmt"
	"strings"
	"time"

	"github.com/authgrid/authgrid/internal/event"
	"github.com/authgrid/authgrid/internal/id"
)

// RoleService manages the role catalog and the permission grants
// attached to roles.
type RoleService struct {
	roles     RoleRepository
	perms     PermissionRepository
	rolePerms RolePermissionRepository
	userRoles UserRoleRepository
	cascader  *Cascader
	cache     PermissionCache
	gov       GovernanceConfig
	events    event.Publisher
	now       func() time.Time
}

func NewRoleService(
	roles RoleRepository,
	perms PermissionRepository,
	rolePerms RolePermissionRepository,
	userRoles UserRoleRepository,
	cascader *Cascader,
	cache PermissionCache,
	gov GovernanceConfig,
	events event.Publisher,
) *RoleService {
	if cache == nil {
		cache = NopCache{}
	}
	if events == nil {
		events = event.NopPublisher{}
	}
	return &RoleService{
		roles:     roles,
		perms:     perms,
		rolePerms: rolePerms,
		userRoles: userRoles,
		cascader:  cascader,
		cache:     cache,
		gov:       gov,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateRole adds a role to the catalog. Well-known roles keep their
// symbolic id (e.g. "MANAGER"); ad-hoc roles get a generated one.
func (s *RoleService) CreateRole(ctx context.Context, roleID, name, description string, parentRoleID *string) (*Role, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if roleID == "" {
		roleID = id.NewRoleID()
	}
	if s.gov.isProtected(roleID) {
		return nil, &ProtectedRoleError{RoleID: roleID}
	}

	now := s.now()
	role := &Role{
		ID:           roleID,
		Name:         name,
		Description:  description,
		ParentRoleID: parentRoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

func (s *RoleService) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.roles.GetActive(ctx, roleID)
}

func (s *RoleService) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.ListActive(ctx)
}

// UpdateRole changes name/description/parent of an existing role.
func (s *RoleService) UpdateRole(ctx context.Context, roleID, name, description string, parentRoleID *string) (*Role, error) {
	role, err := s.roles.GetActive(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		role.Name = name
	}
	role.Description = description
	role.ParentRoleID = parentRoleID
	role.UpdatedAt = s.now()
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return role, nil
}

// DeleteRole soft-deletes the role. The cascade runs first; if it
// fails the role stays untouched.
func (s *RoleService) DeleteRole(ctx context.Context, roleID, deletedBy string) error {
	if s.gov.isProtected(roleID) {
		return &ProtectedRoleError{RoleID: roleID}
	}
	role, err := s.roles.GetActive(ctx, roleID)
	if err != nil {
		return err
	}

	if _, err := s.cascader.RevokeAllForRole(ctx, roleID, deletedBy); err != nil {
		return err
	}

	now := s.now()
	role.Deleted = true
	role.DeletedAt = &now
	role.DeletedBy = deletedBy
	role.UpdatedAt = now
	if err := s.roles.Update(ctx, role); err != nil {
		return fmt.Errorf("mark role deleted: %w", err)
	}
	return nil
}

// RestoreRole clears the deleted flag. Assignments revoked by the
// delete cascade stay revoked.
func (s *RoleService) RestoreRole(ctx context.Context, roleID string) (*Role, error) {
	role, err := s.roles.GetAny(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.Deleted {
		return nil, fmt.Errorf("%w: role %s is not deleted", ErrInvalidInput, roleID)
	}
	role.Deleted = false
	role.DeletedAt = nil
	role.DeletedBy = ""
	role.UpdatedAt = s.now()
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("restore role: %w", err)
	}
	return role, nil
}

// GrantPermission attaches a permission to a role as a new temporal
// row. At most one active row may exist per (role, permission).
func (s *RoleService) GrantPermission(ctx context.Context, roleID, permissionID, grantedBy string) error {
	if _, err := s.roles.GetActive(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.perms.GetActive(ctx, permissionID); err != nil {
		return err
	}

	existing, err := s.rolePerms.FindActiveByRoleAndPermission(ctx, roleID, permissionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing grant: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: role %s already carries permission %s", ErrDuplicateAssignment, roleID, permissionID)
	}

	rp := &RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		GrantedAt:    s.now(),
		GrantedBy:    grantedBy,
	}
	if err := s.rolePerms.Insert(ctx, rp); err != nil {
		return fmt.Errorf("insert role permission: %w", err)
	}

	s.invalidateRoleHolders(ctx, roleID)
	return nil
}

// RevokePermission closes the active grant of permissionID on roleID.
func (s *RoleService) RevokePermission(ctx context.Context, roleID, permissionID, revokedBy string) error {
	rp, err := s.rolePerms.FindActiveByRoleAndPermission(ctx, roleID, permissionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "role permission grant", ID: roleID + "/" + permissionID}
		}
		return fmt.Errorf("find grant: %w", err)
	}
	rp.Revoke(revokedBy, s.now())
	if err := s.rolePerms.Save(ctx, rp); err != nil {
		return fmt.Errorf("save revocation: %w", err)
	}

	s.invalidateRoleHolders(ctx, roleID)
	return nil
}

// RolePermissions lists the role's active permission grants.
func (s *RoleService) RolePermissions(ctx context.Context, roleID string) ([]*RolePermission, error) {
	if _, err := s.roles.GetActive(ctx, roleID); err != nil {
		return nil, err
	}
	return s.rolePerms.FindActiveByRole(ctx, roleID)
}

// invalidateRoleHolders drops the cached sets of every user currently
// holding the role. Best effort, same as all cache traffic.
func (s *RoleService) invalidateRoleHolders(ctx context.Context, roleID string) {
	holders, err := s.userRoles.FindActiveByRole(ctx, roleID, s.now())
	if err != nil {
		return
	}
	seen := make(map[string]bool, len(holders))
	for _, ur := range holders {
		if !seen[ur.UserID] {
			seen[ur.UserID] = true
			s.cache.Invalidate(ctx, ur.UserID)
		}
	}
}

// PermissionCatalog manages the permission catalog.
type PermissionCatalog struct {
	perms    PermissionRepository
	cascader *Cascader
	now      func() time.Time
}

func NewPermissionCatalog(perms PermissionRepository, cascader *Cascader) *PermissionCatalog {
	return &PermissionCatalog{
		perms:    perms,
		cascader: cascader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePermission registers a permission. The id follows the
// "resource:action" convention and doubles as the grantable string.
func (c *PermissionCatalog) CreatePermission(ctx context.Context, permID, name string) (*Permission, error) {
	resourceType, action, ok := strings.Cut(permID, ":")
	if !ok || resourceType == "" || action == "" {
		return nil, fmt.Errorf("%w: permission id must be resource:action, got %q", ErrInvalidInput, permID)
	}
	perm := &Permission{
		ID:           permID,
		Name:         name,
		ResourceType: resourceType,
		Action:       action,
		CreatedAt:    c.now(),
	}
	if err := c.perms.Create(ctx, perm); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return perm, nil
}

func (c *PermissionCatalog) GetPermission(ctx context.Context, permID string) (*Permission, error) {
	return c.perms.GetActive(ctx, permID)
}

func (c *PermissionCatalog) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return c.perms.ListActive(ctx)
}

// DeletePermission soft-deletes the permission after revoking every
// role grant that carries it.
func (c *PermissionCatalog) DeletePermission(ctx context.Context, permID, deletedBy string) error {
	perm, err := c.perms.GetActive(ctx, permID)
	if err != nil {
		return err
	}

	if _, err := c.cascader.RevokeAllForPermission(ctx, permID, deletedBy); err != nil {
		return err
	}

	now := c.now()
	perm.Deleted = true
	perm.DeletedAt = &now
	perm.DeletedBy = deletedBy
	if err := c.perms.Update(ctx, perm); err != nil {
		return fmt.Errorf("mark permission deleted: %w", err)
	}
	return nil
}

// RestorePermission clears the deleted flag; revoked grants stay
// revoked.
func (c *PermissionCatalog) RestorePermission(ctx context.Context, permID string) (*Permission, error) {
	perm, err := c.perms.GetAny(ctx, permID)
	if err != nil {
		return nil, err
	}
	if !perm.Deleted {
		return nil, fmt.Errorf("%w: permission %s is not deleted", ErrInvalidInput, permID)
	}
	perm.Deleted = false
	perm.DeletedAt = nil
	perm.DeletedBy = ""
	if err := c.perms.Update(ctx, perm); err != nil {
		return nil, fmt.Errorf("restore permission: %w", err)
	}
	return perm, nil
}
