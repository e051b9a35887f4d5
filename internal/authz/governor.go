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
	"log/slog"
	"time"

	"github.com/authgrid/authgrid/internal/event"
	"github.com/authgrid/authgrid/internal/observability/logger"
)

// SystemActor is recorded as grantor for assignments made by the
// service itself rather than a user.
const SystemActor = "SYSTEM"

// Governor enforces the tiered governance rules around role
// assignment and revocation.
type Governor struct {
	users     UserDirectory
	roles     RoleRepository
	userRoles UserRoleRepository
	resolver  *Resolver
	gov       GovernanceConfig
	events    event.Publisher
	now       func() time.Time
}

func NewGovernor(
	users UserDirectory,
	roles RoleRepository,
	userRoles UserRoleRepository,
	resolver *Resolver,
	gov GovernanceConfig,
	events event.Publisher,
) *Governor {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Governor{
		users:     users,
		roles:     roles,
		userRoles: userRoles,
		resolver:  resolver,
		gov:       gov,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AssignRole grants roleID to userID on behalf of grantedBy.
//
// Preconditions run in a fixed order so callers see the cheapest
// possible refusal: protected-role lockout, grantor authority, user
// existence, role existence, duplicate check. The insert itself can
// still surface a duplicate under concurrency; the storage layer maps
// its unique-index violation to the same error.
func (g *Governor) AssignRole(ctx context.Context, userID, roleID, grantedBy string) error {
	if g.gov.isProtected(roleID) {
		return &ProtectedRoleError{RoleID: roleID}
	}

	required := g.gov.requiredAssignPermission(roleID)
	ok, err := g.grantorHolds(ctx, grantedBy, required)
	if err != nil {
		return fmt.Errorf("check grantor authority: %w", err)
	}
	if !ok {
		return &PermissionDeniedError{Actor: grantedBy, Required: required, RoleID: roleID}
	}

	exists, err := g.users.ActiveExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if !exists {
		return &NotFoundError{Kind: "user", ID: userID}
	}

	if _, err := g.roles.GetActive(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "role", ID: roleID}
		}
		return fmt.Errorf("look up role: %w", err)
	}

	now := g.now()
	existing, err := g.userRoles.FindActiveByUserAndRole(ctx, userID, roleID, now)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing assignment: %w", err)
	}
	if existing != nil {
		return &DuplicateAssignmentError{UserID: userID, RoleID: roleID}
	}

	ur := &UserRole{
		UserID:    userID,
		RoleID:    roleID,
		GrantedAt: now,
		GrantedBy: grantedBy,
	}
	if err := g.userRoles.Insert(ctx, ur); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	g.resolver.InvalidateUser(ctx, userID)
	g.events.Publish(event.RoleAssigned(userID, roleID, grantedBy))

	slog.InfoContext(ctx, "role assigned",
		logger.UserID(userID),
		logger.RoleID(roleID),
		slog.String("granted_by", grantedBy),
	)
	return nil
}

// RevokeRole revokes the active assignment of roleID from userID.
func (g *Governor) RevokeRole(ctx context.Context, userID, roleID, revokedBy string) error {
	if g.gov.isProtected(roleID) {
		return &ProtectedRoleError{RoleID: roleID}
	}

	ok, err := g.grantorHolds(ctx, revokedBy, PermRevokeRoles)
	if err != nil {
		return fmt.Errorf("check revoker authority: %w", err)
	}
	if !ok {
		return &PermissionDeniedError{Actor: revokedBy, Required: PermRevokeRoles, RoleID: roleID}
	}

	now := g.now()
	ur, err := g.userRoles.FindActiveByUserAndRole(ctx, userID, roleID, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "role assignment", ID: userID + "/" + roleID}
		}
		return fmt.Errorf("find assignment: %w", err)
	}

	ur.Revoke(revokedBy, now)
	if err := g.userRoles.Save(ctx, ur); err != nil {
		return fmt.Errorf("save revocation: %w", err)
	}

	g.resolver.InvalidateUser(ctx, userID)
	g.events.Publish(event.RoleRevoked(userID, roleID, revokedBy))

	slog.InfoContext(ctx, "role revoked",
		logger.UserID(userID),
		logger.RoleID(roleID),
		slog.String("revoked_by", revokedBy),
	)
	return nil
}

// AssignSystemRole grants roleID as the SYSTEM actor, bypassing the
// tier check. Used by user synchronization for the default role. The
// protected role stays off limits even here.
func (g *Governor) AssignSystemRole(ctx context.Context, userID, roleID string) error {
	if g.gov.isProtected(roleID) {
		return &ProtectedRoleError{RoleID: roleID}
	}
	if _, err := g.roles.GetActive(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "role", ID: roleID}
		}
		return fmt.Errorf("look up role: %w", err)
	}

	now := g.now()
	existing, err := g.userRoles.FindActiveByUserAndRole(ctx, userID, roleID, now)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check existing assignment: %w", err)
	}
	if existing != nil {
		return &DuplicateAssignmentError{UserID: userID, RoleID: roleID}
	}

	ur := &UserRole{
		UserID:    userID,
		RoleID:    roleID,
		GrantedAt: now,
		GrantedBy: SystemActor,
	}
	if err := g.userRoles.Insert(ctx, ur); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	g.resolver.InvalidateUser(ctx, userID)
	g.events.Publish(event.RoleAssigned(userID, roleID, SystemActor))
	return nil
}

// UserRoles lists the user's active assignments.
func (g *Governor) UserRoles(ctx context.Context, userID string) ([]*UserRole, error) {
	return g.userRoles.FindActiveByUser(ctx, userID, g.now())
}

// grantorHolds checks the actor's flattened permission set. The
// SYSTEM actor holds everything.
func (g *Governor) grantorHolds(ctx context.Context, actor, permissionID string) (bool, error) {
	if actor == SystemActor {
		return true, nil
	}
	ids, err := g.resolver.EffectivePermissionIDs(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == permissionID {
			return true, nil
		}
		// assign-elevated subsumes assign-basic
		if permissionID == PermAssignBasicRoles && id == PermAssignElevatedRoles {
			return true, nil
		}
	}
	return false, nil
}
