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
	"time"

	"github.com/authgrid/authgrid/internal/event"
	"github.com/authgrid/authgrid/internal/observability/logger"
)

// Cascader coordinates bulk revocation when a user, role or
// permission is soft-deleted. The store runs each cascade in one
// transaction; on error nothing was revoked and the caller must not
// proceed with its soft delete.
type Cascader struct {
	store  RevocationStore
	cache  PermissionCache
	events event.Publisher
	now    func() time.Time
}

func NewCascader(store RevocationStore, cache PermissionCache, events event.Publisher) *Cascader {
	if cache == nil {
		cache = NopCache{}
	}
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Cascader{
		store:  store,
		cache:  cache,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RevokeAllForUser revokes every active grant touching the user:
// role assignments, resource permissions, and delegations on either
// side. Historical rows are untouched.
func (c *Cascader) RevokeAllForUser(ctx context.Context, userID, revokedBy string) (CascadeResult, error) {
	res, err := c.store.RevokeAllForUser(ctx, userID, revokedBy, c.now())
	if err != nil {
		return CascadeResult{}, fmt.Errorf("cascade for user %s: %w", userID, err)
	}
	c.finish(ctx, "user", userID, revokedBy, res)
	return res, nil
}

// RevokeAllForRole revokes all active assignments of the role and all
// its active permission grants, and reports which users lost access.
func (c *Cascader) RevokeAllForRole(ctx context.Context, roleID, revokedBy string) (CascadeResult, error) {
	res, err := c.store.RevokeAllForRole(ctx, roleID, revokedBy, c.now())
	if err != nil {
		return CascadeResult{}, fmt.Errorf("cascade for role %s: %w", roleID, err)
	}
	c.finish(ctx, "role", roleID, revokedBy, res)
	return res, nil
}

// RevokeAllForPermission revokes all active role-permission grants of
// the permission, then derives the affected users through the roles
// that carried it.
func (c *Cascader) RevokeAllForPermission(ctx context.Context, permissionID, revokedBy string) (CascadeResult, error) {
	res, err := c.store.RevokeAllForPermission(ctx, permissionID, revokedBy, c.now())
	if err != nil {
		return CascadeResult{}, fmt.Errorf("cascade for permission %s: %w", permissionID, err)
	}
	c.finish(ctx, "permission", permissionID, revokedBy, res)
	return res, nil
}

func (c *Cascader) finish(ctx context.Context, entityType, entityID, revokedBy string, res CascadeResult) {
	for _, userID := range res.AffectedUserIDs {
		c.cache.Invalidate(ctx, userID)
	}
	c.events.Publish(event.CascadingRevocation(entityType, entityID, revokedBy, res.Total()))

	slog.InfoContext(ctx, "cascading revocation completed",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.String("revoked_by", revokedBy),
		slog.Int("rows_revoked", res.Total()),
		slog.Int("users_affected", len(res.AffectedUserIDs)),
		logger.Component("cascader"),
	)
}
