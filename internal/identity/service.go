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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authgrid/authgrid/internal/event"
	"github.com/authgrid/authgrid/internal/id"
	"github.com/authgrid/authgrid/internal/observability/logger"
)

// Service implements the user lifecycle: lookup, synchronization from
// the identity provider, soft delete with cascading revocation, and
// restore.
type Service struct {
	repo        UserRepository
	revoker     Revoker
	defaultRole DefaultRoleAssigner
	// defaultRoleID is granted on first sync when non-empty and the
	// role exists.
	defaultRoleID string
	events        event.Publisher
	now           func() time.Time
}

func NewService(repo UserRepository, revoker Revoker, defaultRole DefaultRoleAssigner, defaultRoleID string, events event.Publisher) *Service {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Service{
		repo:          repo,
		revoker:       revoker,
		defaultRole:   defaultRole,
		defaultRoleID: defaultRoleID,
		events:        events,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ResolveSubject maps a verified identity-provider subject to the
// local user id. Deleted users do not resolve.
func (s *Service) ResolveSubject(ctx context.Context, subject string) (string, error) {
	u, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return "", err
	}
	if u.Deleted {
		return "", ErrUserNotFound
	}
	return u.ID, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetActive(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.repo.ListActive(ctx)
}

// SyncUser upserts the local record for an identity-provider subject.
// New subjects get a fresh user with the default role; returning
// subjects get their profile refreshed, and a previously soft-deleted
// row is reactivated.
func (s *Service) SyncUser(ctx context.Context, subject, email, displayName string) (*User, error) {
	if subject == "" {
		return nil, fmt.Errorf("identity subject is required")
	}

	now := s.now()
	u, err := s.repo.GetBySubject(ctx, subject)
	switch {
	case err == nil:
		restored := u.Deleted
		u.Email = email
		u.DisplayName = displayName
		u.Deleted = false
		u.DeletedAt = nil
		u.DeletedBy = ""
		u.UpdatedAt = now
		if err := s.repo.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("update user on sync: %w", err)
		}
		if restored {
			s.events.Publish(event.UserRestored(u.ID))
		}
		return u, nil

	case errors.Is(err, ErrUserNotFound):
		u = &User{
			ID:          id.NewUserID(),
			Subject:     subject,
			Email:       email,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user on sync: %w", err)
		}
		s.assignDefaultRole(ctx, u.ID)
		slog.InfoContext(ctx, "user synchronized", logger.UserID(u.ID))
		return u, nil

	default:
		return nil, fmt.Errorf("look up user by subject: %w", err)
	}
}

// DeleteUser soft-deletes the user. The revocation cascade runs
// first; if it fails the user stays active and the error propagates.
func (s *Service) DeleteUser(ctx context.Context, userID, deletedBy string) error {
	u, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.revoker.RevokeAllForUser(ctx, userID, deletedBy); err != nil {
		return fmt.Errorf("revoke grants before delete: %w", err)
	}

	now := s.now()
	u.Deleted = true
	u.DeletedAt = &now
	u.DeletedBy = deletedBy
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		return fmt.Errorf("mark user deleted: %w", err)
	}

	s.events.Publish(event.UserDeleted(userID, deletedBy))
	slog.InfoContext(ctx, "user deleted",
		logger.UserID(userID),
		slog.String("deleted_by", deletedBy),
	)
	return nil
}

// RestoreUser clears the deleted flag. Grants revoked by the delete
// cascade are not reinstated; the user comes back with no
// permissions.
func (s *Service) RestoreUser(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetAny(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrUserNotDeleted, userID)
	}

	u.Deleted = false
	u.DeletedAt = nil
	u.DeletedBy = ""
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("restore user: %w", err)
	}

	s.events.Publish(event.UserRestored(userID))
	slog.InfoContext(ctx, "user restored", logger.UserID(userID))
	return u, nil
}

// assignDefaultRole is best effort: a missing default role means the
// catalog has not been seeded yet, which is not a sync failure.
func (s *Service) assignDefaultRole(ctx context.Context, userID string) {
	if s.defaultRole == nil || s.defaultRoleID == "" {
		return
	}
	if err := s.defaultRole.AssignSystemRole(ctx, userID, s.defaultRoleID); err != nil {
		slog.WarnContext(ctx, "default role not assigned",
			logger.UserID(userID),
			logger.RoleID(s.defaultRoleID),
			logger.Error(err),
		)
	}
}
