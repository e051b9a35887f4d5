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

// Package identity holds the local user records this service keeps
// about externally authenticated principals. Authentication itself
// happens at the identity provider; only the provider subject, profile
// basics and lifecycle state live here.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserNotDeleted = errors.New("user is not deleted")
)

// User is the local shadow of an externally managed principal.
type User struct {
	ID string
	// Subject is the identity provider's stable subject identifier.
	Subject     string
	Email       string
	DisplayName string
	Deleted     bool
	DeletedAt   *time.Time
	DeletedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRepository stores users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	// GetActive returns the user only if not soft-deleted.
	GetActive(ctx context.Context, id string) (*User, error)
	// GetAny returns the user including soft-deleted ones.
	GetAny(ctx context.Context, id string) (*User, error)
	// GetBySubject looks up by provider subject, including deleted
	// rows so synchronization can restore them.
	GetBySubject(ctx context.Context, subject string) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)
}

// Revoker is the slice of the authorization layer the lifecycle
// needs: cascade revocation when a user is deleted.
type Revoker interface {
	RevokeAllForUser(ctx context.Context, userID, revokedBy string) error
}

// RevokerFunc adapts a function to the Revoker interface.
type RevokerFunc func(ctx context.Context, userID, revokedBy string) error

func (f RevokerFunc) RevokeAllForUser(ctx context.Context, userID, revokedBy string) error {
	return f(ctx, userID, revokedBy)
}

// DefaultRoleAssigner grants the configured default role to a freshly
// synchronized user.
type DefaultRoleAssigner interface {
	AssignSystemRole(ctx context.Context, userID, roleID string) error
}
