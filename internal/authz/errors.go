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
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks at the transport boundary. The
// typed errors below unwrap to these.
var (
	ErrNotFound            = errors.New("not found")
	ErrProtectedRole       = errors.New("protected role cannot be managed through this API")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDuplicateAssignment = errors.New("assignment already active")
	ErrInvalidInput        = errors.New("invalid input")
)

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ProtectedRoleError rejects any attempt to assign, revoke or delete
// the protected role.
type ProtectedRoleError struct {
	RoleID string
}

func (e *ProtectedRoleError) Error() string {
	return fmt.Sprintf("role %q is protected and cannot be assigned, revoked or deleted", e.RoleID)
}

func (e *ProtectedRoleError) Unwrap() error { return ErrProtectedRole }

// PermissionDeniedError names the permission the actor lacked so the
// caller can render an actionable message.
type PermissionDeniedError struct {
	Actor    string
	Required string
	RoleID   string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q lacks %q required to manage role %q", e.Actor, e.Required, e.RoleID)
}

func (e *PermissionDeniedError) Unwrap() error { return ErrPermissionDenied }

// DuplicateAssignmentError reports an already-active user-role pair.
type DuplicateAssignmentError struct {
	UserID string
	RoleID string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("user %q already has an active assignment of role %q", e.UserID, e.RoleID)
}

func (e *DuplicateAssignmentError) Unwrap() error { return ErrDuplicateAssignment }
