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
	"strings"
	"time"

	"github.com/authgrid/authgrid/internal/event"
)

// DelegationService manages delegations and evaluates delegated
// access.
type DelegationService struct {
	users  UserDirectory
	repo   DelegationRepository
	events event.Publisher
	now    func() time.Time
}

func NewDelegationService(users UserDirectory, repo DelegationRepository, events event.Publisher) *DelegationService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &DelegationService{
		users:  users,
		repo:   repo,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateDelegation opens a delegation from delegator to delegatee,
// valid from now. resourceType and resourceIDs narrow it; validUntil
// bounds it in time.
func (s *DelegationService) CreateDelegation(
	ctx context.Context,
	delegatorID, delegateeID string,
	scope DelegationScope,
	resourceType *string,
	resourceIDs []string,
	validUntil *time.Time,
) (*Delegation, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: unknown delegation scope %q", ErrInvalidInput, scope)
	}
	if delegatorID == delegateeID {
		return nil, fmt.Errorf("%w: cannot delegate to oneself", ErrInvalidInput)
	}
	exists, err := s.users.ActiveExists(ctx, delegateeID)
	if err != nil {
		return nil, fmt.Errorf("look up delegatee: %w", err)
	}
	if !exists {
		return nil, &NotFoundError{Kind: "user", ID: delegateeID}
	}

	now := s.now()
	if validUntil != nil && !validUntil.After(now) {
		return nil, fmt.Errorf("%w: validUntil is in the past", ErrInvalidInput)
	}

	d := &Delegation{
		DelegatorID:  delegatorID,
		DelegateeID:  delegateeID,
		Scope:        scope,
		ResourceType: resourceType,
		ResourceIDs:  resourceIDs,
		ValidFrom:    now,
		ValidUntil:   validUntil,
		CreatedAt:    now,
	}
	if err := s.repo.Insert(ctx, d); err != nil {
		return nil, fmt.Errorf("insert delegation: %w", err)
	}

	s.events.Publish(event.DelegationCreated(delegateeID, delegatorID, string(scope)))
	return d, nil
}

// RevokeDelegation closes the delegation identified by its row id.
func (s *DelegationService) RevokeDelegation(ctx context.Context, delegationID int64, revokedBy string) error {
	d, err := s.repo.GetByID(ctx, delegationID)
	if err != nil {
		return err
	}
	if d.RevokedAt != nil {
		return &NotFoundError{Kind: "active delegation", ID: fmt.Sprintf("%d", delegationID)}
	}

	d.Revoke(revokedBy, s.now())
	if err := s.repo.Save(ctx, d); err != nil {
		return fmt.Errorf("save revocation: %w", err)
	}

	s.events.Publish(event.DelegationRevoked(d.DelegateeID, d.DelegatorID, revokedBy))
	return nil
}

// DelegationsForUser returns active delegations given by and received
// by the user.
func (s *DelegationService) DelegationsForUser(ctx context.Context, userID string) (given, received []*Delegation, err error) {
	now := s.now()
	given, err = s.repo.FindActiveByDelegator(ctx, userID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("list given delegations: %w", err)
	}
	received, err = s.repo.FindActiveByDelegatee(ctx, userID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("list received delegations: %w", err)
	}
	return given, received, nil
}

// HasDelegatedAccess reports whether any active delegation received
// by delegateeID admits the operation on the resource. Unknown scopes
// deny; the check never consults the delegator's own permissions
// beyond the scope encoding.
func (s *DelegationService) HasDelegatedAccess(ctx context.Context, delegateeID, resourceType, resourceID, permission string) (bool, error) {
	delegations, err := s.repo.FindActiveByDelegatee(ctx, delegateeID, s.now())
	if err != nil {
		return false, fmt.Errorf("load delegations: %w", err)
	}
	for _, d := range delegations {
		if !d.coversResource(resourceType, resourceID) {
			continue
		}
		if scopeAdmits(d.Scope, resourceType, permission) {
			return true, nil
		}
	}
	return false, nil
}

// scopeAdmits applies the scope rules. read_only keys on the
// operation verb; transactions_only keys on the resource type and
// ignores the verb entirely.
func scopeAdmits(scope DelegationScope, resourceType, permission string) bool {
	switch scope {
	case ScopeFull:
		return true
	case ScopeReadOnly:
		return strings.HasSuffix(permission, ":read") || strings.HasSuffix(permission, ":list")
	case ScopeTransactionsOnly:
		return resourceType == "transaction"
	}
	return false
}
