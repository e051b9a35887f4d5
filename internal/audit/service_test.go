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

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgrid/authgrid/internal/event"
)

// memStore is an in-memory audit store.
type memStore struct {
	entries  []*Entry
	failWith error
}

func (m *memStore) Insert(_ context.Context, e *Entry) error {
	if m.failWith != nil {
		return m.failWith
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]*Entry, error) {
	var out []*Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			out = append(out, m.entries[i])
		}
	}
	return page(out, limit, offset), nil
}

func (m *memStore) ListByTimeRange(_ context.Context, from, to time.Time, limit, offset int) ([]*Entry, error) {
	var out []*Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		ts := m.entries[i].Timestamp
		if !ts.Before(from) && ts.Before(to) {
			out = append(out, m.entries[i])
		}
	}
	return page(out, limit, offset), nil
}

func page(entries []*Entry, limit, offset int) []*Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// TestPurpose: Validates that change-bus events become GRANTED audit entries with a deterministic reason string.
// Scope: Unit Test
// Security: Completeness of the audit trail
// Expected: The entry carries the change's actor, action, resource coordinates and a sorted key=value reason.
// Test Case ID: AUD-01
func TestAudit_OnChange(t *testing.T) {
	store := &memStore{}
	svc := NewService(NewStoreRecorder(store), store)

	change := event.RoleAssigned("alice", "MANAGER", "admin")
	svc.OnChange(context.Background(), change)

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "alice", e.UserID)
	assert.Equal(t, event.ActionRoleAssigned, e.Action)
	assert.Equal(t, DecisionGranted, e.Decision)
	assert.Equal(t, change.OccurredAt, e.Timestamp)
	assert.Equal(t, "grantedBy=admin roleId=MANAGER", e.Reason)
}

// TestPurpose: Validates direct decision recording for access checks, including denials.
// Scope: Unit Test
// Security: Deny-decision traceability
// Expected: The entry records DENIED with reason, client IP and user agent.
// Test Case ID: AUD-02
func TestAudit_RecordDecision(t *testing.T) {
	store := &memStore{}
	svc := NewService(NewStoreRecorder(store), store)

	svc.RecordDecision(context.Background(), "bob", "delegation:check", "transaction", "tx-1",
		false, "no active delegation admits the operation", "203.0.113.7", "curl/8.5")

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, DecisionDenied, e.Decision)
	assert.Equal(t, "delegation:check", e.Action)
	assert.Equal(t, "203.0.113.7", e.IPAddress)
	assert.Equal(t, "curl/8.5", e.UserAgent)
	assert.False(t, e.Timestamp.IsZero())
}

// TestPurpose: Validates that a failing audit store degrades to log-only recording without surfacing an error to the audited operation.
// Scope: Unit Test
// Security: Audit availability under storage failure
// Expected: Record does not panic or propagate the insert error.
// Test Case ID: AUD-03
func TestAudit_StoreRecorder_Fallback(t *testing.T) {
	store := &memStore{failWith: errors.New("connection refused")}
	recorder := NewStoreRecorder(store)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), Entry{UserID: "alice", Action: "ROLE_ASSIGNED", Decision: DecisionGranted})
	})
	assert.Empty(t, store.entries)
}

// TestPurpose: Validates trail paging and the time-range query contract.
// Scope: Unit Test
// Security: Audit retrievability
// Expected: Limits are clamped to the page-size bounds, empty ranges are refused, and range queries honor [from, to).
// Test Case ID: AUD-04
func TestAudit_Queries(t *testing.T) {
	store := &memStore{}
	svc := NewService(NewStoreRecorder(store), store)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, &Entry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			UserID:    "alice",
			Action:    "ROLE_ASSIGNED",
			Decision:  DecisionGranted,
		}))
	}

	entries, err := svc.EntriesForUser(ctx, "alice", 2, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, base.Add(4*time.Minute), entries[0].Timestamp)

	// Zero limit falls back to the default page size.
	entries, err = svc.EntriesForUser(ctx, "alice", 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	_, err = svc.EntriesInRange(ctx, base, base, 10, 0)
	assert.Error(t, err)

	entries, err = svc.EntriesInRange(ctx, base, base.Add(2*time.Minute), 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
