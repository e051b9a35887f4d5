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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/authgrid/authgrid/internal/event"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service subscribes to the change bus and answers audit queries.
type Service struct {
	recorder Recorder
	store    Store
}

func NewService(recorder Recorder, store Store) *Service {
	return &Service{recorder: recorder, store: store}
}

// OnChange turns a permission change into an audit entry. Change
// events describe successful mutations, so the decision is always
// GRANTED; denials are recorded directly by the services that refuse.
func (s *Service) OnChange(ctx context.Context, change event.Change) {
	s.recorder.Record(ctx, Entry{
		Timestamp:    change.OccurredAt,
		UserID:       change.UserID,
		Action:       change.Action,
		ResourceType: change.Context["resourceType"],
		ResourceID:   change.Context["resourceId"],
		Decision:     DecisionGranted,
		Reason:       formatContext(change.Context),
	})
}

// RecordDecision writes an access-check outcome to the trail.
func (s *Service) RecordDecision(ctx context.Context, userID, action, resourceType, resourceID string, granted bool, reason, ip, userAgent string) {
	decision := DecisionDenied
	if granted {
		decision = DecisionGranted
	}
	s.recorder.Record(ctx, Entry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Decision:     decision,
		Reason:       reason,
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
}

// EntriesForUser pages the trail of one user, newest first.
func (s *Service) EntriesForUser(ctx context.Context, userID string, limit, offset int) ([]*Entry, error) {
	if s.store == nil {
		return nil, fmt.Errorf("audit store not configured")
	}
	return s.store.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
}

// EntriesInRange pages the trail inside [from, to), newest first.
func (s *Service) EntriesInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Entry, error) {
	if s.store == nil {
		return nil, fmt.Errorf("audit store not configured")
	}
	if !to.After(from) {
		return nil, fmt.Errorf("time range is empty")
	}
	return s.store.ListByTimeRange(ctx, from, to, clampLimit(limit), max(offset, 0))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// formatContext renders the change context deterministically for the
// reason column.
func formatContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+ctx[k])
	}
	return strings.Join(parts, " ")
}
