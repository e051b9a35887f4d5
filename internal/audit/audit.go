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

// Package audit records the immutable authorization audit trail:
// every permission decision and every change to a user's grants.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Decisions recorded per entry.
const (
	DecisionGranted = "GRANTED"
	DecisionDenied  = "DENIED"
)

// Entry is one immutable audit row. Entries are only ever inserted.
type Entry struct {
	ID           int64
	Timestamp    time.Time
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Decision     string
	Reason       string
	IPAddress    string
	UserAgent    string
}

// Recorder accepts audit entries. Recording is advisory: failures are
// logged by implementations and never propagate to the operation
// being audited.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Store persists and queries audit entries.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Entry, error)
	ListByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Entry, error)
}

// SlogRecorder writes entries to the structured log only. Used when
// no database-backed trail is configured, and as the fallback target
// inside StoreRecorder.
type SlogRecorder struct{}

func NewSlogRecorder() *SlogRecorder { return &SlogRecorder{} }

func (l *SlogRecorder) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		slog.String("user_id", e.UserID),
		slog.String("action", e.Action),
		slog.String("decision", e.Decision),
		slog.Time("timestamp", e.Timestamp),
		slog.String("component", "audit"),
	}
	if e.ResourceType != "" {
		attrs = append(attrs, slog.String("resource_type", e.ResourceType))
	}
	if e.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", e.ResourceID))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}
	slog.InfoContext(ctx, "AUDIT_EVENT", attrs...)
}

// StoreRecorder persists entries and mirrors insert failures to the
// log so the trail degrades to log-only rather than blocking anyone.
type StoreRecorder struct {
	store    Store
	fallback SlogRecorder
}

func NewStoreRecorder(store Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := r.store.Insert(ctx, &e); err != nil {
		slog.ErrorContext(ctx, "audit insert failed",
			slog.String("action", e.Action),
			slog.String("user_id", e.UserID),
			slog.String("error", err.Error()),
		)
		r.fallback.Record(ctx, e)
	}
}
