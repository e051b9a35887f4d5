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

package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgrid/authgrid/internal/audit"
)

type auditEntryResponse struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"userId"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
}

func toAuditResponses(entries []*audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:           e.ID,
			Timestamp:    e.Timestamp,
			UserID:       e.UserID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Decision:     e.Decision,
			Reason:       e.Reason,
		})
	}
	return out
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// AuditForUser pages one user's trail, newest first.
func (h *Handler) AuditForUser(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	entries, err := h.auditSvc.EntriesForUser(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAuditResponses(entries))
}

// AuditInRange pages the trail inside ?from=&to= (RFC3339).
func (h *Handler) AuditInRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "query parameter 'from' must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "query parameter 'to' must be RFC3339")
		return
	}

	limit, offset := pageParams(r)
	entries, err := h.auditSvc.EntriesInRange(r.Context(), from, to, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAuditResponses(entries))
}
