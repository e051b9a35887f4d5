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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgrid/authgrid/internal/authz"
	"github.com/authgrid/authgrid/internal/identity"
)

type userResponse struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUserResponse(u *identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Subject:     u.Subject,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// requireCaller returns the authenticated caller's user id, writing a
// 401 when there is none. Mutating endpoints need an actor to record
// in the grant history.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := CallerID(r.Context())
	if caller == "" {
		respondError(w, http.StatusUnauthorized, "authenticated caller required")
		return "", false
	}
	return caller, true
}

// SyncUser upserts the caller's local record from the verified token
// subject plus the posted profile.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject     string `json:"subject"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The token subject wins over the posted one when present.
	subject := CallerSubject(r.Context())
	if subject == "" {
		subject = req.Subject
	}
	if subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	u, err := h.users.SyncUser(r.Context(), subject, req.Email, req.DisplayName)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), chi.URLParam(r, "userID"), caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.RestoreUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// EffectivePermissions returns the user's current authorization state
// from all three sources plus the flattened id set.
func (h *Handler) EffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	perms, err := h.resolver.GetEffectivePermissions(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"userId":              userID,
		"rolePermissions":     orEmpty(perms.RolePermissionIDs),
		"resourcePermissions": toResourcePermissionResponses(perms.ResourcePermissions),
		"delegations":         toDelegationResponses(perms.Delegations),
		"allPermissionIds":    orEmpty(perms.AllPermissionIDs()),
	})
}

// PermissionsAtPointInTime reconstructs the state at ?at=RFC3339.
func (h *Handler) PermissionsAtPointInTime(w http.ResponseWriter, r *http.Request) {
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "query parameter 'at' must be RFC3339")
		return
	}
	userID := chi.URLParam(r, "userID")
	hist, err := h.resolver.GetPermissionsAtPointInTime(r.Context(), userID, at)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	roles := make([]userRoleResponse, 0, len(hist.Roles))
	for _, ur := range hist.Roles {
		roles = append(roles, toUserRoleResponse(ur))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"userId":              userID,
		"at":                  hist.At,
		"roles":               roles,
		"rolePermissionIds":   orEmpty(hist.RolePermissionIDs),
		"resourcePermissions": toResourcePermissionResponses(hist.ResourcePermissions),
	})
}

type userRoleResponse struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"userId"`
	RoleID    string     `json:"roleId"`
	GrantedAt time.Time  `json:"grantedAt"`
	GrantedBy string     `json:"grantedBy"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func toUserRoleResponse(ur *authz.UserRole) userRoleResponse {
	return userRoleResponse{
		ID:        ur.ID,
		UserID:    ur.UserID,
		RoleID:    ur.RoleID,
		GrantedAt: ur.GrantedAt,
		GrantedBy: ur.GrantedBy,
		ExpiresAt: ur.ExpiresAt,
	}
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
