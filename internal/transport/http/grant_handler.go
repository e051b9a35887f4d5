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
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgrid/authgrid/internal/authz"
)

// Role assignments

func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	urs, err := h.governor.UserRoles(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]userRoleResponse, 0, len(urs))
	for _, ur := range urs {
		out = append(out, toUserRoleResponse(ur))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		RoleID string `json:"roleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "roleId is required")
		return
	}
	if err := h.governor.AssignRole(r.Context(), chi.URLParam(r, "userID"), req.RoleID, caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, nil)
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.governor.RevokeRole(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID"), caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Resource permissions

type resourcePermissionResponse struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"userId"`
	ResourceType string     `json:"resourceType"`
	ResourceID   string     `json:"resourceId"`
	Permission   string     `json:"permission"`
	Reason       string     `json:"reason,omitempty"`
	GrantedAt    time.Time  `json:"grantedAt"`
	GrantedBy    string     `json:"grantedBy"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func toResourcePermissionResponses(rps []*authz.ResourcePermission) []resourcePermissionResponse {
	out := make([]resourcePermissionResponse, 0, len(rps))
	for _, rp := range rps {
		out = append(out, resourcePermissionResponse{
			ID:           rp.ID,
			UserID:       rp.UserID,
			ResourceType: rp.ResourceType,
			ResourceID:   rp.ResourceID,
			Permission:   rp.Permission,
			Reason:       rp.Reason,
			GrantedAt:    rp.GrantedAt,
			GrantedBy:    rp.GrantedBy,
			ExpiresAt:    rp.ExpiresAt,
		})
	}
	return out
}

func (h *Handler) GrantResourcePermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID       string     `json:"userId"`
		ResourceType string     `json:"resourceType"`
		ResourceID   string     `json:"resourceId"`
		Permission   string     `json:"permission"`
		Reason       string     `json:"reason"`
		ExpiresAt    *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rp, err := h.resourcePerms.Grant(r.Context(), req.UserID, req.ResourceType, req.ResourceID,
		req.Permission, req.ExpiresAt, req.Reason, caller)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toResourcePermissionResponses([]*authz.ResourcePermission{rp})[0])
}

func (h *Handler) RevokeResourcePermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	grantID, err := strconv.ParseInt(chi.URLParam(r, "grantID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "grant id must be numeric")
		return
	}
	if err := h.resourcePerms.Revoke(r.Context(), grantID, caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) ListResourcePermissions(w http.ResponseWriter, r *http.Request) {
	rps, err := h.resourcePerms.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResourcePermissionResponses(rps))
}

// Delegations

type delegationResponse struct {
	ID           int64      `json:"id"`
	DelegatorID  string     `json:"delegatorId"`
	DelegateeID  string     `json:"delegateeId"`
	Scope        string     `json:"scope"`
	ResourceType *string    `json:"resourceType,omitempty"`
	ResourceIDs  []string   `json:"resourceIds,omitempty"`
	ValidFrom    time.Time  `json:"validFrom"`
	ValidUntil   *time.Time `json:"validUntil,omitempty"`
}

func toDelegationResponses(ds []*authz.Delegation) []delegationResponse {
	out := make([]delegationResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, delegationResponse{
			ID:           d.ID,
			DelegatorID:  d.DelegatorID,
			DelegateeID:  d.DelegateeID,
			Scope:        string(d.Scope),
			ResourceType: d.ResourceType,
			ResourceIDs:  d.ResourceIDs,
			ValidFrom:    d.ValidFrom,
			ValidUntil:   d.ValidUntil,
		})
	}
	return out
}

func (h *Handler) CreateDelegation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		DelegateeID  string     `json:"delegateeId"`
		Scope        string     `json:"scope"`
		ResourceType *string    `json:"resourceType"`
		ResourceIDs  []string   `json:"resourceIds"`
		ValidUntil   *time.Time `json:"validUntil"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The caller is always the delegator; nobody delegates someone
	// else's permissions.
	d, err := h.delegations.CreateDelegation(r.Context(), caller, req.DelegateeID,
		authz.DelegationScope(req.Scope), req.ResourceType, req.ResourceIDs, req.ValidUntil)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toDelegationResponses([]*authz.Delegation{d})[0])
}

func (h *Handler) RevokeDelegation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	delegationID, err := strconv.ParseInt(chi.URLParam(r, "delegationID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "delegation id must be numeric")
		return
	}
	if err := h.delegations.RevokeDelegation(r.Context(), delegationID, caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) ListDelegations(w http.ResponseWriter, r *http.Request) {
	given, received, err := h.delegations.DelegationsForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"given":    toDelegationResponses(given),
		"received": toDelegationResponses(received),
	})
}

// CheckDelegatedAccess evaluates ?delegateeId=&resourceType=&resourceId=&permission=.
func (h *Handler) CheckDelegatedAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	delegateeID := q.Get("delegateeId")
	resourceType := q.Get("resourceType")
	resourceID := q.Get("resourceId")
	permission := q.Get("permission")
	if delegateeID == "" || resourceType == "" || resourceID == "" || permission == "" {
		respondError(w, http.StatusBadRequest, "delegateeId, resourceType, resourceId and permission are required")
		return
	}

	allowed, err := h.delegations.HasDelegatedAccess(r.Context(), delegateeID, resourceType, resourceID, permission)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	reason := "no active delegation admits the operation"
	if allowed {
		reason = "delegation scope admits the operation"
	}
	h.auditSvc.RecordDecision(r.Context(), delegateeID, "delegation:check", resourceType, resourceID,
		allowed, reason, getClientIP(r), r.UserAgent())

	respondJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}
