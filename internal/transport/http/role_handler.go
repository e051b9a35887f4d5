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
)

type roleResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ParentRoleID *string   `json:"parentRoleId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toRoleResponse(role *authz.Role) roleResponse {
	return roleResponse{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		ParentRoleID: role.ParentRoleID,
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}

type roleRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	ParentRoleID *string `json:"parentRoleId"`
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := h.roles.CreateRole(r.Context(), req.ID, req.Name, req.Description, req.ParentRoleID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := h.roles.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), req.Name, req.Description, req.ParentRoleID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(r.Context(), chi.URLParam(r, "roleID"), caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) RestoreRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.RestoreRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toRoleResponse(role))
}

// Role-permission grants

func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := h.roles.RolePermissions(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	type grantResponse struct {
		PermissionID string    `json:"permissionId"`
		GrantedAt    time.Time `json:"grantedAt"`
		GrantedBy    string    `json:"grantedBy"`
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{PermissionID: g.PermissionID, GrantedAt: g.GrantedAt, GrantedBy: g.GrantedBy})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GrantRolePermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		PermissionID string `json:"permissionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PermissionID == "" {
		respondError(w, http.StatusBadRequest, "permissionId is required")
		return
	}
	if err := h.roles.GrantPermission(r.Context(), chi.URLParam(r, "roleID"), req.PermissionID, caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, nil)
}

func (h *Handler) RevokeRolePermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.roles.RevokePermission(r.Context(), chi.URLParam(r, "roleID"), chi.URLParam(r, "permissionID"), caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Permission catalog

type permissionResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ResourceType string `json:"resourceType"`
	Action       string `json:"action"`
}

func toPermissionResponse(p *authz.Permission) permissionResponse {
	return permissionResponse{ID: p.ID, Name: p.Name, ResourceType: p.ResourceType, Action: p.Action}
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.ListPermissions(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.catalog.CreatePermission(r.Context(), req.ID, req.Name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPermissionResponse(p))
}

func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetPermission(r.Context(), chi.URLParam(r, "permissionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPermissionResponse(p))
}

func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeletePermission(r.Context(), chi.URLParam(r, "permissionID"), caller); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) RestorePermission(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.RestorePermission(r.Context(), chi.URLParam(r, "permissionID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPermissionResponse(p))
}
