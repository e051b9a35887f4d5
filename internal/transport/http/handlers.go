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

// Package http exposes the authorization services over a JSON API.
// The transport stays thin: request decoding, caller identity, error
// mapping. All rules live in the service packages.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authgrid/authgrid/internal/audit"
	"github.com/authgrid/authgrid/internal/authz"
	"github.com/authgrid/authgrid/internal/identity"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	users         *identity.Service
	governor      *authz.Governor
	resolver      *authz.Resolver
	roles         *authz.RoleService
	catalog       *authz.PermissionCatalog
	resourcePerms *authz.ResourcePermissionService
	delegations   *authz.DelegationService
	auditSvc      *audit.Service
}

// NewHandler creates a new HTTP handler
func NewHandler(
	users *identity.Service,
	governor *authz.Governor,
	resolver *authz.Resolver,
	roles *authz.RoleService,
	catalog *authz.PermissionCatalog,
	resourcePerms *authz.ResourcePermissionService,
	delegations *authz.DelegationService,
	auditSvc *audit.Service,
) *Handler {
	return &Handler{
		users:         users,
		governor:      governor,
		resolver:      resolver,
		roles:         roles,
		catalog:       catalog,
		resourcePerms: resourcePerms,
		delegations:   delegations,
		auditSvc:      auditSvc,
	}
}

// RouterConfig carries the transport-level settings.
type RouterConfig struct {
	// AuthSecret enables the bearer-token middleware when non-empty.
	AuthSecret []byte
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		if len(cfg.AuthSecret) > 0 {
			r.Use(AuthMiddleware(cfg.AuthSecret, h.users))
		}

		r.Route("/users", func(r chi.Router) {
			r.Post("/sync", h.SyncUser)
			r.Get("/", h.ListUsers)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Delete("/", h.DeleteUser)
				r.Post("/restore", h.RestoreUser)

				r.Get("/roles", h.ListUserRoles)
				r.Post("/roles", h.AssignRole)
				r.Delete("/roles/{roleID}", h.RevokeRole)

				r.Get("/permissions", h.EffectivePermissions)
				r.Get("/permissions/history", h.PermissionsAtPointInTime)
				r.Get("/resource-permissions", h.ListResourcePermissions)
				r.Get("/delegations", h.ListDelegations)
				r.Get("/audit", h.AuditForUser)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Get("/", h.ListRoles)
			r.Post("/", h.CreateRole)
			r.Route("/{roleID}", func(r chi.Router) {
				r.Get("/", h.GetRole)
				r.Put("/", h.UpdateRole)
				r.Delete("/", h.DeleteRole)
				r.Post("/restore", h.RestoreRole)

				r.Get("/permissions", h.ListRolePermissions)
				r.Post("/permissions", h.GrantRolePermission)
				r.Delete("/permissions/{permissionID}", h.RevokeRolePermission)
			})
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", h.ListPermissions)
			r.Post("/", h.CreatePermission)
			r.Route("/{permissionID}", func(r chi.Router) {
				r.Get("/", h.GetPermission)
				r.Delete("/", h.DeletePermission)
				r.Post("/restore", h.RestorePermission)
			})
		})

		r.Route("/resource-permissions", func(r chi.Router) {
			r.Post("/", h.GrantResourcePermission)
			r.Delete("/{grantID}", h.RevokeResourcePermission)
		})

		r.Route("/delegations", func(r chi.Router) {
			r.Post("/", h.CreateDelegation)
			r.Delete("/{delegationID}", h.RevokeDelegation)
			r.Get("/check", h.CheckDelegatedAccess)
		})

		r.Get("/audit", h.AuditInRange)
	})

	return r
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
