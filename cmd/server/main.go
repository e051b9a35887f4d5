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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgrid/authgrid/internal/audit"
	"github.com/authgrid/authgrid/internal/authz"
	"github.com/authgrid/authgrid/internal/cache"
	"github.com/authgrid/authgrid/internal/config"
	"github.com/authgrid/authgrid/internal/event"
	"github.com/authgrid/authgrid/internal/identity"
	"github.com/authgrid/authgrid/internal/observability/logger"
	"github.com/authgrid/authgrid/internal/observability/metrics"
	"github.com/authgrid/authgrid/internal/observability/tracing"
	"github.com/authgrid/authgrid/internal/store/postgres"
	transportHTTP "github.com/authgrid/authgrid/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting authgrid authorization service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.Background())
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	userRoleRepo := postgres.NewUserRoleRepository(db)
	rolePermRepo := postgres.NewRolePermissionRepository(db)
	resourcePermRepo := postgres.NewResourcePermissionRepository(db)
	delegationRepo := postgres.NewDelegationRepository(db)
	revocationStore := postgres.NewRevocationStore(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Permission cache: Redis when configured, noop otherwise.
	var permCache authz.PermissionCache = authz.NopCache{}
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Error("failed to connect to redis, continuing without cache", logger.Error(err))
		} else {
			defer redisCache.Close()
			go redisCache.ListenInvalidations(ctx)
			permCache = redisCache
			slog.Info("permission cache enabled", logger.Component("cache"))
		}
	}

	// Audit trail and change-event bus. The audit service and the
	// domain meter consume every change; emitting operations never
	// wait on them.
	auditSvc := audit.NewService(audit.NewStoreRecorder(auditRepo), auditRepo)
	subscribers := []event.Subscriber{auditSvc}
	if meter != nil {
		subscribers = append(subscribers, meter)
	}
	bus := event.NewBus(256, subscribers...)
	defer bus.Close()

	// Initialize services
	governance := authz.GovernanceConfig{
		BasicRoles:    cfg.Governance.BasicRoles,
		ElevatedRoles: cfg.Governance.ElevatedRoles,
		ProtectedRole: cfg.Governance.ProtectedRole,
		DefaultRole:   cfg.Governance.DefaultRole,
	}

	resolver := authz.NewResolver(userRoleRepo, rolePermRepo, resourcePermRepo, delegationRepo, permCache)
	governor := authz.NewGovernor(userRepo, roleRepo, userRoleRepo, resolver, governance, bus)
	cascader := authz.NewCascader(revocationStore, permCache, bus)
	roleService := authz.NewRoleService(roleRepo, permRepo, rolePermRepo, userRoleRepo, cascader, permCache, governance, bus)
	permCatalog := authz.NewPermissionCatalog(permRepo, cascader)
	resourcePermService := authz.NewResourcePermissionService(userRepo, resourcePermRepo, permCache, bus)
	delegationService := authz.NewDelegationService(userRepo, delegationRepo, bus)

	identityService := identity.NewService(
		userRepo,
		identity.RevokerFunc(func(ctx context.Context, userID, revokedBy string) error {
			_, err := cascader.RevokeAllForUser(ctx, userID, revokedBy)
			return err
		}),
		governor,
		governance.DefaultRole,
		bus,
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		governor,
		resolver,
		roleService,
		permCatalog,
		resourcePermService,
		delegationService,
		auditSvc,
	)

	routerCfg := transportHTTP.RouterConfig{}
	if cfg.Auth.Enabled {
		routerCfg.AuthSecret = []byte(cfg.Auth.JWTSecret)
	}
	router := transportHTTP.NewRouter(handler, rateLimiter, routerCfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
