// Package app wires stores, the provisioner and services from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/auth"
	"github.com/teresa-solution/tenant-provisioning-service/internal/config"
	"github.com/teresa-solution/tenant-provisioning-service/internal/crypto"
	"github.com/teresa-solution/tenant-provisioning-service/internal/provisioner"
	"github.com/teresa-solution/tenant-provisioning-service/internal/service"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

// App holds the constructed dependency graph
type App struct {
	Config       *config.Config
	DB           *store.DB
	Cache        *store.TenantCache
	Provisioner  *provisioner.Provisioner
	Tokens       *auth.TokenManager
	Tenants      *service.TenantService
	Provisioning *service.ProvisioningService
	Admins       *service.AdminService
	Events       *store.EventRepository
	Sync         *service.SchemaSyncService
	logger       zerolog.Logger
}

// New connects to the directory database, loads the tenant DDL script and
// builds every service. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	db, err := store.New(ctx, cfg.Directory, logger)
	if err != nil {
		return nil, err
	}

	var cache *store.TenantCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, tenant cache disabled")
			_ = client.Close()
		} else {
			cache = store.NewTenantCache(client, cfg.Redis.TTL, logger)
		}
	}

	script, err := provisioner.LoadScript(cfg.Provisioning.DDLPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load tenant DDL script: %w", err)
	}
	prov, err := provisioner.New(cfg.App.URL, script, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().
		Str("script_version", script.Version).
		Str("script_source", script.Source).
		Strs("tables", script.Tables).
		Msg("tenant DDL script loaded")

	logs := store.NewLogRepository(db, logger)
	tenants := store.NewTenantRepository(db, logs, cache, logger)
	admins := store.NewSuperAdminRepository(db, logs)
	events := store.NewEventRepository(db)
	hasher := crypto.NewHasher()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	provisioning := service.NewProvisioningService(tenants, prov, hasher, events, service.ProvisioningOptions{
		DropSchemaOnFailure: cfg.Provisioning.DropSchemaOnFailure,
	}, logger)

	syncOpts := service.SyncOptions{GracePeriod: cfg.Provisioning.SyncGracePeriod}

	return &App{
		Config:       cfg,
		DB:           db,
		Cache:        cache,
		Provisioner:  prov,
		Tokens:       tokens,
		Tenants:      service.NewTenantService(tenants, provisioning, logs, logger),
		Provisioning: provisioning,
		Admins:       service.NewAdminService(admins, logs, logs, hasher, tokens, logger),
		Events:       events,
		Sync:         service.NewSchemaSyncService(tenants, prov, syncOpts, logger),
		logger:       logger,
	}, nil
}

// Close releases the database pool and the cache client
func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close redis client")
	}
	a.DB.Close()
}
