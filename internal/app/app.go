// Package app wires the chargesync dependency graph.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargesync/internal/config"
	"chargesync/internal/jobs"
	"chargesync/internal/lease"
	"chargesync/internal/push"
	"chargesync/internal/repository"
	"chargesync/internal/sources"
	syncengine "chargesync/internal/sync"
	libdb "chargesync/libs/db"
	libredis "chargesync/libs/redis"
)

// App holds the wired application graph.
type App struct {
	cfg         *config.Config
	db          *sql.DB
	redisClient *redis.Client
	store       *repository.Store
	registry    *sources.Registry
	runner      *jobs.Runner
	pushHandler *push.Handler
	logger      *zap.Logger
}

// New constructs the application graph and ensures the database schema.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(sqlDB)
	if err := store.EnsureSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		sqlDB.Close()
		redisClient.Close()
		return nil, err
	}

	syncer := syncengine.NewSyncer(store, cfg.Sync.BatchSize, logger)
	leases := lease.NewManager(redisClient, leaseOwner(), cfg.Sync.LeaseTTL)
	states := repository.NewUpdateStateRepository(sqlDB)
	runner := jobs.NewRunner(registry, syncer, leases, states, store, logger)
	pushHandler := push.NewHandler(registry, syncer, cfg.Push.APIKeys, logger)

	return &App{
		cfg:         cfg,
		db:          sqlDB,
		redisClient: redisClient,
		store:       store,
		registry:    registry,
		runner:      runner,
		pushHandler: pushHandler,
		logger:      logger,
	}, nil
}

func buildRegistry(cfg *config.Config, logger *zap.Logger) (*sources.Registry, error) {
	registry := sources.NewRegistry()

	if cfg.Sources.Nobil.SessionURL != "" {
		src := sources.NewNobilRealtimeSource(sources.NobilRealtimeConfig{
			SessionURL: cfg.Sources.Nobil.SessionURL,
			APIKey:     cfg.Sources.Nobil.APIKey,
		}, nil, logger)
		if err := registry.Register(src); err != nil {
			return nil, err
		}
	}

	if cfg.Sources.Monta.APIURL != "" {
		src := sources.NewMontaSource(sources.MontaConfig{
			APIURL:       cfg.Sources.Monta.APIURL,
			TokenURL:     cfg.Sources.Monta.TokenURL,
			RefreshURL:   cfg.Sources.Monta.RefreshURL,
			ClientID:     cfg.Sources.Monta.ClientID,
			ClientSecret: cfg.Sources.Monta.ClientSecret,
			CountryID:    cfg.Sources.Monta.CountryID,
		}, nil, logger)
		if err := registry.Register(src); err != nil {
			return nil, err
		}
	}

	for _, p := range cfg.Sources.Push {
		if err := registry.Register(sources.NewJSONPushSource(p.ID, p.StaticSource)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "chargesync"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// LoadSource runs one full sync of the named source.
func (a *App) LoadSource(ctx context.Context, sourceID string) error {
	return a.runner.LoadSource(ctx, sourceID)
}

// StreamSource consumes the named source's realtime stream until ctx ends.
func (a *App) StreamSource(ctx context.Context, sourceID string) error {
	return a.runner.StreamSource(ctx, sourceID)
}

// RunPushServer serves the push receiver until ctx ends.
func (a *App) RunPushServer(ctx context.Context) error {
	router := push.NewRouter(a.pushHandler)
	server := push.NewServer(a.cfg.PushAddress(), router, a.logger)
	return server.Run(ctx)
}

// Cleanup purges realtime statuses past the configured retention.
func (a *App) Cleanup(ctx context.Context) error {
	return a.runner.Cleanup(ctx, a.cfg.Sync.StatusRetention)
}

// SourceIDs lists the configured source IDs.
func (a *App) SourceIDs() string {
	return strings.Join(a.registry.IDs(), "\n")
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
