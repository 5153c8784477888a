package cmd

import (
	"context"
	"fmt"

	"asset-bank/core/asset"
	"asset-bank/core/config"
	"asset-bank/core/database"
	"asset-bank/core/logger"
	"asset-bank/core/module"
	"asset-bank/core/project"
	"asset-bank/core/storage"
	"asset-bank/feature/artifacts"
	"asset-bank/feature/assets"
	"asset-bank/feature/catalog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env is what every command starts from.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &env{cfg: cfg, logger: logg}, nil
}

// backends are the optional external services.
type backends struct {
	db        *gorm.DB
	catalog   *catalog.Service
	store     storage.Client
	artifacts *artifacts.Service
}

// connect opens the catalog database and the module archive when enabled.
// Failures only disable the backend.
func (e *env) connect(ctx context.Context) *backends {
	b := &backends{}

	if e.cfg.Database.Enabled {
		db, err := database.Connect(e.cfg.Database)
		if err != nil {
			e.logger.Warn("Optional catalog database connection failed", zap.Error(err))
		} else {
			svc := catalog.NewService(db, e.logger)
			if err := svc.Migrate(ctx); err != nil {
				e.logger.Warn("Catalog migration failed", zap.Error(err))
			} else {
				b.db, b.catalog = db, svc
				e.logger.Info("Connected to catalog database", zap.String("driver", e.cfg.Database.Driver))
			}
		}
	}

	if e.cfg.Storage.Enabled {
		store, err := e.openStorage(ctx)
		if err != nil {
			e.logger.Warn("Optional module archive unavailable", zap.Error(err))
		} else {
			b.store = store
			b.artifacts = artifacts.NewService(store, e.cfg.Storage.Bucket, e.logger)
		}
	}
	return b
}

func (e *env) openStorage(ctx context.Context) (storage.Client, error) {
	store, err := storage.NewClient(e.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := artifacts.NewService(store, e.cfg.Storage.Bucket, e.logger).EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newProject wires the registry, the asset kinds and the optional backends
// into a project.
func (e *env) newProject(b *backends, opts ...project.Option) (*project.Project, error) {
	host := module.NewHost(module.WithLogger(e.logger))
	reg := asset.NewRegistry()
	if err := assets.Register(reg, host); err != nil {
		return nil, err
	}

	opts = append([]project.Option{
		project.WithLogger(e.logger),
		project.WithHost(host),
	}, opts...)
	if b != nil && b.catalog != nil {
		opts = append(opts, project.WithSyncObserver(b.catalog))
	}
	if b != nil && b.artifacts != nil {
		opts = append(opts, project.WithArchiver(b.artifacts))
	}

	p, err := project.New(e.cfg.Project, reg, opts...)
	if err != nil {
		return nil, err
	}
	assets.RegisterProcessors(p.Bank(), e.logger)
	return p, nil
}
