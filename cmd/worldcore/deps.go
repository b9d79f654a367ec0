package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newworld-app/worldcore/internal/application/handlers"
	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/services"
	"github.com/newworld-app/worldcore/internal/infrastructure/config"
	"github.com/newworld-app/worldcore/internal/infrastructure/docstore/sqlite"
)

// Deps holds high-level dependencies for commands. Only handlers are
// exposed; services and the repository stay internal.
type Deps struct {
	Config        *config.Config
	EntityHandler *handlers.EntityHandler
	WorldHandler  *handlers.WorldHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	repo   *sqlite.Repository
	logger *zap.Logger
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

func withInternalDeps(ctx context.Context, fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failures are harmless

	if err := os.MkdirAll(config.ConfigDir(cwd), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	repo, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	policy, ok := services.ParseCascadePolicy(cfg.Cascade)
	if !ok {
		return fmt.Errorf("invalid cascade policy %q (want %q or %q)",
			cfg.Cascade, services.DeleteAlways, services.DeleteIfClean)
	}
	entityService := services.NewEntityService(repo, entities.DefaultSchema(), policy, logger)
	worldService := services.NewWorldService(repo, logger)

	deps := &internalDeps{
		Deps: Deps{
			Config:        cfg,
			EntityHandler: handlers.NewEntityHandler(entityService),
			WorldHandler:  handlers.NewWorldHandler(worldService),
		},
		repo:   repo,
		logger: logger,
	}

	return fn(deps)
}

// buildLogger creates a zap logger per the log config.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

// requireOwner returns the owner id from the flag, or an error.
func requireOwner() (string, error) {
	if globalOwner == "" {
		return "", errors.New("owner is required (use --owner or set WORLDCORE_OWNER)")
	}
	return globalOwner, nil
}

// resolveWorld maps the --world flag to a world id.
func resolveWorld(ctx context.Context, d *Deps) (string, error) {
	if globalWorld == "" {
		return "", errors.New("world is required (use --world flag)")
	}
	owner, err := requireOwner()
	if err != nil {
		return "", err
	}
	world, err := d.WorldHandler.HandleShow(ctx, owner, globalWorld)
	if err != nil {
		return "", err
	}
	return world.ID, nil
}
