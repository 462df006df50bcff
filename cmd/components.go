// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/internal/browser"
	"github.com/xkilldash9x/planpilot-cli/internal/config"
	"github.com/xkilldash9x/planpilot-cli/internal/interpreter"
	"github.com/xkilldash9x/planpilot-cli/internal/observability"
	"github.com/xkilldash9x/planpilot-cli/internal/runner"
	"github.com/xkilldash9x/planpilot-cli/internal/store"
)

// components holds the initialized services shared by the run and serve
// commands.
type components struct {
	Manager *browser.Manager
	Runner  *runner.Runner
	Store   *store.Store
	DBPool  *pgxpool.Pool
}

// Shutdown gracefully closes all components.
func (c *components) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if c.Manager != nil {
		if err := c.Manager.Shutdown(shutdownCtx); err != nil {
			observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

// initializeComponents handles dependency wiring. Run-history persistence
// is enabled only when a database URL is configured.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	var runStore runner.RunStore
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return c, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DBPool = pool

		dbStore, err := store.New(ctx, pool, logger)
		if err != nil {
			return c, fmt.Errorf("failed to initialize run store: %w", err)
		}
		if err := dbStore.EnsureSchema(ctx); err != nil {
			return c, err
		}
		c.Store = dbStore
		runStore = dbStore
	}

	c.Manager = browser.NewManager(cfg, logger)

	interp := interpreter.New(logger, cfg.Runner.StepTimeout)
	c.Runner = runner.New(
		runner.NewBrowserFactory(c.Manager),
		interp,
		runStore,
		logger,
		cfg.Runner.RunTimeout,
	)

	return c, nil
}
