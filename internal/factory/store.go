// Package factory constructs driver-selected dependencies from config.
package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/config"
	storepkg "github.com/insightlm/orchestrator/internal/store"
	storepg "github.com/insightlm/orchestrator/internal/store/postgres"
	storelite "github.com/insightlm/orchestrator/internal/store/sqlite"
)

// NewStore returns a store.Store for the configured driver.
// Postgres launches an async bootstrap check; sqlite ensures its schema
// synchronously since the database is embedded.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return storelite.New(cfg.SQLitePath)

	case "postgres":
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, cfg.PostgresDSN); err != nil {
				log.Warn().Err(err).Msg("store bootstrap check failed")
			} else {
				log.Debug().Msg("store bootstrap check completed")
			}
		}()
		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
