package database

import (
	"context"

	"github.com/askdb/askdb/internal/config"
	askerrors "github.com/askdb/askdb/internal/errors"
)

// Open constructs the store for the configured driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverDuckDB:
		return NewDuckDBStore(cfg.Path)
	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, askerrors.New(askerrors.ErrTypeConfig,
				"postgres driver requires a connection string").
				WithSuggestion("Set ASKDB_DB_DSN or database.dsn in the config file")
		}

		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, askerrors.Newf(askerrors.ErrTypeConfig, "unsupported database driver: %s", cfg.Driver)
	}
}
