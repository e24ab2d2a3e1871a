package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	adapterrepo "github.com/eslsoft/salita/internal/adapter/repository"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/repository"
)

// NewProgressStore opens the progress store selected by database.driver.
// SQLite databases are migrated on open; PostgreSQL expects db-init to have run.
func NewProgressStore(cfg *config.Config, logger logrus.FieldLogger) (repository.ProgressStore, func(), error) {
	switch cfg.DatabaseDriver() {
	case config.DriverPostgres:
		pool, cleanup, err := NewConnection(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return adapterrepo.NewPostgresProgressStore(pool), cleanup, nil

	case config.DriverSQLite:
		db, cleanup, err := NewSQLite(cfg)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adapterrepo.MigrateSQLite(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		return adapterrepo.NewSQLiteProgressStore(db), cleanup, nil

	case config.DriverMemory:
		logger.Warn("using in-memory progress store, progress is lost on restart")
		return adapterrepo.NewMemoryProgressStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// NewProgressFeed returns the Redis feed when redis.addr is set and the
// in-process feed otherwise.
func NewProgressFeed(cfg *config.Config, logger logrus.FieldLogger) (repository.ProgressFeed, func(), error) {
	if cfg.Redis.Addr == "" {
		feed := adapterrepo.NewMemoryFeed()
		return feed, func() { _ = feed.Close() }, nil
	}
	feed, err := adapterrepo.NewRedisFeed(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, logger)
	if err != nil {
		return nil, nil, err
	}
	return feed, func() {
		if err := feed.Close(); err != nil {
			logger.WithError(err).Warn("close redis feed")
		}
	}, nil
}
