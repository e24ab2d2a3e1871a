package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/infrastructure/config"
)

// NewConnection creates a new pgx connection pool
func NewConnection(cfg *config.Config, logger logrus.FieldLogger) (*pgxpool.Pool, func(), error) {
	if cfg.DatabaseDriver() != config.DriverPostgres {
		return nil, nil, fmt.Errorf("connection pool requires PostgreSQL, configured driver: %s", cfg.DatabaseDriver())
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = 10

	if cfg.Database.LogSQL {
		sqlLogger := logger.WithField("component", "pgx")
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
				entry := sqlLogger.WithFields(logrus.Fields(data))
				switch lvl {
				case tracelog.LogLevelError:
					entry.Error(msg)
				case tracelog.LogLevelWarn:
					entry.Warn(msg)
				case tracelog.LogLevelInfo:
					entry.Info(msg)
				default:
					entry.Debug(msg)
				}
			}),
			LogLevel: tracelog.LogLevelTrace,
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, pool.Close, nil
}
