/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eslsoft/salita/internal/adapter/repository"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/infrastructure/database"
	"github.com/eslsoft/salita/internal/infrastructure/server"
)

// dbInitCmd applies the progress schema to the configured database.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Create the progress tables",
	Long:  "Applies the progress schema to the configured PostgreSQL or SQLite database. The statements are idempotent. Note: go-sqlite3 requires CGO_ENABLED=1.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := server.NewLogger(cfg)
		if err != nil {
			return err
		}
		if err := runMigrations(cmd.Context(), cfg, logger); err != nil {
			return err
		}
		cmd.Printf("schema applied (%s)\n", cfg.DatabaseDriver())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
}

func runMigrations(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.DatabaseDriver() {
	case config.DriverPostgres:
		pool, cleanup, err := database.NewConnection(cfg, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer cleanup()
		return repository.MigratePostgres(ctx, pool)
	case config.DriverSQLite:
		db, cleanup, err := database.NewSQLite(cfg)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer cleanup()
		return repository.MigrateSQLite(ctx, db)
	case config.DriverMemory:
		logger.Info("memory store needs no schema")
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
