package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/unity-gaming/unity_wallet/internal/config"
	"github.com/unity-gaming/unity_wallet/internal/logging"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

//go:embed seed/*.sql
var seedFS embed.FS

func main() {
	cfg, err := config.LoadMigrator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := migrateAll(cfg, logger); err != nil {
		logger.Error("migration run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("migration run finished successfully")
}

func migrateAll(cfg config.MigratorConfig, logger *slog.Logger) error {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close() // nolint:errcheck

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	schema, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}
	if err := runMigrations(schema, schemaFS, "migrations"); err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}
	logger.Info("schema migrations applied")

	if !cfg.SeedCatalog {
		return nil
	}
	// seeds keep their own version table so they never collide with the schema
	seeds, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "seed_migrations"})
	if err != nil {
		return fmt.Errorf("init seed driver: %w", err)
	}
	if err := runMigrations(seeds, seedFS, "seed"); err != nil {
		return fmt.Errorf("seed migrations: %w", err)
	}
	logger.Info("tournament catalog seeded")
	return nil
}

func runMigrations(driver database.Driver, fsys embed.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("up: %w", err)
	}
	return nil
}
