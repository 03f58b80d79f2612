package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MigratorConfig configures cmd/migrator.
type MigratorConfig struct {
	DatabaseURL string
	LogLevel    string
	AppEnv      string
	// SeedCatalog applies the sample tournament catalog after the schema.
	SeedCatalog bool
}

// LoadMigrator reads the migrator configuration. The catalog is seeded by
// default only in development.
func LoadMigrator() (MigratorConfig, error) {
	if err := loadDotEnv(); err != nil {
		return MigratorConfig{}, err
	}

	cfg := MigratorConfig{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		AppEnv:      getEnv("APP_ENV", defaultAppEnv),
	}
	if cfg.DatabaseURL == "" {
		return MigratorConfig{}, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.SeedCatalog = Config{AppEnv: cfg.AppEnv}.IsDev()
	if v := os.Getenv("SEED_TOURNAMENTS"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return MigratorConfig{}, fmt.Errorf("invalid SEED_TOURNAMENTS: %w", err)
		}
		cfg.SeedCatalog = seed
	}
	return cfg, nil
}
