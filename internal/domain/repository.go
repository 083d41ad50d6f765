// Package domain defines the core interfaces and types for amlboard.
package domain

import (
	"context"
	"time"
)

// Repository persists classification rule configuration and the dataset
// load audit trail. Case records themselves are never persisted.
type Repository interface {
	// Classification rule operations
	SaveRule(ctx context.Context, rule *ClassificationRule) error
	GetRule(ctx context.Context, ruleID string) (*ClassificationRule, error)
	ListRules(ctx context.Context) ([]*ClassificationRule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Dataset load history
	SaveDatasetLoad(ctx context.Context, load *DatasetLoad) error
	ListDatasetLoads(ctx context.Context, limit int) ([]*DatasetLoad, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgresPort"`
	PostgresUser     string `mapstructure:"postgresUser"`
	PostgresPassword string `mapstructure:"postgresPassword"`
	PostgresDB       string `mapstructure:"postgresDB"`
	PostgresSSLMode  string `mapstructure:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}
