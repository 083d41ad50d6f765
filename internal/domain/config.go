package domain

import "time"

// Config holds the complete amlboard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `mapstructure:"server"`

	// Data source and classification rules
	Data  DataConfig  `mapstructure:"data"`
	Rules RulesConfig `mapstructure:"rules"`

	// Component configurations
	Repository RepositoryConfig `mapstructure:"repository"`
	Cache      CacheConfig      `mapstructure:"cache"`
	EventBus   EventBusConfig   `mapstructure:"eventBus"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // seconds
}

// DataConfig points at the case assessment file.
type DataConfig struct {
	CSVPath string `mapstructure:"csvPath"`
}

// RulesConfig selects where classification rules come from.
type RulesConfig struct {
	// Source is "builtin", "file" or "repository".
	Source string `mapstructure:"source"`
	// File is the YAML rules file used when Source is "file".
	File string `mapstructure:"file"`
}

// Rule sources.
const (
	RuleSourceBuiltin    = "builtin"
	RuleSourceFile       = "file"
	RuleSourceRepository = "repository"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"serviceName"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite, in-memory cache and channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Data: DataConfig{
			CSVPath: "./aml_report.csv",
		},
		Rules: RulesConfig{
			Source: RuleSourceBuiltin,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./amlboard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
			ReportTTL:    10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "amlboard",
		},
	}
}

// ClusterConfig returns a configuration for a shared deployment:
// PostgreSQL, two-phase Redis cache and NATS.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "amlboard",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   500,
		LocalTTL:       time.Minute,
		ReportTTL:      10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
