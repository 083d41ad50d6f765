package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/repository"
	"github.com/opensource-finance/amlboard/internal/rules"
)

// loadConfig builds the configuration: the selected profile first, then
// the config file, AMLBOARD_* environment variables and bound flags.
func loadConfig() (*domain.Config, error) {
	var cfg *domain.Config
	switch profile := strings.ToLower(viper.GetString("profile")); profile {
	case "", "default":
		cfg = domain.DefaultConfig()
	case "cluster":
		cfg = domain.ClusterConfig()
	default:
		return nil, fmt.Errorf("unknown profile %q", profile)
	}

	setDefaults(cfg)
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every config key so environment variables can
// override keys the config file does not mention.
func setDefaults(cfg *domain.Config) {
	defaults := map[string]any{
		"server.host":         cfg.Server.Host,
		"server.port":         cfg.Server.Port,
		"server.readTimeout":  cfg.Server.ReadTimeout,
		"server.writeTimeout": cfg.Server.WriteTimeout,

		"data.csvPath": cfg.Data.CSVPath,
		"rules.source": cfg.Rules.Source,
		"rules.file":   cfg.Rules.File,

		"repository.driver":           cfg.Repository.Driver,
		"repository.sqlitePath":       cfg.Repository.SQLitePath,
		"repository.postgresHost":     cfg.Repository.PostgresHost,
		"repository.postgresPort":     cfg.Repository.PostgresPort,
		"repository.postgresUser":     cfg.Repository.PostgresUser,
		"repository.postgresPassword": cfg.Repository.PostgresPassword,
		"repository.postgresDB":       cfg.Repository.PostgresDB,
		"repository.postgresSSLMode":  cfg.Repository.PostgresSSLMode,
		"repository.maxOpenConns":     cfg.Repository.MaxOpenConns,
		"repository.maxIdleConns":     cfg.Repository.MaxIdleConns,
		"repository.connMaxLifetime":  cfg.Repository.ConnMaxLifetime,

		"cache.type":           cfg.Cache.Type,
		"cache.localMaxSize":   cfg.Cache.LocalMaxSize,
		"cache.localTTL":       cfg.Cache.LocalTTL,
		"cache.reportTTL":      cfg.Cache.ReportTTL,
		"cache.redisAddr":      cfg.Cache.RedisAddr,
		"cache.redisPassword":  cfg.Cache.RedisPassword,
		"cache.redisDB":        cfg.Cache.RedisDB,
		"cache.enableTwoPhase": cfg.Cache.EnableTwoPhase,

		"eventBus.type":              cfg.EventBus.Type,
		"eventBus.channelBufferSize": cfg.EventBus.ChannelBufferSize,
		"eventBus.natsUrl":           cfg.EventBus.NATSUrl,
		"eventBus.natsToken":         cfg.EventBus.NATSToken,
		"eventBus.natsMaxReconnects": cfg.EventBus.NATSMaxReconnects,
		"eventBus.natsReconnectWait": cfg.EventBus.NATSReconnectWait,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,

		"tracing.enabled":     cfg.Tracing.Enabled,
		"tracing.serviceName": cfg.Tracing.ServiceName,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadEngine builds the rule engine from the configured rule source. The
// repository is opened only when rules live there; the returned close
// function is always safe to call.
func loadEngine(ctx context.Context, cfg *domain.Config) (*rules.Engine, func(), error) {
	noop := func() {}

	var repo domain.Repository
	if cfg.Rules.Source == domain.RuleSourceRepository {
		r, err := repository.New(cfg.Repository)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize repository: %w", err)
		}
		repo = r
	}
	closeRepo := func() {
		if repo != nil {
			repo.Close()
		}
	}

	engine, err := rules.NewEngine()
	if err != nil {
		closeRepo()
		return nil, noop, err
	}

	configs, err := rules.FromSource(ctx, cfg.Rules, repo)
	if err != nil {
		closeRepo()
		return nil, noop, err
	}
	if err := engine.LoadRules(configs); err != nil {
		closeRepo()
		return nil, noop, err
	}

	slog.Debug("rule engine initialized", "source", cfg.Rules.Source, "rules_count", engine.RulesCount())
	return engine, closeRepo, nil
}
