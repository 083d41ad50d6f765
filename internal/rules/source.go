package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// FromSource returns the rule set selected by cfg. The repository source
// seeds the built-in rules into an empty store so they can be edited.
func FromSource(ctx context.Context, cfg domain.RulesConfig, repo domain.Repository) ([]*domain.ClassificationRule, error) {
	switch cfg.Source {
	case "", domain.RuleSourceBuiltin:
		return DefaultRules(), nil

	case domain.RuleSourceFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("rules source %q requires rules.file", cfg.Source)
		}
		return LoadFile(cfg.File)

	case domain.RuleSourceRepository:
		if repo == nil {
			return nil, fmt.Errorf("rules source %q requires a repository", cfg.Source)
		}
		stored, err := repo.ListRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rules: %w", err)
		}
		if len(stored) > 0 {
			return stored, nil
		}

		defaults := DefaultRules()
		for _, r := range defaults {
			if err := repo.SaveRule(ctx, r); err != nil {
				return nil, fmt.Errorf("failed to seed rule %s: %w", r.ID, err)
			}
		}
		slog.Info("seeded default rules", "count", len(defaults))
		return defaults, nil

	default:
		return nil, fmt.Errorf("unknown rules source: %s", cfg.Source)
	}
}
