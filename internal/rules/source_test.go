package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/repository"
)

func TestFromSource(t *testing.T) {
	ctx := context.Background()

	t.Run("Builtin", func(t *testing.T) {
		for _, source := range []string{"", domain.RuleSourceBuiltin} {
			got, err := FromSource(ctx, domain.RulesConfig{Source: source}, nil)
			if err != nil {
				t.Fatalf("FromSource(%q) failed: %v", source, err)
			}
			if len(got) != len(DefaultRules()) {
				t.Errorf("expected %d rules, got %d", len(DefaultRules()), len(got))
			}
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		if err := os.WriteFile(path, []byte(sampleRules), 0o600); err != nil {
			t.Fatalf("failed to write rules file: %v", err)
		}

		got, err := FromSource(ctx, domain.RulesConfig{Source: domain.RuleSourceFile, File: path}, nil)
		if err != nil {
			t.Fatalf("FromSource failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 rules, got %d", len(got))
		}
	})

	t.Run("FileWithoutPath", func(t *testing.T) {
		if _, err := FromSource(ctx, domain.RulesConfig{Source: domain.RuleSourceFile}, nil); err == nil {
			t.Error("expected error when rules.file is empty")
		}
	})

	t.Run("RepositorySeedsDefaults", func(t *testing.T) {
		repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open repository: %v", err)
		}
		defer repo.Close()

		cfg := domain.RulesConfig{Source: domain.RuleSourceRepository}
		first, err := FromSource(ctx, cfg, repo)
		if err != nil {
			t.Fatalf("FromSource failed: %v", err)
		}
		if len(first) != len(DefaultRules()) {
			t.Fatalf("expected seeded defaults, got %d rules", len(first))
		}

		if err := repo.DeleteRule(ctx, "geography-001"); err != nil {
			t.Fatalf("DeleteRule failed: %v", err)
		}

		second, err := FromSource(ctx, cfg, repo)
		if err != nil {
			t.Fatalf("FromSource failed: %v", err)
		}
		if len(second) != len(DefaultRules())-1 {
			t.Errorf("expected stored rules without reseeding, got %d", len(second))
		}
	})

	t.Run("RepositoryRequired", func(t *testing.T) {
		if _, err := FromSource(ctx, domain.RulesConfig{Source: domain.RuleSourceRepository}, nil); err == nil {
			t.Error("expected error without repository")
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := FromSource(ctx, domain.RulesConfig{Source: "ldap"}, nil); err == nil {
			t.Error("expected error for unknown source")
		}
	})
}
