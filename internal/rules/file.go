package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// LoadFile reads rules from a YAML file of the form:
//
//	rules:
//	  - id: structuring-001
//	    typology: STRUCTURING
//	    keywords: [structuring, sub-threshold]
//	    priority: 10
//
// Rules without an explicit "enabled: false" are enabled.
func LoadFile(path string) ([]*domain.ClassificationRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseFile(raw)
}

// fileRule mirrors domain.ClassificationRule with an optional enabled flag.
type fileRule struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Typology    string   `yaml:"typology"`
	Keywords    []string `yaml:"keywords"`
	Expression  string   `yaml:"expression"`
	Priority    int      `yaml:"priority"`
	Enabled     *bool    `yaml:"enabled"`
}

// ParseFile decodes a rules document.
func ParseFile(raw []byte) ([]*domain.ClassificationRule, error) {
	var doc struct {
		Rules []fileRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	out := make([]*domain.ClassificationRule, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		t, err := domain.ParseTypology(r.Typology)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRule, r.ID, err)
		}
		out = append(out, &domain.ClassificationRule{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Typology:    t,
			Keywords:    r.Keywords,
			Expression:  r.Expression,
			Priority:    r.Priority,
			Enabled:     r.Enabled == nil || *r.Enabled,
		})
	}
	return out, nil
}
