package domain

import "time"

// ClassificationRule maps scenario text to a typology.
// A rule matches on Keywords (any substring, case-insensitive) or, when set,
// on a CEL boolean Expression over `scenario` and `raw_scenario`.
type ClassificationRule struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Typology    Typology `json:"typology" yaml:"typology"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Expression  string   `json:"expression,omitempty" yaml:"expression,omitempty"`

	// Priority orders evaluation; lower runs first.
	Priority int  `json:"priority" yaml:"priority"`
	Enabled  bool `json:"enabled" yaml:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Classification is the output of classifying one scenario.
type Classification struct {
	Typology    Typology `json:"typology"`
	Rationale   string   `json:"rationale"`
	Stage       Stage    `json:"stage"`
	Description string   `json:"description"`
	RuleID      string   `json:"ruleId,omitempty"`
}
