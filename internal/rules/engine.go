// Package rules provides the ordered, first-match typology classifier.
// Rules match on keywords or on CEL expressions compiled with cel-go.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// ErrInvalidRule is returned when a rule fails validation or compilation.
var ErrInvalidRule = errors.New("invalid rule")

// Engine classifies scenario text by evaluating rules in priority order.
// The first matching rule decides the typology; nothing matching yields
// UNCLASSIFIED.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*CompiledRule
}

// CompiledRule holds a validated rule ready for matching.
type CompiledRule struct {
	Config   *domain.ClassificationRule
	Program  cel.Program
	keywords []string
}

// NewEngine creates an engine with no rules loaded.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("scenario", cel.StringType),
		cel.Variable("raw_scenario", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// NewDefaultEngine creates an engine loaded with DefaultRules.
func NewDefaultEngine() (*Engine, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := e.LoadRules(DefaultRules()); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidateRule compiles a rule without changing the loaded set.
func (e *Engine) ValidateRule(cfg *domain.ClassificationRule) error {
	if cfg == nil {
		return fmt.Errorf("%w: rule config is required", ErrInvalidRule)
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRules replaces the loaded rules. Disabled rules are skipped.
// On error the previously loaded rules stay in place.
func (e *Engine) LoadRules(configs []*domain.ClassificationRule) error {
	compiled := make([]*CompiledRule, 0, len(configs))
	for _, cfg := range configs {
		if cfg == nil || !cfg.Enabled {
			continue
		}
		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		a, b := compiled[i].Config, compiled[j].Config
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	return nil
}

// ReloadRules is LoadRules under the name the API uses for hot reload.
func (e *Engine) ReloadRules(configs []*domain.ClassificationRule) error {
	return e.LoadRules(configs)
}

// GetLoadedRules returns the loaded rule configs in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.ClassificationRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.ClassificationRule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Config
	}
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Classify returns the typology for a scenario.
func (e *Engine) Classify(scenario string) domain.Typology {
	t, _ := e.match(scenario)
	return t
}

// ClassifyDetail classifies a scenario and attaches rationale, stage and the
// id of the rule that matched.
func (e *Engine) ClassifyDetail(scenario string) domain.Classification {
	t, ruleID := e.match(scenario)
	info := domain.Info(t)
	return domain.Classification{
		Typology:    t,
		Rationale:   Rationale(scenario, t),
		Stage:       info.Stage,
		Description: info.Description,
		RuleID:      ruleID,
	}
}

func (e *Engine) match(scenario string) (domain.Typology, string) {
	lowered := fold(scenario)

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.matches(lowered, scenario) {
			return r.Config.Typology, r.Config.ID
		}
	}
	return domain.TypologyUnclassified, ""
}

func (r *CompiledRule) matches(lowered, raw string) bool {
	if r.Program == nil {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return true
			}
		}
		return false
	}

	out, _, err := r.Program.Eval(map[string]any{
		"scenario":     lowered,
		"raw_scenario": raw,
	})
	if err != nil {
		slog.Debug("rule evaluation failed", "rule_id", r.Config.ID, "error", err)
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

// Close drops all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
	return nil
}

func (e *Engine) compileRule(cfg *domain.ClassificationRule) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if !cfg.Typology.Valid() {
		return nil, fmt.Errorf("%w: rule %s: unknown typology %q", ErrInvalidRule, cfg.ID, cfg.Typology)
	}

	compiled := &CompiledRule{Config: cfg}

	if cfg.Expression == "" {
		for _, kw := range cfg.Keywords {
			if kw = fold(strings.TrimSpace(kw)); kw != "" {
				compiled.keywords = append(compiled.keywords, kw)
			}
		}
		if len(compiled.keywords) == 0 {
			return nil, fmt.Errorf("%w: rule %s: keywords or expression required", ErrInvalidRule, cfg.ID)
		}
		return compiled, nil
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile rule %s: %v", ErrInvalidRule, cfg.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: rule %s: expression must return bool, got %s", ErrInvalidRule, cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create program for rule %s: %v", ErrInvalidRule, cfg.ID, err)
	}
	compiled.Program = program
	return compiled, nil
}

// fold lowercases with root-locale rules. Casers are not safe for
// concurrent use, so each call gets its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Rationale explains a typology assignment for the given scenario.
func Rationale(scenario string, t domain.Typology) string {
	return fmt.Sprintf("Based on scenario '%s': %s", scenario, domain.RationaleText(t))
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// Classify classifies a scenario with the built-in rule set.
func Classify(scenario string) domain.Typology {
	defaultEngineOnce.Do(func() {
		e, err := NewDefaultEngine()
		if err != nil {
			// The built-in rules are keyword-only and always compile.
			panic(err)
		}
		defaultEngine = e
	})
	return defaultEngine.Classify(scenario)
}
