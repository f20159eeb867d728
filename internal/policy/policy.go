// Package policy maps active findings to blocking levels and aggregates
// the merge-gate verdict. Every class and category the corpus uses must
// have an explicit level mapping; there is no implicit fallback branch,
// loading fails instead of guessing.
package policy

import (
	"fmt"
	"strings"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/ir"
)

// ConfigurationError means the blocking-level mapping is incomplete or
// contradictory. Fatal at load time, same as a corpus error.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string { return "policy config: " + e.Detail }

// Entry assigns one class or category a level and auto-apply eligibility.
type Entry struct {
	Level     string `yaml:"level" json:"level"` // blocking|advisory
	AutoApply bool   `yaml:"auto_apply" json:"auto_apply"`
}

// Config is the class/category → blocking-level mapping.
type Config struct {
	Classes    map[string]Entry `yaml:"classes" json:"classes"`
	Categories map[string]Entry `yaml:"categories" json:"categories"`
}

// Validate checks the mapping is exhaustive for the given corpus.
func (c *Config) Validate(snap *corpus.Corpus) error {
	for cl, e := range c.Classes {
		if err := checkLevel("class", cl, e.Level); err != nil {
			return err
		}
	}
	for cat, e := range c.Categories {
		if err := checkLevel("category", cat, e.Level); err != nil {
			return err
		}
	}
	for _, cl := range snap.Classes() {
		if _, ok := c.Classes[cl]; !ok {
			return &ConfigurationError{Detail: fmt.Sprintf("corpus uses class %q with no level mapping", cl)}
		}
	}
	for _, cat := range snap.Categories() {
		if _, ok := c.Categories[cat]; !ok {
			return &ConfigurationError{Detail: fmt.Sprintf("corpus uses category %q with no level mapping", cat)}
		}
	}
	return nil
}

func checkLevel(what, name, level string) error {
	switch level {
	case ir.LevelBlocking, ir.LevelAdvisory:
		return nil
	default:
		return &ConfigurationError{Detail: fmt.Sprintf("%s %q: level must be %q or %q, got %q", what, name, ir.LevelBlocking, ir.LevelAdvisory, level)}
	}
}

// entryFor resolves the effective entry for a rule: a category entry
// overrides the class entry.
func (c *Config) entryFor(class, category string) Entry {
	if e, ok := c.Categories[category]; ok {
		return e
	}
	return c.Classes[strings.ToUpper(class)]
}

// AutoApply reports whether suggestions of the given rule's category are
// eligible for unattended application.
func (c *Config) AutoApply(class, category string) bool {
	return c.entryFor(class, category).AutoApply
}

// Resolve assigns each active finding its blocking level and returns the
// aggregate gate verdict. Suppressed findings are passed through
// untouched; they never contribute to the gate.
func Resolve(findings []ir.Finding, units []ir.ChangeUnit, snap *corpus.Corpus, cfg *Config) ([]ir.Finding, bool, error) {
	env := newPredicateEnv(units)

	out := make([]ir.Finding, len(findings))
	copy(out, findings)
	blocked := false
	for i := range out {
		f := &out[i]
		if f.State != ir.StateActive {
			continue
		}
		rule, ok := snap.Get(f.RuleID)
		if !ok {
			return nil, false, &ConfigurationError{Detail: fmt.Sprintf("finding references unknown rule %q", f.RuleID)}
		}
		level, err := resolveLevel(rule, f, env, snap, cfg)
		if err != nil {
			return nil, false, err
		}
		f.Level = level
		if level == ir.LevelBlocking {
			blocked = true
		}
	}
	return out, blocked, nil
}

func resolveLevel(rule corpus.Rule, f *ir.Finding, env *predicateEnv, snap *corpus.Corpus, cfg *Config) (string, error) {
	switch {
	case rule.Blocking == corpus.BlockingNever:
		return ir.LevelAdvisory, nil
	case rule.Blocking == corpus.BlockingAlways:
		return cfg.entryFor(rule.Class, rule.Category).Level, nil
	default:
		name := rule.ConditionalPredicate()
		pred, ok := snap.Predicate(name)
		if !ok {
			// The loader guarantees this; defend against hand-built corpora.
			return "", &ConfigurationError{Detail: fmt.Sprintf("rule %s: undefined predicate %q", rule.ID, name)}
		}
		if env.eval(pred, f) {
			return ir.LevelBlocking, nil
		}
		return ir.LevelAdvisory, nil
	}
}
