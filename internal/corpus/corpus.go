package corpus

import (
	"regexp"
	"sort"
	"strings"
)

// Matcher kinds.
const (
	KindLiteral    = "literal"
	KindRegex      = "regex"
	KindStructural = "structural"
)

// Blocking declarations a rule may carry. Conditional rules use the
// "conditional:<predicate>" form, resolved by the policy engine.
const (
	BlockingAlways = "always"
	BlockingNever  = "never"

	conditionalPrefix = "conditional:"
)

// Matcher is one compiled pattern of a rule.
type Matcher struct {
	Kind      string
	Pattern   string         // literal text or regex source
	Regex     *regexp.Regexp // compiled, regex kind only
	Predicate string         // structural kind only
	Window    int            // structural look-ahead bound, lines
}

// Suggestion is a rule's patch template. Slots appear as {{name}} and are
// filled from regex named captures (plus the implicit "match" slot).
type Suggestion struct {
	Template string
}

// Rule is one compiled detector definition.
type Rule struct {
	ID        string
	Class     string // A|B
	Category  string
	Summary   string
	Message   string
	Languages []string // empty = any
	Matchers  []Matcher
	Blocking  string // always|never|conditional:<predicate>
	Suggest   *Suggestion
}

// ConditionalPredicate returns the predicate name of a conditional rule,
// or "" for always/never rules.
func (r *Rule) ConditionalPredicate() string {
	if strings.HasPrefix(r.Blocking, conditionalPrefix) {
		return strings.TrimPrefix(r.Blocking, conditionalPrefix)
	}
	return ""
}

// AppliesTo reports whether the rule runs on units of the given language.
// Rules with no language scope apply to everything, including "unknown".
func (r *Rule) AppliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

// Predicate is a corpus-supplied conditional-blocking predicate.
type Predicate struct {
	Name    string
	Kind    string // path_glob|type_name|test_sibling
	Globs   []string
	Pattern string
	Regex   *regexp.Regexp // compiled, type_name kind only
}

// Predicate kinds.
const (
	PredPathGlob    = "path_glob"
	PredTypeName    = "type_name"
	PredTestSibling = "test_sibling"
)

// Corpus is an immutable, indexed rule set. Built once by the loader and
// never mutated afterwards; concurrent scans share one Corpus freely.
type Corpus struct {
	Version    string
	rules      []Rule
	byID       map[string]int
	byClass    map[string][]int
	predicates map[string]Predicate
}

// New builds a corpus from already-compiled rules, bypassing pack
// validation. Intended for programmatic corpora and tests; YAML packs go
// through Load, which validates.
func New(version string, rules []Rule, preds map[string]Predicate) *Corpus {
	c := &Corpus{
		Version:    version,
		byID:       map[string]int{},
		byClass:    map[string][]int{},
		predicates: preds,
	}
	if c.predicates == nil {
		c.predicates = map[string]Predicate{}
	}
	for _, r := range rules {
		c.rules = append(c.rules, r)
		c.byID[strings.ToUpper(r.ID)] = len(c.rules) - 1
		c.byClass[strings.ToUpper(r.Class)] = append(c.byClass[strings.ToUpper(r.Class)], len(c.rules)-1)
	}
	return c
}

// Rules returns all rules in pack order.
func (c *Corpus) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Get returns a rule by id.
func (c *Corpus) Get(id string) (Rule, bool) {
	idx, ok := c.byID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Rule{}, false
	}
	return c.rules[idx], true
}

// ForLanguage returns the rules applicable to units of the given
// language, in pack order.
func (c *Corpus) ForLanguage(language string) []Rule {
	var out []Rule
	for _, r := range c.rules {
		if r.AppliesTo(language) {
			out = append(out, r)
		}
	}
	return out
}

// ByClass returns the rules of one class (A or B), in pack order.
func (c *Corpus) ByClass(class string) []Rule {
	var out []Rule
	for _, idx := range c.byClass[strings.ToUpper(class)] {
		out = append(out, c.rules[idx])
	}
	return out
}

// Predicate returns a corpus-supplied predicate by name.
func (c *Corpus) Predicate(name string) (Predicate, bool) {
	p, ok := c.predicates[name]
	return p, ok
}

// Classes returns the distinct classes used by any rule, sorted.
func (c *Corpus) Classes() []string {
	out := make([]string, 0, len(c.byClass))
	for cl := range c.byClass {
		out = append(out, cl)
	}
	sort.Strings(out)
	return out
}

// Categories returns the distinct categories used by any rule, sorted.
func (c *Corpus) Categories() []string {
	seen := map[string]struct{}{}
	for _, r := range c.rules {
		seen[r.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of rules.
func (c *Corpus) Len() int { return len(c.rules) }
