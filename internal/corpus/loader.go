package corpus

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Structural predicate names the detector engine implements. The loader
// rejects any structural matcher naming something else.
const (
	StructIfWithoutElse        = "if_without_else"
	StructSwitchWithoutDefault = "switch_without_default"
	StructUncheckedErrorReturn = "unchecked_error_return"
)

var structuralPredicates = map[string]bool{
	StructIfWithoutElse:        true,
	StructSwitchWithoutDefault: true,
	StructUncheckedErrorReturn: true,
}

// RuleCorpusError means the rule pack is invalid. Loading is all-or-nothing:
// one bad rule rejects the whole pack so a scan never silently runs with a
// subset of intended rules.
type RuleCorpusError struct {
	RuleID string
	Detail string
}

func (e *RuleCorpusError) Error() string {
	if e.RuleID == "" {
		return "rule corpus: " + e.Detail
	}
	return fmt.Sprintf("rule corpus: rule %s: %s", e.RuleID, e.Detail)
}

type dslPack struct {
	Version    string             `yaml:"version"`
	Predicates map[string]dslPred `yaml:"predicates"`
	Rules      []dslRule          `yaml:"rules"`
}

type dslPred struct {
	Kind    string   `yaml:"kind"`    // path_glob|type_name|test_sibling
	Globs   []string `yaml:"globs"`   // path_glob
	Pattern string   `yaml:"pattern"` // type_name regex
}

type dslRule struct {
	ID        string       `yaml:"id"`
	Class     string       `yaml:"class"`    // A|B
	Category  string       `yaml:"category"` // e.g. "magic-number"
	Summary   string       `yaml:"summary"`
	Message   string       `yaml:"message"`
	Languages []string     `yaml:"languages"` // empty = any
	Matchers  []dslMatcher `yaml:"matchers"`
	Blocking  string       `yaml:"blocking"` // always|never|conditional:<pred>
	Suggest   *dslSuggest  `yaml:"suggestion"`
}

type dslMatcher struct {
	Kind      string `yaml:"kind"`
	Pattern   string `yaml:"pattern"`
	Predicate string `yaml:"predicate"`
	Window    int    `yaml:"window"`
}

type dslSuggest struct {
	Template string `yaml:"template"`
}

// slotRe finds {{slot}} references in suggestion templates.
var slotRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// LoadFile reads and compiles a YAML rule pack from disk.
func LoadFile(path string) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule pack: %w", err)
	}
	return Load(b)
}

// Load compiles a YAML rule pack. Any invalid rule fails the whole load
// with a *RuleCorpusError.
func Load(b []byte) (*Corpus, error) {
	var pack dslPack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return nil, &RuleCorpusError{Detail: "parse yaml: " + err.Error()}
	}
	if len(pack.Rules) == 0 {
		return nil, &RuleCorpusError{Detail: "pack defines no rules"}
	}

	preds, err := compilePredicates(pack.Predicates)
	if err != nil {
		return nil, err
	}

	c := &Corpus{
		Version:    strings.TrimSpace(pack.Version),
		byID:       map[string]int{},
		byClass:    map[string][]int{},
		predicates: preds,
	}
	for _, dr := range pack.Rules {
		r, err := compileRule(dr, preds)
		if err != nil {
			return nil, err
		}
		key := strings.ToUpper(r.ID)
		if _, dup := c.byID[key]; dup {
			return nil, &RuleCorpusError{RuleID: r.ID, Detail: "duplicate rule id"}
		}
		c.rules = append(c.rules, r)
		c.byID[key] = len(c.rules) - 1
		c.byClass[r.Class] = append(c.byClass[r.Class], len(c.rules)-1)
	}
	return c, nil
}

func compilePredicates(in map[string]dslPred) (map[string]Predicate, error) {
	out := make(map[string]Predicate, len(in))
	for name, dp := range in {
		p := Predicate{Name: name, Kind: strings.TrimSpace(dp.Kind), Globs: dp.Globs, Pattern: dp.Pattern}
		switch p.Kind {
		case PredPathGlob:
			if len(p.Globs) == 0 {
				return nil, &RuleCorpusError{Detail: fmt.Sprintf("predicate %q: path_glob needs globs", name)}
			}
		case PredTypeName:
			if p.Pattern == "" {
				return nil, &RuleCorpusError{Detail: fmt.Sprintf("predicate %q: type_name needs pattern", name)}
			}
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, &RuleCorpusError{Detail: fmt.Sprintf("predicate %q: pattern: %v", name, err)}
			}
			p.Regex = re
		case PredTestSibling:
			// no parameters
		default:
			return nil, &RuleCorpusError{Detail: fmt.Sprintf("predicate %q: unknown kind %q", name, dp.Kind)}
		}
		out[name] = p
	}
	return out, nil
}

func compileRule(dr dslRule, preds map[string]Predicate) (Rule, error) {
	r := Rule{
		ID:        strings.TrimSpace(dr.ID),
		Class:     strings.ToUpper(strings.TrimSpace(dr.Class)),
		Category:  strings.TrimSpace(dr.Category),
		Summary:   dr.Summary,
		Message:   dr.Message,
		Languages: normLangs(dr.Languages),
		Blocking:  strings.TrimSpace(dr.Blocking),
	}
	if r.ID == "" {
		return Rule{}, &RuleCorpusError{Detail: "rule with empty id"}
	}
	if r.Class != "A" && r.Class != "B" {
		return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("class must be A or B, got %q", dr.Class)}
	}
	if r.Category == "" {
		return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "missing category"}
	}
	if r.Message == "" {
		return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "missing message"}
	}
	if len(dr.Matchers) == 0 {
		return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "rule has zero matchers"}
	}

	switch {
	case r.Blocking == BlockingAlways, r.Blocking == BlockingNever:
	case strings.HasPrefix(r.Blocking, conditionalPrefix):
		name := strings.TrimPrefix(r.Blocking, conditionalPrefix)
		if _, ok := preds[name]; !ok {
			return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("blocking references undefined predicate %q", name)}
		}
	default:
		return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("blocking must be always, never or conditional:<predicate>, got %q", dr.Blocking)}
	}

	captured := map[string]bool{"match": true} // implicit whole-match slot
	for _, dm := range dr.Matchers {
		m := Matcher{Kind: strings.TrimSpace(dm.Kind), Pattern: dm.Pattern, Predicate: dm.Predicate, Window: dm.Window}
		switch m.Kind {
		case KindLiteral:
			if m.Pattern == "" {
				return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "literal matcher with empty pattern"}
			}
		case KindRegex:
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "regex matcher: " + err.Error()}
			}
			m.Regex = re
			for _, name := range re.SubexpNames() {
				if name != "" {
					captured[name] = true
				}
			}
		case KindStructural:
			if !structuralPredicates[m.Predicate] {
				return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("unknown structural predicate %q", m.Predicate)}
			}
			if m.Window <= 0 {
				m.Window = 40
			}
		default:
			return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("unknown matcher kind %q", dm.Kind)}
		}
		r.Matchers = append(r.Matchers, m)
	}

	if dr.Suggest != nil {
		if strings.TrimSpace(dr.Suggest.Template) == "" {
			return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: "suggestion with empty template"}
		}
		for _, m := range slotRe.FindAllStringSubmatch(dr.Suggest.Template, -1) {
			if !captured[m[1]] {
				return Rule{}, &RuleCorpusError{RuleID: r.ID, Detail: fmt.Sprintf("suggestion references slot %q no matcher captures", m[1])}
			}
		}
		r.Suggest = &Suggestion{Template: dr.Suggest.Template}
	}
	return r, nil
}

func normLangs(in []string) []string {
	var out []string
	for _, l := range in {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || l == "any" {
			continue
		}
		out = append(out, l)
	}
	return out
}
