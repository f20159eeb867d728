package policy

import (
	"path"
	"regexp"
	"strings"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/ir"
)

// predicateEnv carries the scan-wide context conditional predicates see:
// which files the diff touches and what names the changed lines declare.
type predicateEnv struct {
	files map[string]bool
	// declared type/scope names per file, from added lines and hunk scopes
	names map[string][]string
}

var declRe = regexp.MustCompile(`(?:type|class|struct|interface|trait|func|def)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)

func newPredicateEnv(units []ir.ChangeUnit) *predicateEnv {
	env := &predicateEnv{files: map[string]bool{}, names: map[string][]string{}}
	for _, u := range units {
		env.files[u.File] = true
		if u.Scope != "" {
			env.names[u.File] = append(env.names[u.File], u.Scope)
		}
		for _, l := range u.Lines {
			if l.Kind != ir.LineAdded {
				continue
			}
			if m := declRe.FindStringSubmatch(l.Content); m != nil {
				env.names[u.File] = append(env.names[u.File], m[1])
			}
		}
	}
	return env
}

func (env *predicateEnv) eval(p corpus.Predicate, f *ir.Finding) bool {
	switch p.Kind {
	case corpus.PredPathGlob:
		for _, g := range p.Globs {
			if matchGlob(g, f.File) {
				return true
			}
		}
		return false
	case corpus.PredTypeName:
		for _, n := range env.names[f.File] {
			if p.Regex.MatchString(n) {
				return true
			}
		}
		return false
	case corpus.PredTestSibling:
		return env.files[testSibling(f.File)]
	default:
		return false
	}
}

// matchGlob matches slash-separated paths, with ** spanning any number of
// path segments. path.Match alone stops at separators, which is the wrong
// semantics for repository-wide globs.
func matchGlob(pattern, file string) bool {
	if !strings.Contains(pattern, "**") {
		ok, err := path.Match(pattern, file)
		return err == nil && ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(file, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// testSibling returns the conventional co-located test file for a path,
// e.g. internal/pay/ledger.go -> internal/pay/ledger_test.go.
func testSibling(file string) string {
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	switch ext {
	case ".go":
		return base + "_test" + ext
	case ".py":
		dir, name := path.Split(base)
		return dir + "test_" + name + ext
	default:
		return base + ".test" + ext
	}
}
