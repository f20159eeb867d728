package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/ir"
)

// Structural predicates work on the unit's line view with a bounded
// look-ahead window, keeping cost linear in diff size rather than file
// size. They are deliberately token-level heuristics, not parsers.

var (
	ifRe     = regexp.MustCompile(`(^|[^a-zA-Z0-9_])if[\s(]`)
	elseRe   = regexp.MustCompile(`(^|[^a-zA-Z0-9_])(else|elif|default)([^a-zA-Z0-9_]|$)`)
	switchRe = regexp.MustCompile(`(^|[^a-zA-Z0-9_])(switch|match)[\s({]`)
	defRe    = regexp.MustCompile(`(^|[^a-zA-Z0-9_])(default|case\s+_)\s*:`)
	// an assignment that throws away every returned value of a call
	discardRe = regexp.MustCompile(`^\s*_\s*(,\s*_\s*)*=\s*\w[\w.]*\(`)
)

func evalStructural(m corpus.Matcher, u *ir.ChangeUnit) ([]ir.Line, error) {
	switch m.Predicate {
	case corpus.StructIfWithoutElse:
		return withoutFollower(u, m.Window, ifRe, elseRe), nil
	case corpus.StructSwitchWithoutDefault:
		return withoutFollower(u, m.Window, switchRe, defRe), nil
	case corpus.StructUncheckedErrorReturn:
		var hits []ir.Line
		for _, l := range u.Lines {
			if l.Kind == ir.LineAdded && discardRe.MatchString(l.Content) {
				hits = append(hits, l)
			}
		}
		return hits, nil
	default:
		return nil, fmt.Errorf("unknown structural predicate %q", m.Predicate)
	}
}

// withoutFollower flags added lines matching open when no line matching
// follower appears within the window, bounded by the end of the current
// scope (a dedent past the opening line).
func withoutFollower(u *ir.ChangeUnit, window int, open, follower *regexp.Regexp) []ir.Line {
	var hits []ir.Line
	for i, l := range u.Lines {
		if l.Kind != ir.LineAdded || !open.MatchString(stripLineComment(l.Content)) {
			continue
		}
		base := indentOf(l.Content)
		found := false
		for j := i + 1; j < len(u.Lines) && j <= i+window; j++ {
			next := u.Lines[j]
			if next.Kind == ir.LineRemoved {
				continue
			}
			txt := stripLineComment(next.Content)
			if strings.TrimSpace(txt) == "" {
				continue
			}
			if follower.MatchString(txt) {
				found = true
				break
			}
			// Left the opening line's scope: stop looking.
			if indentOf(next.Content) < base {
				break
			}
		}
		if !found {
			hits = append(hits, l)
		}
	}
	return hits
}

func indentOf(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func stripLineComment(s string) string {
	for _, marker := range []string{"//", "#"} {
		if i := strings.Index(s, marker); i >= 0 {
			s = s[:i]
		}
	}
	return s
}
