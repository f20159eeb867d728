// Package suggest renders auto-fix patches for suggestion-capable
// findings by substituting captured slots into the rule's template.
package suggest

import (
	"regexp"
	"strings"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/policy"
)

var slotRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Render produces suggestions for active, resolved findings whose rule
// carries a template. Rendering fails closed: a required slot the matcher
// did not capture means no suggestion for that finding, never a patch
// with placeholder text left in. The finding itself is still reported.
func Render(findings []ir.Finding, snap *corpus.Corpus, cfg *policy.Config) []ir.Suggestion {
	var out []ir.Suggestion
	for _, f := range findings {
		if f.State != ir.StateActive {
			continue
		}
		rule, ok := snap.Get(f.RuleID)
		if !ok || rule.Suggest == nil {
			continue
		}
		patch, ok := fill(rule.Suggest.Template, f.Slots)
		if !ok {
			continue
		}
		out = append(out, ir.Suggestion{
			RuleID:    f.RuleID,
			File:      f.File,
			Line:      f.StartLine,
			Patch:     patch,
			AutoApply: cfg.AutoApply(f.Class, f.Category),
		})
	}
	return out
}

// fill substitutes every {{slot}} reference; missing slots abort the
// render.
func fill(template string, slots map[string]string) (string, bool) {
	complete := true
	patch := slotRe.ReplaceAllStringFunc(template, func(ref string) string {
		name := strings.Trim(ref, "{}")
		v, ok := slots[name]
		if !ok {
			complete = false
			return ref
		}
		return v
	})
	if !complete {
		return "", false
	}
	return patch, true
}
