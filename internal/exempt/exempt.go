// Package exempt parses in-diff acceptance markers and partitions raw
// findings into active and suppressed. Exemptions are scan-local:
// re-added code must carry the marker again so acceptance is
// re-affirmed per change.
package exempt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codewithboateng/riskgate/internal/ir"
)

// MarkerPrefix is the fixed token an exemption line starts with, followed
// by a rule id and a free-text justification:
//
//	// RISK-ACCEPT B1: threshold agreed with SRE, see INFRA-204
const MarkerPrefix = "RISK-ACCEPT"

var markerRe = regexp.MustCompile(MarkerPrefix + `\s+([A-Za-z]+[0-9]+)\s*:?\s*(.*)$`)

// Parse extracts exemption markers from the ChangeUnit stream. Markers on
// removed lines are ignored; deleting a marker must not keep suppressing.
func Parse(units []ir.ChangeUnit) []ir.Exemption {
	var out []ir.Exemption
	for _, u := range units {
		for _, l := range u.Lines {
			if l.Kind == ir.LineRemoved {
				continue
			}
			m := markerRe.FindStringSubmatch(l.Content)
			if m == nil {
				continue
			}
			out = append(out, ir.Exemption{
				ID:            fmt.Sprintf("%s:%d", u.File, l.Number),
				RuleID:        strings.ToUpper(m[1]),
				File:          u.File,
				Line:          l.Number,
				Justification: strings.TrimSpace(m[2]),
			})
		}
	}
	return out
}

// Resolve marks each finding suppressed when an exemption with the same
// rule id overlaps or immediately precedes/follows its line range in the
// same file. One exemption may suppress many findings; exemptions that
// suppress nothing come back as unused-exemption diagnostics so stale
// acceptances surface instead of rotting silently.
func Resolve(findings []ir.Finding, exemptions []ir.Exemption) ([]ir.Finding, []ir.Diagnostic) {
	used := make([]bool, len(exemptions))
	out := make([]ir.Finding, len(findings))
	copy(out, findings)

	for i := range out {
		f := &out[i]
		for j, ex := range exemptions {
			if !strings.EqualFold(f.RuleID, ex.RuleID) || f.File != ex.File {
				continue
			}
			if ex.Line < f.StartLine-1 || ex.Line > f.EndLine+1 {
				continue
			}
			f.State = ir.StateSuppressed
			f.ExemptionID = ex.ID
			f.Justification = ex.Justification
			used[j] = true
			break
		}
		if f.State == "" {
			f.State = ir.StateActive
		}
	}

	var diags []ir.Diagnostic
	for j, ex := range exemptions {
		if used[j] {
			continue
		}
		diags = append(diags, ir.Diagnostic{
			Kind:   ir.DiagUnusedExemption,
			RuleID: ex.RuleID,
			File:   ex.File,
			Line:   ex.Line,
			Detail: fmt.Sprintf("exemption for %s matched no finding: %s", ex.RuleID, ex.Justification),
		})
	}
	return out, diags
}
