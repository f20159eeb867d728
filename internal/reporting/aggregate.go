// Package reporting merges per-unit scan outputs into the one externally
// consumed artifact, the GateDecision. No upstream component may emit it;
// everything before this point is scan-local state.
package reporting

import (
	"sort"
	"time"

	"github.com/codewithboateng/riskgate/internal/ir"
)

// Input collects everything a finished scan produced.
type Input struct {
	ScanID        string
	Source        string
	CorpusVersion string
	StartedAt     time.Time

	Units       []ir.ChangeUnit
	Findings    []ir.Finding // resolved, active and suppressed mixed
	Suggestions []ir.Suggestion
	Diagnostics []ir.Diagnostic
	Blocked     bool
}

// Aggregate builds the GateDecision in the deterministic order the gate
// contract requires: findings by (file, start line, rule id). Two scans
// over byte-identical inputs yield byte-identical decisions.
func Aggregate(in Input) *ir.GateDecision {
	d := &ir.GateDecision{
		ScanID:        in.ScanID,
		CreatedAt:     in.StartedAt,
		Source:        in.Source,
		EngineVersion: ir.Version,
		CorpusVersion: in.CorpusVersion,
		Blocked:       in.Blocked,
		Units:         len(in.Units),
	}

	files := map[string]struct{}{}
	for _, u := range in.Units {
		files[u.File] = struct{}{}
	}
	d.FilesChanged = len(files)

	for _, f := range in.Findings {
		if f.State == ir.StateSuppressed {
			d.Suppressed = append(d.Suppressed, f)
		} else {
			d.Findings = append(d.Findings, f)
		}
	}
	sortFindings(d.Findings)
	sortFindings(d.Suppressed)
	if d.Findings == nil {
		d.Findings = []ir.Finding{}
	}
	if d.Suppressed == nil {
		d.Suppressed = []ir.Finding{}
	}

	d.Suggestions = append(d.Suggestions, in.Suggestions...)
	sort.Slice(d.Suggestions, func(i, j int) bool {
		a, b := d.Suggestions[i], d.Suggestions[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
	})

	d.Diagnostics = append(d.Diagnostics, in.Diagnostics...)
	sort.Slice(d.Diagnostics, func(i, j int) bool {
		a, b := d.Diagnostics[i], d.Diagnostics[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
	})

	return d
}

func sortFindings(fs []ir.Finding) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.RuleID < b.RuleID
	})
}
