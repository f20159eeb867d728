package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/riskgate/internal/ir"
)

type diffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary diffSummary   `json:"summary"`
	New     []diffFinding `json:"new"`
	Removed []diffFinding `json:"removed"`
	Changed []diffChanged `json:"changed"`
}

type diffSummary struct {
	NewCount     int  `json:"new"`
	RemovedCount int  `json:"removed"`
	ChangedCount int  `json:"changed"`
	BaseBlocked  bool `json:"base_blocked"`
	HeadBlocked  bool `json:"head_blocked"`
}

type diffFinding struct {
	RuleID  string `json:"rule_id"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Level   string `json:"level,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
}

type diffChanged struct {
	Key     string      `json:"key"`
	Base    diffFinding `json:"base"`
	Head    diffFinding `json:"head"`
	Changed []string    `json:"fields_changed"`
}

// WriteDiffJSON compares two stored gate decisions, surfacing findings
// that appeared, disappeared, or changed level/state between scans.
func WriteDiffJSON(baseID, headID, outDir string, base, head *ir.GateDecision) (string, error) {
	path := filepath.Join(outDir, "diff_"+baseID+"__"+headID+".json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	bm := indexFindings(base)
	hm := indexFindings(head)

	var added, removed []diffFinding
	var changed []diffChanged

	for k, hf := range hm {
		bf, ok := bm[k]
		if !ok {
			added = append(added, asDiff(hf))
			continue
		}
		var fields []string
		if bf.Level != hf.Level {
			fields = append(fields, "level")
		}
		if bf.State != hf.State {
			fields = append(fields, "state")
		}
		if strings.TrimSpace(bf.Message) != strings.TrimSpace(hf.Message) {
			fields = append(fields, "message")
		}
		if len(fields) > 0 {
			changed = append(changed, diffChanged{Key: k, Base: asDiff(bf), Head: asDiff(hf), Changed: fields})
		}
	}
	for k, bf := range bm {
		if _, ok := hm[k]; !ok {
			removed = append(removed, asDiff(bf))
		}
	}

	sort.Slice(added, func(i, j int) bool { return diffLess(added[i], added[j]) })
	sort.Slice(removed, func(i, j int) bool { return diffLess(removed[i], removed[j]) })
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	payload := diffPayload{
		BaseID: baseID, HeadID: headID,
		Summary: diffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
			BaseBlocked:  base.Blocked,
			HeadBlocked:  head.Blocked,
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

func indexFindings(d *ir.GateDecision) map[string]ir.Finding {
	m := map[string]ir.Finding{}
	for _, f := range d.Findings {
		m[keyOf(f)] = f
	}
	for _, f := range d.Suppressed {
		m[keyOf(f)] = f
	}
	return m
}

// keyOf identifies a finding logically across scans: the same rule firing
// on the same evidence in the same file is the same finding even when line
// numbers drift.
func keyOf(f ir.Finding) string {
	sb := strings.Builder{}
	sb.WriteString(strings.ToUpper(f.RuleID))
	sb.WriteByte('|')
	sb.WriteString(f.File)
	sb.WriteByte('|')
	sb.WriteString(strings.TrimSpace(f.Evidence))
	return sb.String()
}

func asDiff(f ir.Finding) diffFinding {
	return diffFinding{
		RuleID:  f.RuleID,
		File:    f.File,
		Line:    f.StartLine,
		Level:   f.Level,
		State:   f.State,
		Message: f.Message,
	}
}

func diffLess(a, b diffFinding) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.RuleID < b.RuleID
}
