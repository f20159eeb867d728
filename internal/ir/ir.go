package ir

import "time"

const Version = "1.0"

// LineKind classifies one diff line inside a ChangeUnit.
type LineKind string

const (
	LineAdded   LineKind = "added"
	LineRemoved LineKind = "removed"
	LineContext LineKind = "context"
)

// Line is one (line number, content) tuple of a hunk. Number is the
// post-image line number for added/context lines and 0 for removed lines.
type Line struct {
	Number  int      `json:"number"`
	Content string   `json:"content"`
	Kind    LineKind `json:"kind"`
}

// ChangeUnit is one contiguous hunk of a changed file. Units are created
// by the segmenter, immutable afterwards, and scan-local.
type ChangeUnit struct {
	File     string `json:"file"`
	Language string `json:"language"` // "unknown" when undetected
	Index    int    `json:"index"`    // position in the segmented stream
	Scope    string `json:"scope,omitempty"`
	Lines    []Line `json:"lines"`
}

// StartLine returns the first post-image line number of the unit.
func (u *ChangeUnit) StartLine() int {
	for _, l := range u.Lines {
		if l.Number > 0 {
			return l.Number
		}
	}
	return 0
}

// EndLine returns the last post-image line number of the unit.
func (u *ChangeUnit) EndLine() int {
	end := 0
	for _, l := range u.Lines {
		if l.Number > end {
			end = l.Number
		}
	}
	return end
}

// Suppression states of a Finding.
const (
	StateActive     = "active"
	StateSuppressed = "suppressed"
)

// Blocking levels a resolved finding can carry.
const (
	LevelBlocking = "blocking"
	LevelAdvisory = "advisory"
)

// Finding is one rule match on one ChangeUnit.
type Finding struct {
	ID        string `json:"id"`
	RuleID    string `json:"rule_id"`
	Class     string `json:"class"`    // A|B
	Category  string `json:"category"` // corpus sub-category
	File      string `json:"file"`
	UnitIndex int    `json:"unit_index"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Message   string `json:"message"`
	Evidence  string `json:"evidence,omitempty"`

	Slots      map[string]string `json:"slots,omitempty"`
	Confidence float64           `json:"confidence"`

	State         string `json:"state"` // active|suppressed
	ExemptionID   string `json:"exemption_id,omitempty"`
	Justification string `json:"justification,omitempty"`

	Level      string      `json:"level,omitempty"` // blocking|advisory, set by policy
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Exemption is an in-diff acceptance marker. Exemptions live only for the
// scan that parsed them; re-added code must carry the marker again.
type Exemption struct {
	ID            string `json:"id"`
	RuleID        string `json:"rule_id"`
	File          string `json:"file"`
	Line          int    `json:"line"`
	Justification string `json:"justification"`
}

// Suggestion is a rendered auto-fix for a suggestion-capable finding.
type Suggestion struct {
	RuleID    string `json:"rule_id"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Patch     string `json:"patch"`
	AutoApply bool   `json:"auto_apply"`
}

// Diagnostic kinds surfaced alongside a GateDecision.
const (
	DiagRuleError       = "rule-error"
	DiagUnusedExemption = "unused-exemption"
)

// Diagnostic is a non-fatal problem observed during a scan.
type Diagnostic struct {
	Kind   string `json:"kind"`
	RuleID string `json:"rule_id,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Detail string `json:"detail"`
}

// GateDecision is the scan's terminal, externally consumed artifact.
// It is produced exactly once per scan and never mutated afterwards.
type GateDecision struct {
	ScanID        string    `json:"scan_id"`
	CreatedAt     time.Time `json:"created_at"`
	Source        string    `json:"source,omitempty"`
	EngineVersion string    `json:"engine_version,omitempty"`
	CorpusVersion string    `json:"corpus_version,omitempty"`

	Blocked     bool         `json:"blocked"`
	Findings    []Finding    `json:"findings"`   // active, resolved, sorted
	Suppressed  []Finding    `json:"suppressed"` // with justifications, sorted
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	Units        int `json:"units"`
	FilesChanged int `json:"files_changed"`
}
