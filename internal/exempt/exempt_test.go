package exempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/riskgate/internal/ir"
)

func TestParse(t *testing.T) {
	units := []ir.ChangeUnit{
		{
			File: "pay/ledger.go",
			Lines: []ir.Line{
				{Number: 10, Content: "// RISK-ACCEPT B1: threshold agreed with SRE, see INFRA-204", Kind: ir.LineAdded},
				{Number: 11, Content: "limit := 100000", Kind: ir.LineAdded},
				{Number: 0, Content: "# RISK-ACCEPT A2: deleted marker must not count", Kind: ir.LineRemoved},
				{Number: 12, Content: "# RISK-ACCEPT a5 bare colon optional", Kind: ir.LineContext},
				{Number: 13, Content: "nothing here", Kind: ir.LineContext},
			},
		},
	}
	exs := Parse(units)
	require.Len(t, exs, 2, "removed-line markers are ignored")

	assert.Equal(t, "pay/ledger.go:10", exs[0].ID)
	assert.Equal(t, "B1", exs[0].RuleID)
	assert.Equal(t, "threshold agreed with SRE, see INFRA-204", exs[0].Justification)

	assert.Equal(t, "A5", exs[1].RuleID, "rule id is upper-cased")
	assert.Equal(t, 12, exs[1].Line)
}

func finding(rule, file string, start, end int) ir.Finding {
	return ir.Finding{RuleID: rule, File: file, StartLine: start, EndLine: end}
}

func TestResolve_AdjacencyWindow(t *testing.T) {
	exs := []ir.Exemption{{ID: "f.go:10", RuleID: "B1", File: "f.go", Line: 10, Justification: "ok"}}

	cases := []struct {
		name       string
		f          ir.Finding
		suppressed bool
	}{
		{"marker on the finding line", finding("B1", "f.go", 10, 10), true},
		{"marker one line above", finding("B1", "f.go", 11, 11), true},
		{"marker one line below", finding("B1", "f.go", 9, 9), true},
		{"inside a multi-line range", finding("B1", "f.go", 8, 12), true},
		{"two lines away", finding("B1", "f.go", 12, 12), false},
		{"different rule", finding("B2", "f.go", 10, 10), false},
		{"different file", finding("B1", "g.go", 10, 10), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _ := Resolve([]ir.Finding{tc.f}, exs)
			require.Len(t, out, 1)
			if tc.suppressed {
				assert.Equal(t, ir.StateSuppressed, out[0].State)
				assert.Equal(t, "f.go:10", out[0].ExemptionID)
				assert.Equal(t, "ok", out[0].Justification)
			} else {
				assert.Equal(t, ir.StateActive, out[0].State)
				assert.Empty(t, out[0].ExemptionID)
			}
		})
	}
}

func TestResolve_OneExemptionManyFindings(t *testing.T) {
	exs := []ir.Exemption{{ID: "f.go:5", RuleID: "A1", File: "f.go", Line: 5}}
	fs := []ir.Finding{
		finding("A1", "f.go", 4, 4),
		finding("A1", "f.go", 5, 5),
		finding("A1", "f.go", 6, 6),
	}
	out, diags := Resolve(fs, exs)
	for _, f := range out {
		assert.Equal(t, ir.StateSuppressed, f.State)
	}
	assert.Empty(t, diags)
}

func TestResolve_CaseInsensitiveRuleMatch(t *testing.T) {
	exs := []ir.Exemption{{ID: "f.go:5", RuleID: "B1", File: "f.go", Line: 5}}
	out, _ := Resolve([]ir.Finding{finding("b1", "f.go", 5, 5)}, exs)
	assert.Equal(t, ir.StateSuppressed, out[0].State)
}

func TestResolve_UnusedExemptionDiagnostic(t *testing.T) {
	exs := []ir.Exemption{
		{ID: "f.go:5", RuleID: "B1", File: "f.go", Line: 5, Justification: "stale"},
		{ID: "f.go:20", RuleID: "A1", File: "f.go", Line: 20},
	}
	out, diags := Resolve([]ir.Finding{finding("A1", "f.go", 20, 20)}, exs)
	assert.Equal(t, ir.StateSuppressed, out[0].State)

	require.Len(t, diags, 1)
	assert.Equal(t, ir.DiagUnusedExemption, diags[0].Kind)
	assert.Equal(t, "B1", diags[0].RuleID)
	assert.Equal(t, 5, diags[0].Line)
}

func TestResolve_NoExemptions(t *testing.T) {
	out, diags := Resolve([]ir.Finding{finding("A1", "f.go", 1, 1)}, nil)
	assert.Equal(t, ir.StateActive, out[0].State)
	assert.Empty(t, diags)
}
