package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/diffseg"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/policy"
)

const testPack = `
version: "test"
rules:
  - id: A5
    class: A
    category: error-handling
    message: bare except swallows every error
    languages: [python]
    blocking: always
    matchers:
      - kind: regex
        pattern: 'except\s*:'
  - id: B1
    class: B
    category: magic-number
    message: name the constant
    blocking: never
    matchers:
      - kind: regex
        pattern: '(?P<name>[A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?P<value>[0-9]{3,})\b'
    suggestion:
      template: "const {{name}}Default = {{value}}"
`

func testPolicy() *policy.Config {
	return &policy.Config{
		Classes: map[string]policy.Entry{
			"A": {Level: ir.LevelBlocking},
			"B": {Level: ir.LevelAdvisory},
		},
		Categories: map[string]policy.Entry{
			"error-handling": {Level: ir.LevelBlocking},
			"magic-number":   {Level: ir.LevelAdvisory, AutoApply: true},
		},
	}
}

func mustLoad(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Load([]byte(testPack))
	require.NoError(t, err)
	return c
}

func request(t *testing.T, diff string) Request {
	return Request{
		ScanID:   "scan-test",
		Source:   "unit-test",
		Now:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		DiffText: diff,
		Snapshot: mustLoad(t),
		Policy:   testPolicy(),
		Detector: detect.DefaultOptions(),
	}
}

func pyDiff(bodyLines ...string) string {
	var sb strings.Builder
	sb.WriteString("--- a/svc/worker.py\n+++ b/svc/worker.py\n")
	fmt.Fprintf(&sb, "@@ -1,1 +1,%d @@\n", 1+len(bodyLines))
	sb.WriteString(" import os\n")
	for _, l := range bodyLines {
		sb.WriteString("+" + l + "\n")
	}
	return sb.String()
}

func TestScan_AdvisoryWithSuggestion(t *testing.T) {
	d, err := Scan(context.Background(), request(t, pyDiff("timeout = 30000")))
	require.NoError(t, err)

	assert.False(t, d.Blocked)
	require.Len(t, d.Findings, 1)
	f := d.Findings[0]
	assert.Equal(t, "B1", f.RuleID)
	assert.Equal(t, ir.StateActive, f.State)
	assert.Equal(t, ir.LevelAdvisory, f.Level)

	require.Len(t, d.Suggestions, 1)
	assert.Equal(t, "const timeoutDefault = 30000", d.Suggestions[0].Patch)
	assert.True(t, d.Suggestions[0].AutoApply)
}

func TestScan_BlockingFinding(t *testing.T) {
	d, err := Scan(context.Background(), request(t, pyDiff("try:", "    run()", "except:", "    pass")))
	require.NoError(t, err)

	assert.True(t, d.Blocked)
	require.Len(t, d.Findings, 1)
	assert.Equal(t, "A5", d.Findings[0].RuleID)
	assert.Equal(t, ir.LevelBlocking, d.Findings[0].Level)
	assert.Empty(t, d.Suppressed)
}

func TestScan_ExemptionUnblocks(t *testing.T) {
	d, err := Scan(context.Background(), request(t, pyDiff(
		"try:",
		"    run()",
		"# RISK-ACCEPT A5: legacy shim, removal tracked in OPS-991",
		"except:",
		"    pass",
	)))
	require.NoError(t, err)

	assert.False(t, d.Blocked)
	assert.Empty(t, d.Findings)
	require.Len(t, d.Suppressed, 1)
	s := d.Suppressed[0]
	assert.Equal(t, "A5", s.RuleID)
	assert.Equal(t, ir.StateSuppressed, s.State)
	assert.Equal(t, "legacy shim, removal tracked in OPS-991", s.Justification)
	assert.Empty(t, d.Diagnostics, "used exemption raises no diagnostic")
}

func TestScan_UnusedExemptionSurfaces(t *testing.T) {
	d, err := Scan(context.Background(), request(t, pyDiff(
		"# RISK-ACCEPT A5: nothing here actually trips A5",
		"x = 1",
	)))
	require.NoError(t, err)

	assert.False(t, d.Blocked)
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, ir.DiagUnusedExemption, d.Diagnostics[0].Kind)
	assert.Equal(t, "A5", d.Diagnostics[0].RuleID)
}

func TestScan_MalformedDiffNoDecision(t *testing.T) {
	many := strings.Builder{}
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&many, "--- a/f%d.py\n+++ b/f%d.py\n@@ -1,1 +1,2 @@\n import os\n+x = 1\n", i, i)
	}
	many.WriteString("--- a/bad.py\n+++ b/bad.py\n@@ -1,9 +1,9 @@\n truncated\n")

	d, err := Scan(context.Background(), request(t, many.String()))
	require.Error(t, err)
	assert.Nil(t, d, "one malformed hunk fails the whole scan")
	var dpe *diffseg.DiffParseError
	assert.ErrorAs(t, err, &dpe)
}

func TestScan_IncompletePolicyFailsFast(t *testing.T) {
	req := request(t, pyDiff("x = 1"))
	delete(req.Policy.Categories, "magic-number")

	d, err := Scan(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, d)
	var ce *policy.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestScan_RemovedLinesNeverTrigger(t *testing.T) {
	diff := "--- a/svc/worker.py\n+++ b/svc/worker.py\n" +
		"@@ -1,3 +1,1 @@\n import os\n-except:\n-timeout = 30000\n"
	d, err := Scan(context.Background(), request(t, diff))
	require.NoError(t, err)
	assert.Empty(t, d.Findings)
	assert.False(t, d.Blocked)
}

func TestScan_ByteIdenticalDeterminism(t *testing.T) {
	diff := pyDiff("timeout = 30000", "retries = 500", "except:")
	req := request(t, diff)

	d1, err := Scan(context.Background(), req)
	require.NoError(t, err)
	d2, err := Scan(context.Background(), req)
	require.NoError(t, err)

	b1, err := json.Marshal(d1)
	require.NoError(t, err)
	b2, err := json.Marshal(d2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestScan_GeneratesScanIDAndClock(t *testing.T) {
	req := request(t, pyDiff("x = 1"))
	req.ScanID = ""
	req.Now = time.Time{}

	d, err := Scan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.ScanID, "scan-"))
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, d.CreatedAt.Location())
}

func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, err := Scan(ctx, request(t, pyDiff("x = 1")))
	require.Error(t, err)
	assert.Nil(t, d)
}
