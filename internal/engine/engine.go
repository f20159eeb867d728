// Package engine wires the scan pipeline: segment the diff, run the
// detectors, resolve exemptions, apply policy, render suggestions and
// aggregate the GateDecision.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/detect"
	"github.com/codewithboateng/riskgate/internal/diffseg"
	"github.com/codewithboateng/riskgate/internal/exempt"
	"github.com/codewithboateng/riskgate/internal/ir"
	"github.com/codewithboateng/riskgate/internal/policy"
	"github.com/codewithboateng/riskgate/internal/reporting"
	"github.com/codewithboateng/riskgate/internal/suggest"
)

// Request carries one scan's inputs. The corpus snapshot is pinned by the
// caller; the engine never touches the live store mid-scan.
type Request struct {
	ScanID   string    // empty = generate
	Source   string
	Now      time.Time // zero = wall clock; fix it for reproducible output
	DiffText string

	Snapshot *corpus.Corpus
	Policy   *policy.Config
	Detector detect.Options
}

// Scan runs the whole pipeline. Fatal inputs (unparsable diff, incomplete
// policy mapping) return a nil decision and the error; isolated rule
// failures land in the decision's diagnostics instead. On cancellation the
// partial state is discarded and no decision is emitted, since a partial
// decision must never be mistaken for a complete one.
func Scan(ctx context.Context, req Request) (*ir.GateDecision, error) {
	if err := req.Policy.Validate(req.Snapshot); err != nil {
		return nil, err
	}

	units, err := diffseg.Segment(req.DiffText)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eng := detect.NewEngine(req.Detector)
	raw, err := eng.Evaluate(ctx, req.Snapshot, units)
	if err != nil {
		return nil, err
	}

	exemptions := exempt.Parse(units)
	findings, exemptDiags := exempt.Resolve(raw.Findings, exemptions)

	resolved, blocked, err := policy.Resolve(findings, units, req.Snapshot, req.Policy)
	if err != nil {
		return nil, err
	}

	suggestions := suggest.Render(resolved, req.Snapshot, req.Policy)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanID := req.ScanID
	if scanID == "" {
		scanID = "scan-" + uuid.NewString()
	}
	started := req.Now
	if started.IsZero() {
		started = time.Now()
	}
	return reporting.Aggregate(reporting.Input{
		ScanID:        scanID,
		Source:        req.Source,
		CorpusVersion: req.Snapshot.Version,
		StartedAt:     started.UTC(),
		Units:         units,
		Findings:      resolved,
		Suggestions:   suggestions,
		Diagnostics:   append(raw.Diagnostics, exemptDiags...),
		Blocked:       blocked,
	}), nil
}
