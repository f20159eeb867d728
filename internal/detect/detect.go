// Package detect runs the applicable corpus subset over each ChangeUnit
// and emits raw findings. Matching only ever triggers on added lines; a
// risk pattern being deleted is not a new risk.
package detect

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codewithboateng/riskgate/internal/corpus"
	"github.com/codewithboateng/riskgate/internal/ir"
)

// Options tune the engine without changing what is detected.
type Options struct {
	// Workers bounds parallel unit evaluation. <=0 means serial.
	Workers int
	// CommentConfidence annotates matches found inside comments or string
	// literals. It never filters a finding; that is a policy decision.
	CommentConfidence float64
}

// DefaultOptions mirror the shipped config defaults.
func DefaultOptions() Options {
	return Options{Workers: 4, CommentConfidence: 0.5}
}

// Result is the raw outcome of evaluating units against a corpus snapshot.
type Result struct {
	Findings    []ir.Finding
	Diagnostics []ir.Diagnostic
}

// Engine evaluates ChangeUnits against an immutable corpus snapshot.
// The snapshot is read-only, so units can run in parallel with no locking.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.CommentConfidence <= 0 || opts.CommentConfidence > 1 {
		opts.CommentConfidence = 0.5
	}
	return &Engine{opts: opts}
}

// Evaluate runs every applicable rule over every unit. A matcher failing on
// one unit becomes a rule-error diagnostic; it never aborts the scan or
// hides other rules' findings. On cancellation the partial result is
// discarded and ctx.Err() returned.
func (e *Engine) Evaluate(ctx context.Context, snap *corpus.Corpus, units []ir.ChangeUnit) (*Result, error) {
	perUnit := make([]Result, len(units))

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Workers > 1 {
		g.SetLimit(e.opts.Workers)
	} else {
		g.SetLimit(1)
	}
	for i := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perUnit[i] = e.evaluateUnit(snap, &units[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Merge in unit order; the aggregator imposes the final ordering.
	out := &Result{}
	for _, r := range perUnit {
		out.Findings = append(out.Findings, r.Findings...)
		out.Diagnostics = append(out.Diagnostics, r.Diagnostics...)
	}
	return out, nil
}

func (e *Engine) evaluateUnit(snap *corpus.Corpus, u *ir.ChangeUnit) Result {
	var res Result
	for _, rule := range snap.ForLanguage(u.Language) {
		fs, err := e.evalRule(rule, u)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, ir.Diagnostic{
				Kind:   ir.DiagRuleError,
				RuleID: rule.ID,
				File:   u.File,
				Line:   u.StartLine(),
				Detail: err.Error(),
			})
			continue
		}
		res.Findings = append(res.Findings, fs...)
	}
	return res
}

// evalRule isolates one rule: a panic inside a matcher is converted to an
// error so the remaining rules and units still run.
func (e *Engine) evalRule(rule corpus.Rule, u *ir.ChangeUnit) (fs []ir.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			fs = nil
			err = fmt.Errorf("matcher panic: %v", r)
		}
	}()

	// One finding per (rule, line); matchers hitting the same line merge
	// their captured slots.
	byLine := map[int]int{}
	add := func(line ir.Line, evidence string, conf float64, slots map[string]string) {
		if idx, ok := byLine[line.Number]; ok {
			for k, v := range slots {
				if _, dup := fs[idx].Slots[k]; !dup {
					fs[idx].Slots[k] = v
				}
			}
			if conf < fs[idx].Confidence {
				fs[idx].Confidence = conf
			}
			return
		}
		f := ir.Finding{
			RuleID:     rule.ID,
			Class:      rule.Class,
			Category:   rule.Category,
			File:       u.File,
			UnitIndex:  u.Index,
			StartLine:  line.Number,
			EndLine:    line.Number,
			Message:    rule.Message,
			Evidence:   truncate(strings.TrimSpace(evidence), 120),
			Slots:      slots,
			Confidence: conf,
			State:      ir.StateActive,
		}
		f.ID = findingID(f)
		byLine[line.Number] = len(fs)
		fs = append(fs, f)
	}

	for _, m := range rule.Matchers {
		switch m.Kind {
		case corpus.KindLiteral:
			for _, line := range u.Lines {
				if line.Kind != ir.LineAdded {
					continue
				}
				col := strings.Index(line.Content, m.Pattern)
				if col < 0 {
					continue
				}
				conf := e.confidenceAt(line.Content, col)
				add(line, line.Content, conf, map[string]string{"match": m.Pattern})
			}
		case corpus.KindRegex:
			for _, line := range u.Lines {
				if line.Kind != ir.LineAdded {
					continue
				}
				loc := m.Regex.FindStringSubmatchIndex(line.Content)
				if loc == nil {
					continue
				}
				slots := map[string]string{"match": line.Content[loc[0]:loc[1]]}
				for gi, name := range m.Regex.SubexpNames() {
					if name == "" || loc[2*gi] < 0 {
						continue
					}
					slots[name] = line.Content[loc[2*gi]:loc[2*gi+1]]
				}
				conf := e.confidenceAt(line.Content, loc[0])
				add(line, line.Content, conf, slots)
			}
		case corpus.KindStructural:
			hits, serr := evalStructural(m, u)
			if serr != nil {
				return nil, serr
			}
			for _, line := range hits {
				add(line, line.Content, 1.0, map[string]string{"match": strings.TrimSpace(line.Content)})
			}
		default:
			return nil, fmt.Errorf("unknown matcher kind %q", m.Kind)
		}
	}

	sort.Slice(fs, func(i, j int) bool { return fs[i].StartLine < fs[j].StartLine })
	return fs, nil
}

func (e *Engine) confidenceAt(line string, col int) float64 {
	if inCommentOrString(line, col) {
		return e.opts.CommentConfidence
	}
	return 1.0
}

// findingID is stable across runs for identical inputs, so byte-identical
// scans yield byte-identical decisions.
func findingID(f ir.Finding) string {
	data := fmt.Sprintf("%s|%s|%d|%s", f.RuleID, f.File, f.StartLine, f.Evidence)
	return fmt.Sprintf("%s-%08x", f.RuleID, crc32.ChecksumIEEE([]byte(data)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
