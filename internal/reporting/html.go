package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/codewithboateng/riskgate/internal/ir"
)

func WriteHTML(scanID, outDir string, d *ir.GateDecision) (string, error) {
	path := filepath.Join(outDir, scanID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Head + styles
	fmt.Fprintf(f, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(scanID))
	fmt.Fprint(f, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace} .blocked{color:#b00020;font-weight:bold} .clean{color:#1b5e20;font-weight:bold}</style>")
	fmt.Fprint(f, "</head><body>")

	// Title + verdict
	fmt.Fprintf(f, "<h1>riskgate report – <span class='mono'>%s</span></h1>", html.EscapeString(scanID))
	if d.Blocked {
		fmt.Fprint(f, "<p class='blocked'>BLOCKED – at least one blocking finding requires human review.</p>")
	} else {
		fmt.Fprint(f, "<p class='clean'>PASS – no blocking findings.</p>")
	}
	fmt.Fprintf(f, "<p>Files: %d &nbsp; Hunks: %d &nbsp; Findings: %d &nbsp; Suppressed: %d</p>",
		d.FilesChanged, d.Units, len(d.Findings), len(d.Suppressed))
	if d.CorpusVersion != "" {
		fmt.Fprintf(f, "<p class='dim'>Corpus: %s &nbsp; Engine: %s</p>",
			html.EscapeString(d.CorpusVersion), html.EscapeString(d.EngineVersion))
	}

	// Active findings
	if len(d.Findings) > 0 {
		fmt.Fprint(f, "<h2>Findings</h2><table><tr><th>Level</th><th>Rule</th><th>File</th><th>Line</th><th>Confidence</th><th>Message</th></tr>")
		for _, fd := range d.Findings {
			fmt.Fprintf(f, "<tr><td>%s</td><td>%s</td><td class='mono'>%s</td><td>%d</td><td>%.1f</td><td>%s</td></tr>",
				html.EscapeString(fd.Level),
				html.EscapeString(fd.RuleID),
				html.EscapeString(fd.File),
				fd.StartLine,
				fd.Confidence,
				html.EscapeString(fd.Message),
			)
		}
		fmt.Fprint(f, "</table>")
	} else {
		fmt.Fprint(f, "<h2>Findings</h2><p class='dim'>No active findings.</p>")
	}

	// Suppressed, with the accepted justification for audit
	if len(d.Suppressed) > 0 {
		fmt.Fprint(f, "<h2>Suppressed</h2><table><tr><th>Rule</th><th>File</th><th>Line</th><th>Justification</th></tr>")
		for _, fd := range d.Suppressed {
			fmt.Fprintf(f, "<tr><td>%s</td><td class='mono'>%s</td><td>%d</td><td>%s</td></tr>",
				html.EscapeString(fd.RuleID),
				html.EscapeString(fd.File),
				fd.StartLine,
				html.EscapeString(fd.Justification),
			)
		}
		fmt.Fprint(f, "</table>")
	}

	// Suggestions
	if len(d.Suggestions) > 0 {
		fmt.Fprint(f, "<h2>Suggestions</h2><table><tr><th>Rule</th><th>File</th><th>Line</th><th>Auto-apply</th><th>Patch</th></tr>")
		for _, s := range d.Suggestions {
			fmt.Fprintf(f, "<tr><td>%s</td><td class='mono'>%s</td><td>%d</td><td>%v</td><td class='mono'>%s</td></tr>",
				html.EscapeString(s.RuleID),
				html.EscapeString(s.File),
				s.Line,
				s.AutoApply,
				html.EscapeString(s.Patch),
			)
		}
		fmt.Fprint(f, "</table>")
	}

	// Diagnostics
	if len(d.Diagnostics) > 0 {
		fmt.Fprint(f, "<h2>Diagnostics</h2><table><tr><th>Kind</th><th>Rule</th><th>File</th><th>Detail</th></tr>")
		for _, dg := range d.Diagnostics {
			fmt.Fprintf(f, "<tr><td>%s</td><td>%s</td><td class='mono'>%s</td><td>%s</td></tr>",
				html.EscapeString(dg.Kind),
				html.EscapeString(dg.RuleID),
				html.EscapeString(dg.File),
				html.EscapeString(dg.Detail),
			)
		}
		fmt.Fprint(f, "</table>")
	}

	fmt.Fprint(f, "</body></html>")
	return path, nil
}
