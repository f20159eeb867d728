// Package diffseg turns unified diff text into the ordered ChangeUnit
// stream the detector engine consumes. Segmentation is all-or-nothing:
// a malformed hunk fails the whole diff so a partial scan is never
// reported as complete.
package diffseg

import (
	"fmt"
	"path"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/codewithboateng/riskgate/internal/ir"
)

// DiffParseError means the diff could not be segmented. The scan aborts
// with no GateDecision.
type DiffParseError struct {
	File   string
	Detail string
}

func (e *DiffParseError) Error() string {
	if e.File == "" {
		return "diff parse: " + e.Detail
	}
	return fmt.Sprintf("diff parse: %s: %s", e.File, e.Detail)
}

var langByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".kt":   "kotlin",
	".sh":   "shell",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
}

// DetectLanguage maps a file path to a language tag, or "unknown".
func DetectLanguage(file string) string {
	if l, ok := langByExt[strings.ToLower(path.Ext(file))]; ok {
		return l
	}
	return "unknown"
}

// Segment parses a unified diff into ChangeUnits, one per hunk, preserving
// file order and hunk order within each file.
func Segment(diffText string) ([]ir.ChangeUnit, error) {
	if strings.TrimSpace(diffText) == "" {
		return nil, &DiffParseError{Detail: "empty diff"}
	}
	fds, err := diff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, &DiffParseError{Detail: err.Error()}
	}
	if len(fds) == 0 {
		return nil, &DiffParseError{Detail: "no file diffs found"}
	}

	var units []ir.ChangeUnit
	for _, fd := range fds {
		file := cleanName(fd.NewName)
		if file == "" {
			file = cleanName(fd.OrigName)
		}
		if file == "" {
			return nil, &DiffParseError{Detail: "file diff with no usable name"}
		}
		lang := DetectLanguage(file)
		for _, h := range fd.Hunks {
			u, err := segmentHunk(file, lang, len(units), h)
			if err != nil {
				return nil, err
			}
			units = append(units, u)
		}
	}
	return units, nil
}

func segmentHunk(file, lang string, index int, h *diff.Hunk) (ir.ChangeUnit, error) {
	if h.NewStartLine <= 0 && h.NewLines > 0 {
		return ir.ChangeUnit{}, &DiffParseError{File: file, Detail: fmt.Sprintf("bad hunk header @@ -%d,%d +%d,%d @@", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)}
	}
	u := ir.ChangeUnit{
		File:     file,
		Language: lang,
		Index:    index,
		Scope:    strings.TrimSpace(h.Section),
	}

	newLine := int(h.NewStartLine)
	var added, removed, context int
	body := strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n")
	for _, raw := range body {
		if raw == "" && len(body) == 1 {
			break
		}
		if strings.HasPrefix(raw, `\`) {
			continue // "\ No newline at end of file"
		}
		if raw == "" {
			// Some producers emit bare empty context lines.
			u.Lines = append(u.Lines, ir.Line{Number: newLine, Content: "", Kind: ir.LineContext})
			newLine++
			context++
			continue
		}
		content := raw[1:]
		switch raw[0] {
		case '+':
			u.Lines = append(u.Lines, ir.Line{Number: newLine, Content: content, Kind: ir.LineAdded})
			newLine++
			added++
		case '-':
			u.Lines = append(u.Lines, ir.Line{Number: 0, Content: content, Kind: ir.LineRemoved})
			removed++
		case ' ':
			u.Lines = append(u.Lines, ir.Line{Number: newLine, Content: content, Kind: ir.LineContext})
			newLine++
			context++
		default:
			return ir.ChangeUnit{}, &DiffParseError{File: file, Detail: fmt.Sprintf("unexpected hunk line prefix %q", raw[0])}
		}
	}

	// The header's line counts must match the body or the hunk is truncated.
	if got, want := added+context, int(h.NewLines); got != want {
		return ir.ChangeUnit{}, &DiffParseError{File: file, Detail: fmt.Sprintf("truncated hunk: header claims %d new-side lines, body has %d", want, got)}
	}
	if got, want := removed+context, int(h.OrigLines); got != want {
		return ir.ChangeUnit{}, &DiffParseError{File: file, Detail: fmt.Sprintf("truncated hunk: header claims %d old-side lines, body has %d", want, got)}
	}
	return u, nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "/dev/null" {
		return ""
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}
