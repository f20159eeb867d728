package detect

// inCommentOrString reports whether the byte at col sits inside a line
// comment or a string literal. Keyword rules are prone to false positives
// there, so such matches are annotated with reduced confidence. This is a
// lexical approximation shared across languages; it does not track
// multi-line constructs.
func inCommentOrString(line string, col int) bool {
	if col < 0 || col >= len(line) {
		return false
	}
	var quote byte
	for i := 0; i < col; i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '/':
			if i+1 < len(line) && (line[i+1] == '/' || line[i+1] == '*') {
				return true
			}
		case '#':
			return true
		case '-':
			// SQL-style comment, but not a C-style decrement.
			if i+1 < len(line) && line[i+1] == '-' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
				return true
			}
		}
	}
	return quote != 0
}
