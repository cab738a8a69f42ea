package pipeline

import "regexp"

// Redactor applies optional regexp-based line redaction to raw input before
// it reaches the chunker, gated off by default so the chunker's byte-exact
// partition of stdin is preserved unless the operator opts in.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles patterns once at construction time. A nil or empty
// Redactor (as returned when patterns is empty) is a no-op.
func NewRedactor(patterns []string) (*Redactor, error) {
	if len(patterns) == 0 {
		return &Redactor{}, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &Redactor{patterns: compiled}, nil
}

// Apply replaces every match of every configured pattern with "[REDACTED]",
// line by line so a pattern anchored with ^/$ behaves as an operator would
// expect from a single log line.
func (r *Redactor) Apply(text string) string {
	if r == nil || len(r.patterns) == 0 {
		return text
	}
	lines := splitLines(text)
	for i, line := range lines {
		for _, re := range r.patterns {
			line = re.ReplaceAllString(line, "[REDACTED]")
		}
		lines[i] = line
	}
	return joinLines(lines)
}
