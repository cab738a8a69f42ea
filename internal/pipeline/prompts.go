package pipeline

import "strings"

// renderPrompt performs literal, single-shot {SYS_PROMPT}/{TEXT} placeholder
// substitution: the first occurrence of each placeholder in the template is
// replaced, and placeholders inside the substituted values are left as they
// are. The ChatML templates use single-brace placeholders, not Go's
// text/template syntax, so plain string operations are the right tool here.
func renderPrompt(template, sysPrompt, text string) string {
	textAt := strings.Index(template, "{TEXT}")
	if textAt < 0 {
		return strings.Replace(template, "{SYS_PROMPT}", sysPrompt, 1)
	}
	before, after := template[:textAt], template[textAt+len("{TEXT}"):]
	if strings.Contains(before, "{SYS_PROMPT}") {
		before = strings.Replace(before, "{SYS_PROMPT}", sysPrompt, 1)
	} else {
		after = strings.Replace(after, "{SYS_PROMPT}", sysPrompt, 1)
	}
	return before + text + after
}

// renderMetaPrompt substitutes only {TEXT}; the meta-prompt template carries
// no system-prompt placeholder.
func renderMetaPrompt(template, text string) string {
	return strings.Replace(template, "{TEXT}", text, 1)
}
