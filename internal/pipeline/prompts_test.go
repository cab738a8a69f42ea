package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPrompt_SubstitutesBothPlaceholdersOnce(t *testing.T) {
	tmpl := "<|im_start|>system\n{SYS_PROMPT}<|im_end|>\n<|im_start|>user\n{TEXT}<|im_end|>"
	out := renderPrompt(tmpl, "be concise", "hello world")
	assert.Equal(t, "<|im_start|>system\nbe concise<|im_end|>\n<|im_start|>user\nhello world<|im_end|>", out)
}

func TestRenderPrompt_LiteralBraceTextUnaffected(t *testing.T) {
	// A {SYS_PROMPT} or {TEXT} occurring inside the substituted values
	// themselves must not be re-substituted: only the template's own first
	// occurrence of each placeholder is replaced.
	tmpl := "{SYS_PROMPT}::{TEXT}"
	out := renderPrompt(tmpl, "contains {TEXT} literally", "body")
	assert.Equal(t, "contains {TEXT} literally::body", out)
}

func TestRenderMetaPrompt_OnlySubstitutesText(t *testing.T) {
	tmpl := "Summarize: {TEXT}"
	out := renderMetaPrompt(tmpl, "sample content")
	assert.Equal(t, "Summarize: sample content", out)
}
