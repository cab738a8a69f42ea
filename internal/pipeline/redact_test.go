package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedactor_EmptyPatternsIsNoop(t *testing.T) {
	r, err := NewRedactor(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello 555-1234", r.Apply("hello 555-1234"))
}

func TestRedactor_ReplacesMatchesPerLine(t *testing.T) {
	r, err := NewRedactor([]string{`\d{3}-\d{4}`})
	require.NoError(t, err)

	in := "call 555-1234 or 555-5678\nno match here"
	out := r.Apply(in)
	assert.Equal(t, "call [REDACTED] or [REDACTED]\nno match here", out)
}

func TestNewRedactor_InvalidPatternErrors(t *testing.T) {
	_, err := NewRedactor([]string{"(unclosed"})
	assert.Error(t, err)
}

func TestRedactor_NilReceiverIsNoop(t *testing.T) {
	var r *Redactor
	assert.Equal(t, "unchanged", r.Apply("unchanged"))
}
