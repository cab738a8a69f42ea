package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEngine_TokenizeRoundTrip(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)

	text := "the quick brown fox"
	tokens := engine.Tokenize(text, false)
	assert.Equal(t, engine.CountTokens(text), len(tokens))
	assert.Equal(t, text, engine.decode(tokens))
}

func TestMockEngine_TokenizeAddsBOSSentinel(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)

	withBOS := engine.Tokenize("hello", true)
	withoutBOS := engine.Tokenize("hello", false)
	assert.Len(t, withBOS, len(withoutBOS)+1)
	assert.Equal(t, bosSentinel, withBOS[0])
}

func TestMockSession_PrefillThenGenerateUsesPromptText(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(prompt string) string { return "echo: " + prompt }

	session, err := engine.NewSession(2048, 512)
	require.NoError(t, err)

	tokens := engine.Tokenize("source text", true)
	require.NoError(t, session.Prefill(context.Background(), tokens))

	result, err := session.Generate(context.Background(), SamplerConfig{}, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: source text", result.Text)
	assert.True(t, result.HitEOS)
}

func TestMockSession_GenerateTruncatesToMaxTokens(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string {
		return "one two three four five six seven eight nine ten"
	}

	session, err := engine.NewSession(2048, 512)
	require.NoError(t, err)
	require.NoError(t, session.Prefill(context.Background(), engine.Tokenize("x", true)))

	result, err := session.Generate(context.Background(), SamplerConfig{}, 3, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, engine.CountTokens(result.Text), 3)
}

func TestMockSession_ClearKVCacheResetsPrompt(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)
	session, err := engine.NewSession(2048, 512)
	require.NoError(t, err)

	require.NoError(t, session.Prefill(context.Background(), engine.Tokenize("hello", true)))
	session.ClearKVCache()

	ms := session.(*mockSession)
	assert.Empty(t, ms.lastPrompt)
}

func TestMockSession_OnTokenCallbackInvoked(t *testing.T) {
	engine, err := NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string { return "fixed output" }

	session, err := engine.NewSession(2048, 512)
	require.NoError(t, err)
	require.NoError(t, session.Prefill(context.Background(), engine.Tokenize("x", true)))

	var got string
	_, err = session.Generate(context.Background(), SamplerConfig{}, 100, func(s string) { got += s })
	require.NoError(t, err)
	assert.Equal(t, "fixed output", got)
}
