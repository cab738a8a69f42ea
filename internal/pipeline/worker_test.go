package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestRunWorker_EmitsNotableSummary(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string { return "something happened" }

	in := make(chan ChunkTask, 1)
	out := make(chan PartialSummary, 1)
	in <- ChunkTask{Index: 0, Text: "raw chunk text"}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	err = RunWorker(ctx, 0, engine, testConfig(t), "system prompt", in, out, nil, &buf)
	require.NoError(t, err)
	close(out)

	var got []PartialSummary
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "something happened", got[0].Text)
	assert.True(t, got[0].Notable)
	assert.Contains(t, buf.String(), "[Chunk 0]")
}

func TestRunWorker_SilentOnSentinel(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string { return config.NotableSentinel }

	in := make(chan ChunkTask, 1)
	out := make(chan PartialSummary, 1)
	in <- ChunkTask{Index: 0, Text: "nothing interesting"}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = RunWorker(ctx, 0, engine, testConfig(t), "system prompt", in, out, nil, nil)
	require.NoError(t, err)
	close(out)

	var got []PartialSummary
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 1, "a silent chunk must still emit a placeholder so the reducer's index never gaps")
	assert.False(t, got[0].Notable)
	assert.Equal(t, "", got[0].Text)
}

func TestRunWorker_SilentOnEmptyOutput(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string { return "   " }

	in := make(chan ChunkTask, 1)
	out := make(chan PartialSummary, 1)
	in <- ChunkTask{Index: 0, Text: "chunk"}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = RunWorker(ctx, 0, engine, testConfig(t), "system prompt", in, out, nil, nil)
	require.NoError(t, err)
	close(out)

	got, ok := <-out
	require.True(t, ok, "a silent chunk must still emit a placeholder so the reducer's index never gaps")
	assert.False(t, got.Notable)
}
