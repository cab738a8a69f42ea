package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaelstream/lfmsum/internal/inference"
)

func TestReducer_OrdersOutOfArrivalSummaries(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)
	var finalPrompt string
	engine.Summarize = func(prompt string) string {
		finalPrompt = prompt
		return "final output"
	}

	var buf bytes.Buffer
	reducer := NewReducer(engine, testConfig(t), "static prompt", nil, &buf)

	in := make(chan PartialSummary, 2)
	in <- PartialSummary{Index: 1, Text: "second chunk's summary", Notable: true}
	in <- PartialSummary{Index: 0, Text: "first chunk's summary", Notable: true}
	close(in)

	require.NoError(t, reducer.Run(context.Background(), in))

	out := buf.String()
	assert.Contains(t, out, "[Final Summary]")
	assert.Contains(t, out, "final output")
	idx0 := strings.Index(out, "[Meta-Prompt Applied]")
	assert.GreaterOrEqual(t, idx0, 0)

	// Chunk 0's text must have been assembled into the rolling buffer (the
	// final reduce prompt) before chunk 1's, regardless of arrival order.
	data0 := strings.Index(finalPrompt, "[Data 0]\nfirst chunk's summary")
	data1 := strings.Index(finalPrompt, "[Data 1]\nsecond chunk's summary")
	require.GreaterOrEqual(t, data0, 0)
	assert.Greater(t, data1, data0)
}

func TestReducer_NoOutputWhenChannelClosedEmpty(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)

	var buf bytes.Buffer
	reducer := NewReducer(engine, testConfig(t), "static prompt", nil, &buf)

	in := make(chan PartialSummary)
	close(in)
	require.NoError(t, reducer.Run(context.Background(), in))
	assert.Empty(t, buf.String())
}

func TestReducer_IntermediateReduceTriggersAtRollingThreshold(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)

	calls := 0
	engine.Summarize = func(string) string {
		calls++
		return fmt.Sprintf("compressed-%d", calls)
	}

	var buf bytes.Buffer
	reducer := NewReducer(engine, testConfig(t), "static prompt", nil, &buf)

	// A single oversized chunk whose token count alone crosses the 24,000
	// rolling threshold, forcing an intermediate reduce before finalize.
	bigText := strings.Repeat("token ", 30000)

	in := make(chan PartialSummary, 1)
	in <- PartialSummary{Index: 0, Text: bigText, Notable: true}
	close(in)

	require.NoError(t, reducer.Run(context.Background(), in))

	out := buf.String()
	assert.Contains(t, out, "[Intermediate Reduce 0 Triggered]")
	assert.Contains(t, out, "[Final Summary]")
	assert.GreaterOrEqual(t, calls, 2, "expected at least one intermediate-reduce generation and one final generation")
}

func TestReducer_MetaPromptFallsBackToStaticOnGenerationError(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)
	engine.Summarize = func(string) string { return "" }

	var buf bytes.Buffer
	reducer := NewReducer(engine, testConfig(t), "fallback prompt", nil, &buf)

	in := make(chan PartialSummary, 1)
	in <- PartialSummary{Index: 0, Text: "only chunk", Notable: true}
	close(in)

	require.NoError(t, reducer.Run(context.Background(), in))
	assert.Contains(t, buf.String(), "[Meta-Prompt Applied]")
	assert.Contains(t, buf.String(), "[Meta-Prompt Applied]: fallback prompt")
}

func TestReducer_SilentNonFinalChunkDoesNotStall(t *testing.T) {
	engine, err := inference.NewMockEngine()
	require.NoError(t, err)

	var finalPrompt string
	engine.Summarize = func(prompt string) string {
		finalPrompt = prompt
		return "final output"
	}

	var buf bytes.Buffer
	reducer := NewReducer(engine, testConfig(t), "static prompt", nil, &buf)

	// Index 0 is silent (as a worker would emit for a chunk whose output was
	// entirely the notable sentinel); only index 1 carries real text. The
	// reducer must still advance past index 0 and produce a final summary
	// from the single surviving notable chunk, rather than stalling forever
	// waiting for a chunk 0 that will never arrive notable.
	in := make(chan PartialSummary, 2)
	in <- PartialSummary{Index: 0, Notable: false}
	in <- PartialSummary{Index: 1, Text: "surviving summary", Notable: true}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, reducer.Run(ctx, in))

	out := buf.String()
	assert.Contains(t, out, "[Final Summary]")
	assert.Contains(t, out, "final output")
	// The assembled rolling buffer (the actual reduce prompt) must skip the
	// silent index entirely and carry only the surviving one.
	assert.NotContains(t, finalPrompt, "[Data 0]")
	assert.Contains(t, finalPrompt, "[Data 1]")
	assert.Contains(t, finalPrompt, "surviving summary")
}
