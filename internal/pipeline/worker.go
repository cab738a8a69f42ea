package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kaelstream/lfmsum/internal/apperrors"
	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
	"github.com/kaelstream/lfmsum/internal/tracelog"
)

// RunWorker consumes ChunkTasks from in until it is closed or ctx is
// cancelled, summarizing each with its own exclusively-owned Session. It
// sends exactly one PartialSummary to out per task it receives, notable or
// not, so the reducer's ordered reassembly can always advance past a
// chunk whose output turned out to be silent rather than stalling forever
// waiting for an index that will never arrive notable.
//
// Notable output is also printed to w immediately, from the worker's own
// goroutine, rather than routed through the reducer.
func RunWorker(ctx context.Context, id int, engine inference.Engine, cfg *config.AppConfig, systemPrompt string, in <-chan ChunkTask, out chan<- PartialSummary, tracer *tracelog.Tracer, w io.Writer) error {
	session, err := engine.NewSession(cfg.MainCtxSize, uint32(cfg.BatchSizeLimit))
	if err != nil {
		return &apperrors.InferenceError{Stage: fmt.Sprintf("worker-%d-new-session", id), Err: err}
	}
	defer session.Close()

	for {
		select {
		case task, ok := <-in:
			if !ok {
				return nil
			}
			summary, err := summarizeChunk(ctx, session, engine, cfg, systemPrompt, task, tracer, w)
			if err != nil {
				return &apperrors.InferenceError{Stage: fmt.Sprintf("worker-%d-chunk-%d", id, task.Index), Err: err}
			}
			select {
			case out <- summary:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func summarizeChunk(ctx context.Context, session inference.Session, engine inference.Engine, cfg *config.AppConfig, systemPrompt string, task ChunkTask, tracer *tracelog.Tracer, w io.Writer) (PartialSummary, error) {
	session.ClearKVCache()

	prompt := renderPrompt(cfg.WorkerPromptTemplate, systemPrompt, task.Text)
	tokens := engine.Tokenize(prompt, true)
	if err := session.Prefill(ctx, tokens); err != nil {
		return PartialSummary{}, err
	}

	result, err := session.Generate(ctx, samplerConfigFrom(cfg), cfg.MaxGenerateTokens, nil)
	if err != nil {
		return PartialSummary{}, err
	}

	if tracer != nil {
		_ = tracer.LogCall("worker", task.Index, prompt, result.Text)
	}

	trimmed := strings.TrimSpace(result.Text)
	if trimmed == "" || strings.Contains(trimmed, config.NotableSentinel) {
		return PartialSummary{Index: task.Index, Notable: false}, nil
	}

	if w != nil {
		fmt.Fprintf(w, "[Chunk %d]\n%s\n", task.Index, trimmed)
	}
	return PartialSummary{Index: task.Index, Text: trimmed, Notable: true}, nil
}
