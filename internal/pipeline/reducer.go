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

// Reducer reassembles PartialSummaries in order, maintains a rolling buffer
// of accumulated text, triggers an intermediate reduce once the buffer
// crosses config.IntermediateReduceThreshold tokens, and streams a single
// final summary to w once the input channel closes.
//
// Out-of-order arrivals are held in a pending set keyed by chunk index until
// their turn comes up; a meta-prompt is speculatively generated in the
// background as soon as the second chunk has been assembled, so it is
// usually ready by the time the first reduce actually needs it.
type Reducer struct {
	engine       inference.Engine
	cfg          *config.AppConfig
	staticPrompt string
	tracer       *tracelog.Tracer
	w            io.Writer

	pending map[int]PartialSummary
	nextIdx int

	rollingBuffer strings.Builder
	rollingTokens int
	intermediateN int

	sampleSummaries strings.Builder
	metaPromptCh    chan string
	dynamicPrompt   *string
}

// NewReducer builds a Reducer that writes progress markers and the final
// streamed summary to w (typically os.Stdout).
func NewReducer(engine inference.Engine, cfg *config.AppConfig, staticPrompt string, tracer *tracelog.Tracer, w io.Writer) *Reducer {
	return &Reducer{
		engine:       engine,
		cfg:          cfg,
		staticPrompt: staticPrompt,
		tracer:       tracer,
		w:            w,
		pending:      make(map[int]PartialSummary),
	}
}

// Run drains in until it closes, then emits the final summary. It returns
// when the final summary has been fully streamed or ctx is cancelled.
func (r *Reducer) Run(ctx context.Context, in <-chan PartialSummary) error {
	for {
		select {
		case summary, ok := <-in:
			if !ok {
				return r.finalize(ctx)
			}
			r.pending[summary.Index] = summary
			if err := r.drainOrdered(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reducer) drainOrdered(ctx context.Context) error {
	for {
		summary, ok := r.pending[r.nextIdx]
		if !ok {
			return nil
		}
		delete(r.pending, r.nextIdx)

		// A silent chunk still advances nextIdx so the reassembly can never
		// stall on its index, but contributes nothing to the rolling buffer
		// or the meta-prompt sample.
		if summary.Notable {
			r.rollingBuffer.WriteString(fmt.Sprintf("[Data %d]\n%s\n\n", r.nextIdx, summary.Text))
			r.rollingTokens += r.engine.CountTokens(summary.Text)

			if r.nextIdx < config.MetaPromptSampleChunks {
				r.sampleSummaries.WriteString(summary.Text)
				r.sampleSummaries.WriteString("\n\n")
			}
		}

		if r.nextIdx == 1 && r.metaPromptCh == nil {
			r.spawnMetaPrompt(ctx, r.sampleSummaries.String())
		}

		r.nextIdx++

		if r.rollingTokens >= config.IntermediateReduceThreshold {
			fmt.Fprintf(r.w, "\n[Intermediate Reduce %d Triggered]\n", r.intermediateN)
			if err := r.intermediateReduce(ctx); err != nil {
				return err
			}
		}
	}
}

// spawnMetaPrompt starts the speculative meta-prompt generation in its own
// goroutine so it overlaps with continued chunk reassembly. It reports back
// on a channel with room for its single result.
func (r *Reducer) spawnMetaPrompt(ctx context.Context, sample string) {
	ch := make(chan string, 1)
	r.metaPromptCh = ch
	go func() {
		prompt, err := generateMetaPrompt(ctx, r.engine, r.cfg, sample, r.tracer)
		if err != nil || prompt == "" {
			prompt = r.staticPrompt
		}
		ch <- prompt
	}()
}

// resolveDynamicPrompt blocks for the speculative meta-prompt result the
// first time it's needed, falling back to a synchronous generation if no
// speculative task was ever started (fewer than two chunks total).
func (r *Reducer) resolveDynamicPrompt(ctx context.Context) (string, error) {
	if r.dynamicPrompt != nil {
		return *r.dynamicPrompt, nil
	}

	var resolved string
	if r.metaPromptCh != nil {
		select {
		case resolved = <-r.metaPromptCh:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else {
		prompt, err := generateMetaPrompt(ctx, r.engine, r.cfg, r.sampleSummaries.String(), r.tracer)
		if err != nil || prompt == "" {
			resolved = r.staticPrompt
		} else {
			resolved = prompt
		}
	}

	fmt.Fprintf(r.w, "\n[Meta-Prompt Applied]: %s\n", resolved)
	r.dynamicPrompt = &resolved
	return resolved, nil
}

func (r *Reducer) intermediateReduce(ctx context.Context) error {
	dynamicPrompt, err := r.resolveDynamicPrompt(ctx)
	if err != nil {
		return err
	}

	prompt := renderPrompt(r.cfg.IntermediateReducePrompt, dynamicPrompt, r.rollingBuffer.String())
	compressed, err := r.runReduceGeneration(ctx, prompt, "reducer-intermediate", nil)
	if err != nil {
		return err
	}

	r.rollingBuffer.Reset()
	r.rollingBuffer.WriteString(fmt.Sprintf("[Intermediate Summary %d]\n%s\n\n", r.intermediateN, compressed))
	r.rollingTokens = r.engine.CountTokens(r.rollingBuffer.String())
	r.intermediateN++
	return nil
}

func (r *Reducer) finalize(ctx context.Context) error {
	if r.rollingBuffer.Len() == 0 {
		return nil
	}

	dynamicPrompt, err := r.resolveDynamicPrompt(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(r.w, "\n[Final Summary]")
	prompt := renderPrompt(r.cfg.FinalReducePrompt, dynamicPrompt, r.rollingBuffer.String())
	_, err = r.runReduceGeneration(ctx, prompt, "reducer-final", func(fragment string) {
		fmt.Fprint(r.w, fragment)
	})
	fmt.Fprintln(r.w)
	return err
}

func (r *Reducer) runReduceGeneration(ctx context.Context, prompt, traceStage string, onToken func(string)) (string, error) {
	session, err := r.engine.NewSession(r.cfg.MainCtxSize, uint32(r.cfg.BatchSizeLimit))
	if err != nil {
		return "", &apperrors.InferenceError{Stage: traceStage + "-new-session", Err: err}
	}
	defer session.Close()

	session.ClearKVCache()
	tokens := r.engine.Tokenize(prompt, true)
	if err := session.Prefill(ctx, tokens); err != nil {
		return "", &apperrors.InferenceError{Stage: traceStage + "-prefill", Err: err}
	}

	result, err := session.Generate(ctx, samplerConfigFrom(r.cfg), r.cfg.MaxGenerateTokens, onToken)
	if err != nil {
		return "", &apperrors.InferenceError{Stage: traceStage + "-generate", Err: err}
	}

	if r.tracer != nil {
		_ = r.tracer.LogCall(traceStage, r.intermediateN, prompt, result.Text)
	}

	return result.Text, nil
}
