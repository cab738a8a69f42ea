package pipeline

import (
	"context"
	"strings"

	"github.com/kaelstream/lfmsum/internal/apperrors"
	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
	"github.com/kaelstream/lfmsum/internal/tracelog"
)

// generateMetaPrompt derives a dynamic system prompt from a sample of early
// summaries, run in its own short-lived session sized to MetaCtxSize and
// capped at config.MetaPromptMaxTokens regardless of MaxGenerateTokens.
func generateMetaPrompt(ctx context.Context, engine inference.Engine, cfg *config.AppConfig, sampleText string, tracer *tracelog.Tracer) (string, error) {
	session, err := engine.NewSession(cfg.MetaCtxSize, uint32(cfg.BatchSizeLimit))
	if err != nil {
		return "", &apperrors.InferenceError{Stage: "meta-prompt-new-session", Err: err}
	}
	defer session.Close()

	prompt := renderMetaPrompt(cfg.MetaPromptTemplate, sampleText)
	tokens := engine.Tokenize(prompt, true)
	if err := session.Prefill(ctx, tokens); err != nil {
		return "", err
	}

	result, err := session.Generate(ctx, samplerConfigFrom(cfg), config.MetaPromptMaxTokens, nil)
	if err != nil {
		return "", err
	}

	if tracer != nil {
		_ = tracer.LogCall("meta-prompt", -1, prompt, result.Text)
	}

	return strings.TrimSpace(result.Text), nil
}
