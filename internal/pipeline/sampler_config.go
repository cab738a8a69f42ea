package pipeline

import (
	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
)

// fixedFrequencyPenalty and fixedPresencePenalty are not exposed via
// AppConfig: every generation stage (worker, reducer, meta-prompt) shares
// the same small constants rather than letting each tune them separately.
const (
	fixedFrequencyPenalty = 0.05
	fixedPresencePenalty  = 0.05
)

func samplerConfigFrom(cfg *config.AppConfig) inference.SamplerConfig {
	return inference.SamplerConfig{
		Temperature:      cfg.SampleTemp,
		TopK:             cfg.SampleTopK,
		TopP:             cfg.SampleTopP,
		PenaltyLastN:     cfg.PenaltyLastN,
		PenaltyRepeat:    cfg.PenaltyRepeat,
		FrequencyPenalty: fixedFrequencyPenalty,
		PresencePenalty:  fixedPresencePenalty,
	}
}
