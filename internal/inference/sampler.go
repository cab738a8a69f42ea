package inference

import (
	"math"
	"math/rand"
	"sort"
)

// candidate is a single vocabulary entry with its logit and (once
// normalized) sampling probability.
type candidate struct {
	id    Token
	logit float32
	p     float64
}

// samplerChain composes temperature scaling, top-k and top-p truncation,
// repetition/frequency/presence penalties applied to the surviving
// candidates, and a final seeded categorical draw. Only tokens the sampler
// itself has emitted feed the penalty window — prompt tokens never do, so
// the model stays free to echo terminology straight out of its input.
type samplerChain struct {
	cfg     SamplerConfig
	rng     *rand.Rand
	history []Token // generated tokens only, capped at PenaltyLastN
}

func newSamplerChain(cfg SamplerConfig) *samplerChain {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1234
	}
	return &samplerChain{
		cfg: cfg,
		rng: rand.New(rand.NewSource(int64(seed))), //nolint:gosec // reproducibility, not security
	}
}

// accept records a token the sampler itself selected so later penalty
// passes can see it. Prompt tokens are deliberately never passed here.
func (s *samplerChain) accept(tok Token) {
	if s.cfg.PenaltyLastN <= 0 {
		return
	}
	s.history = append(s.history, tok)
	if over := len(s.history) - int(s.cfg.PenaltyLastN); over > 0 {
		s.history = s.history[over:]
	}
}

// sample selects the next token from raw logits for the full vocabulary:
// temperature scaling, then top-k and top-p truncation, then penalties
// applied only to the surviving candidates, then a categorical draw.
func (s *samplerChain) sample(logits []float32) Token {
	cands := make([]candidate, len(logits))
	for i, l := range logits {
		cands[i] = candidate{id: Token(i), logit: l}
	}

	s.applyTemperature(cands)
	cands = s.applyTopK(cands)
	softmaxInPlace(cands)
	cands = s.applyTopP(cands)
	s.applyPenalties(cands)
	softmaxInPlace(cands)

	return s.drawCategorical(cands)
}

func (s *samplerChain) applyPenalties(cands []candidate) {
	if len(s.history) == 0 || s.cfg.PenaltyRepeat == 0 && s.cfg.FrequencyPenalty == 0 && s.cfg.PresencePenalty == 0 {
		return
	}
	counts := make(map[Token]int, len(s.history))
	for _, t := range s.history {
		counts[t]++
	}
	for i := range cands {
		count, seen := counts[cands[i].id]
		if !seen {
			continue
		}
		if s.cfg.PenaltyRepeat != 0 {
			if cands[i].logit <= 0 {
				cands[i].logit *= s.cfg.PenaltyRepeat
			} else {
				cands[i].logit /= s.cfg.PenaltyRepeat
			}
		}
		cands[i].logit -= float32(count)*s.cfg.FrequencyPenalty + s.cfg.PresencePenalty
	}
}

func (s *samplerChain) applyTemperature(cands []candidate) {
	temp := s.cfg.Temperature
	if temp <= 0 {
		temp = 1.0
	}
	for i := range cands {
		cands[i].logit /= temp
	}
}

func (s *samplerChain) applyTopK(cands []candidate) []candidate {
	k := int(s.cfg.TopK)
	if k <= 0 || k >= len(cands) {
		return cands
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].logit > cands[j].logit })
	return cands[:k]
}

func (s *samplerChain) applyTopP(cands []candidate) []candidate {
	p := s.cfg.TopP
	if p <= 0 || p >= 1 {
		return cands
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].p > cands[j].p })
	cum := 0.0
	cut := len(cands)
	for i, c := range cands {
		cum += c.p
		if cum >= float64(p) {
			cut = i + 1
			break
		}
	}
	if cut < 1 {
		cut = 1 // always keep at least the single best candidate
	}
	return cands[:cut]
}

func softmaxInPlace(cands []candidate) {
	if len(cands) == 0 {
		return
	}
	maxLogit := cands[0].logit
	for _, c := range cands {
		if c.logit > maxLogit {
			maxLogit = c.logit
		}
	}
	sum := 0.0
	for i := range cands {
		e := math.Exp(float64(cands[i].logit - maxLogit))
		cands[i].p = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range cands {
		cands[i].p /= sum
	}
}

func (s *samplerChain) drawCategorical(cands []candidate) Token {
	if len(cands) == 0 {
		return 0
	}
	r := s.rng.Float64()
	cum := 0.0
	for _, c := range cands {
		cum += c.p
		if r <= cum {
			return c.id
		}
	}
	return cands[len(cands)-1].id
}
