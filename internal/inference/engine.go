// Package inference wraps a loaded language model behind a small interface
// covering tokenization, context management, batched decoding, sampling,
// and KV-cache lifecycle. Two implementations satisfy Engine: a real cgo
// binding to llama.cpp (llamacpp.go) and a MockEngine backed by tiktoken-go
// for tests and --dry-run.
package inference

import "context"

// Token is a single vocabulary entry id.
type Token int32

// Engine owns a loaded model's weights (read-only, shared across sessions)
// and the shared backend handle. Sessions are created per-stage (worker,
// reducer, meta-prompt) so KV caches never cross goroutine boundaries.
type Engine interface {
	// Tokenize returns the token ids for text. addBOS controls whether a
	// leading beginning-of-sequence token is prepended: the chunker's
	// measurement calls never add one, while prompt tokenization for
	// generation always does.
	Tokenize(text string, addBOS bool) []Token

	// CountTokens is a convenience wrapper used by the chunker's binary
	// search and the reducer's rolling-token bookkeeping.
	CountTokens(text string) int

	// EOSToken returns the model's end-of-sequence token id.
	EOSToken() Token

	// NewSession creates a fresh, exclusively-owned inference context sized
	// to ctxSize tokens, prefilling in batches of at most batchSize tokens.
	// The caller must call Close when done.
	NewSession(ctxSize, batchSize uint32) (Session, error)

	// Close releases the model and backend. Called once at process exit.
	Close() error
}

// SamplerConfig configures the sampling chain applied to each generation
// step: temperature -> top-k -> top-p -> repetition/frequency/presence
// penalties over the last PenaltyLastN generated tokens -> seeded
// categorical pick.
type SamplerConfig struct {
	Temperature     float32
	TopK            int32
	TopP            float32
	PenaltyLastN    int32
	PenaltyRepeat   float32
	FrequencyPenalty float32
	PresencePenalty  float32
	Seed            uint64
}

// GenerateResult carries the textual output of one generation pass along
// with whether it terminated on EOS (as opposed to hitting the token cap).
type GenerateResult struct {
	Text       string
	HitEOS     bool
	TokensUsed int
}

// Session is a single-threaded inference context with its own KV cache. It
// is owned exclusively by the goroutine that created it for its lifetime.
type Session interface {
	// ClearKVCache wipes prior-prompt state before starting a new prompt,
	// preventing cross-chunk pollution.
	ClearKVCache()

	// Prefill feeds prompt tokens through the model in batches of at most
	// the session's configured batch size, the last batch's last token
	// marked to produce logits.
	Prefill(ctx context.Context, tokens []Token) error

	// Generate decodes up to maxTokens steps using sampler, stopping early
	// on EOS. onToken, if non-nil, is invoked with each decoded
	// UTF-8-safe fragment as it is produced, used to stream the final
	// summary to the caller as it's generated.
	Generate(ctx context.Context, sampler SamplerConfig, maxTokens int32, onToken func(string)) (GenerateResult, error)

	// Close frees the context's KV cache and any other native resources.
	Close() error
}
