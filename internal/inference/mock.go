package inference

import (
	"context"
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/kaelstream/lfmsum/internal/apperrors"
)

// bosSentinel is a synthetic token id standing in for a beginning-of-
// sequence marker; it never round-trips through the real BPE vocabulary
// and is stripped before decoding.
const bosSentinel Token = -1

// MockEngine is a GPU-free stand-in for LlamaEngine, used by --dry-run and
// by every package test in this repo. Its tiktoken-go wrapper is close
// enough to a real BPE vocabulary to exercise the chunker's binary search
// and the reducer's rolling-token bookkeeping without a GGUF file on disk.
type MockEngine struct {
	encoding *tiktoken.Tiktoken
	// Summarize, if set, produces canned generation output for a given
	// decoded prompt; tests install this to assert pipeline wiring without
	// caring about real model quality. Defaults to "summary: " followed by
	// the first 40 bytes of the trimmed prompt.
	Summarize func(prompt string) string
}

var _ Engine = (*MockEngine)(nil)

// NewMockEngine builds a MockEngine using the cl100k_base BPE encoding as
// a general-purpose fallback.
func NewMockEngine() (*MockEngine, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, &apperrors.InferenceError{Stage: "mock-tokenizer", Err: err}
	}
	return &MockEngine{encoding: enc}, nil
}

func (m *MockEngine) Tokenize(text string, addBOS bool) []Token {
	ids := m.encoding.Encode(text, nil, nil)
	tokens := make([]Token, 0, len(ids)+1)
	if addBOS {
		tokens = append(tokens, bosSentinel)
	}
	for _, id := range ids {
		tokens = append(tokens, Token(id))
	}
	return tokens
}

func (m *MockEngine) CountTokens(text string) int {
	return len(m.encoding.Encode(text, nil, nil))
}

func (m *MockEngine) decode(tokens []Token) string {
	ids := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if t == bosSentinel {
			continue
		}
		ids = append(ids, int(t))
	}
	return m.encoding.Decode(ids)
}

func (m *MockEngine) EOSToken() Token { return -2 }

func (m *MockEngine) Close() error { return nil }

func (m *MockEngine) NewSession(ctxSize, _ uint32) (Session, error) {
	return &mockSession{engine: m, ctxSize: ctxSize}, nil
}

// mockSession mimics the real per-goroutine context lifecycle (clear,
// prefill, generate) without performing any actual inference.
type mockSession struct {
	engine     *MockEngine
	ctxSize    uint32
	lastPrompt string
}

func (s *mockSession) ClearKVCache() { s.lastPrompt = "" }

func (s *mockSession) Close() error { return nil }

func (s *mockSession) Prefill(_ context.Context, tokens []Token) error {
	s.lastPrompt = s.engine.decode(tokens)
	return nil
}

// Generate produces deterministic canned output so pipeline tests can
// assert on shape (notable vs. silent, trimmed, streamed) without a real
// model.
func (s *mockSession) Generate(_ context.Context, _ SamplerConfig, maxTokens int32, onToken func(string)) (GenerateResult, error) {
	var text string
	if s.engine.Summarize != nil {
		text = s.engine.Summarize(s.lastPrompt)
	} else {
		trimmed := strings.TrimSpace(s.lastPrompt)
		if len(trimmed) > 40 {
			trimmed = trimmed[:40]
		}
		text = fmt.Sprintf("summary: %s", trimmed)
	}

	tokens := s.engine.Tokenize(text, false)
	if int32(len(tokens)) > maxTokens && maxTokens > 0 {
		text = s.engine.decode(tokens[:maxTokens])
	}

	if onToken != nil {
		onToken(text)
	}
	return GenerateResult{Text: text, HitEOS: true, TokensUsed: s.engine.CountTokens(text)}, nil
}
