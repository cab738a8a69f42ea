// Package inference: real engine backed by llama.cpp via cgo.
//
// This binds directly to llama.cpp's C API (llama_model_load_from_file,
// llama_decode, llama_get_logits_ith, llama_token_to_piece, ...). The cgo
// flags below look for llama.cpp's headers and pre-built static library
// under third_party/llama.cpp, which this repository does not include; this
// package only binds to it, it never reimplements inference itself.
package inference

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/llama.cpp/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/llama.cpp/lib -lllama -lggml -lm -lstdc++
#cgo darwin LDFLAGS: -framework Accelerate -framework Foundation -framework Metal -framework MetalPerformanceShaders
#include <stdlib.h>
#include "llama.h"

static void lfmsum_void_log(enum ggml_log_level level, const char *text, void *user_data) {
	(void)level;
	(void)text;
	(void)user_data;
}

static void lfmsum_silence_logs(void) {
	llama_log_set(lfmsum_void_log, NULL);
}
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/kaelstream/lfmsum/internal/apperrors"
)

// SilenceBackendLogs mutes llama.cpp's own stderr logging so only the
// pipeline's own stdout output is visible. Call once at startup.
func SilenceBackendLogs() {
	C.lfmsum_silence_logs()
}

// backend wraps the shared llama.cpp backend handle. One per process.
type backend struct {
	mu       sync.Mutex
	refCount int
}

var sharedBackend = &backend{}

func initBackend() error {
	sharedBackend.mu.Lock()
	defer sharedBackend.mu.Unlock()
	if sharedBackend.refCount == 0 {
		C.llama_backend_init()
	}
	sharedBackend.refCount++
	return nil
}

func releaseBackend() {
	sharedBackend.mu.Lock()
	defer sharedBackend.mu.Unlock()
	sharedBackend.refCount--
	if sharedBackend.refCount <= 0 {
		C.llama_backend_free()
		sharedBackend.refCount = 0
	}
}

// LlamaEngine is the real, GPU-accelerated Engine implementation.
type LlamaEngine struct {
	model *C.struct_llama_model
	vocab *C.struct_llama_vocab
}

var _ Engine = (*LlamaEngine)(nil)

// LoadModel initializes the shared backend (if needed) and loads the GGUF
// model at path. GPU offload is controlled by the platform build (Metal on
// darwin, CUDA elsewhere) via llama.cpp's own compile-time configuration —
// this package asks for as many GPU layers as the library will place.
func LoadModel(path string) (*LlamaEngine, error) {
	if err := initBackend(); err != nil {
		return nil, &apperrors.InferenceError{Stage: "init-backend", Err: err}
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	params := C.llama_model_default_params()
	params.n_gpu_layers = 999

	model := C.llama_model_load_from_file(cPath, params)
	if model == nil {
		releaseBackend()
		return nil, &apperrors.InferenceError{Stage: "load-model", Err: fmt.Errorf("failed to load model from %s", path)}
	}

	e := &LlamaEngine{
		model: model,
		vocab: C.llama_model_get_vocab(model),
	}
	runtime.SetFinalizer(e, (*LlamaEngine).Close)
	return e, nil
}

// Close frees the model and releases the shared backend reference.
func (e *LlamaEngine) Close() error {
	if e.model != nil {
		C.llama_model_free(e.model)
		e.model = nil
		releaseBackend()
	}
	return nil
}

// Tokenize converts text to token ids. The chunker's measurement calls
// never add a BOS token; generation prompts always do.
func (e *LlamaEngine) Tokenize(text string, addBOS bool) []Token {
	if text == "" && !addBOS {
		return nil
	}
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	// First call with a zero-capacity buffer to discover the token count
	// (negative return value from llama_tokenize), then allocate and retry —
	// the standard two-pass llama.cpp tokenize idiom.
	n := -C.llama_tokenize(e.vocab, cText, C.int32_t(len(text)), nil, 0, C.bool(addBOS), C.bool(true))
	if n <= 0 {
		return nil
	}
	buf := make([]C.llama_token, n)
	written := C.llama_tokenize(e.vocab, cText, C.int32_t(len(text)), &buf[0], n, C.bool(addBOS), C.bool(true))
	if written < 0 {
		return nil
	}
	tokens := make([]Token, written)
	for i := 0; i < int(written); i++ {
		tokens[i] = Token(buf[i])
	}
	return tokens
}

// CountTokens is the chunker's measurement oracle. Tokenizer failures
// degrade to an empty vector rather than a panic, so this implementation
// can't fail other than returning 0 tokens.
func (e *LlamaEngine) CountTokens(text string) int {
	return len(e.Tokenize(text, false))
}

// EOSToken returns the model's end-of-sequence token id.
func (e *LlamaEngine) EOSToken() Token {
	return Token(C.llama_vocab_eos(e.vocab))
}

// NewSession creates a fresh, exclusively-owned context.
func (e *LlamaEngine) NewSession(ctxSize, batchSize uint32) (Session, error) {
	return newLlamaSession(e, ctxSize, batchSize)
}

// tokenToPiece renders one token's raw bytes (may be a partial UTF-8
// sequence) via llama_token_to_piece.
func (e *LlamaEngine) tokenToPiece(tok Token) []byte {
	buf := make([]byte, 32)
	n := C.llama_token_to_piece(e.vocab, C.llama_token(tok), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), 0, C.bool(false))
	if n < 0 {
		buf = make([]byte, -n)
		n = C.llama_token_to_piece(e.vocab, C.llama_token(tok), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), 0, C.bool(false))
		if n < 0 {
			return nil
		}
	}
	return buf[:n]
}

// llamaSession is a per-goroutine inference context with its own KV cache.
type llamaSession struct {
	engine  *LlamaEngine
	ctx     *C.struct_llama_context
	nBatch  int
	nVocab  int
	nPos    int32 // next KV-cache position to write; reset by ClearKVCache
	decoder incrementalUTF8Decoder
}

func newLlamaSession(e *LlamaEngine, ctxSize, batchSize uint32) (*llamaSession, error) {
	if batchSize == 0 {
		batchSize = 4096
	}
	params := C.llama_context_default_params()
	params.n_ctx = C.uint32_t(ctxSize)
	params.n_batch = C.uint32_t(batchSize)
	params.n_ubatch = C.uint32_t(batchSize)

	ctx := C.llama_init_from_model(e.model, params)
	if ctx == nil {
		return nil, &apperrors.InferenceError{Stage: "new-context", Err: fmt.Errorf("llama_init_from_model returned nil")}
	}

	return &llamaSession{
		engine: e,
		ctx:    ctx,
		nBatch: int(batchSize),
		nVocab: int(C.llama_vocab_n_tokens(e.vocab)),
	}, nil
}

func (s *llamaSession) ClearKVCache() {
	C.llama_kv_self_clear(s.ctx)
	s.nPos = 0
}

func (s *llamaSession) Close() error {
	if s.ctx != nil {
		C.llama_free(s.ctx)
		s.ctx = nil
	}
	return nil
}

// Prefill feeds tokens through the model in batches of at most nBatch, the
// final batch's final token marked to produce logits.
func (s *llamaSession) Prefill(ctx context.Context, tokens []Token) error {
	nEval := 0
	for nEval < len(tokens) {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunkSize := len(tokens) - nEval
		if chunkSize > s.nBatch {
			chunkSize = s.nBatch
		}
		batch := C.llama_batch_init(C.int32_t(chunkSize), 0, 1)
		for i := 0; i < chunkSize; i++ {
			isLast := (nEval+i) == len(tokens)-1
			addToBatch(&batch, i, tokens[nEval+i], s.nPos+int32(i), isLast)
		}
		batch.n_tokens = C.int32_t(chunkSize)
		rc := C.llama_decode(s.ctx, batch)
		C.llama_batch_free(batch)
		if rc != 0 {
			return &apperrors.InferenceError{Stage: "decode-prefill", Err: fmt.Errorf("llama_decode returned %d", int(rc))}
		}
		nEval += chunkSize
		s.nPos += int32(chunkSize)
	}
	return nil
}

// Generate decodes up to maxTokens using the sampler chain, streaming each
// decoded fragment to onToken as it is produced.
func (s *llamaSession) Generate(ctx context.Context, samplerCfg SamplerConfig, maxTokens int32, onToken func(string)) (GenerateResult, error) {
	sampler := newSamplerChain(samplerCfg)
	var generated []byte
	tokensUsed := 0

	for tokensUsed < int(maxTokens) {
		if err := ctx.Err(); err != nil {
			break
		}

		logitsPtr := C.llama_get_logits_ith(s.ctx, -1)
		if logitsPtr == nil {
			break
		}
		logits := unsafe.Slice((*float32)(unsafe.Pointer(logitsPtr)), s.nVocab)

		next := sampler.sample(logits)
		sampler.accept(next)
		tokensUsed++

		if next == s.engine.EOSToken() {
			return GenerateResult{Text: string(generated), HitEOS: true, TokensUsed: tokensUsed}, nil
		}

		piece := s.engine.tokenToPiece(next)
		if text := s.decoder.push(piece); text != "" {
			generated = append(generated, text...)
			if onToken != nil {
				onToken(text)
			}
		}

		batch := C.llama_batch_init(1, 0, 1)
		addToBatch(&batch, 0, next, s.nPos, true)
		batch.n_tokens = 1
		rc := C.llama_decode(s.ctx, batch)
		C.llama_batch_free(batch)
		if rc != 0 {
			break
		}
		s.nPos++
	}

	return GenerateResult{Text: string(generated), HitEOS: false, TokensUsed: tokensUsed}, nil
}

// addToBatch fills slot i of batch with a single-sequence token, writing
// directly into llama_batch's host-addressable arrays via cgo slice
// indexing.
func addToBatch(batch *C.struct_llama_batch, slot int, tok Token, pos int32, wantLogits bool) {
	tokenSlice := unsafe.Slice(batch.token, slot+1)
	posSlice := unsafe.Slice(batch.pos, slot+1)
	nSeqIDSlice := unsafe.Slice(batch.n_seq_id, slot+1)
	seqIDSlice := unsafe.Slice(batch.seq_id, slot+1)
	logitsSlice := unsafe.Slice(batch.logits, slot+1)

	tokenSlice[slot] = C.llama_token(tok)
	posSlice[slot] = C.llama_pos(pos)
	nSeqIDSlice[slot] = 1
	seqIDs := unsafe.Slice(seqIDSlice[slot], 1)
	seqIDs[0] = 0
	if wantLogits {
		logitsSlice[slot] = 1
	} else {
		logitsSlice[slot] = 0
	}
}
