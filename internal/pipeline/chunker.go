package pipeline

import (
	"context"
	"io"

	"github.com/kaelstream/lfmsum/internal/apperrors"
	"github.com/kaelstream/lfmsum/internal/inference"
)

// splitPunctuation marks characters the chunker backscans for when a
// binary-search cut point lands mid-sentence.
var splitPunctuation = map[rune]bool{
	'\n': true,
	'。': true,
	'.':  true,
}

// Chunk reads all of r, splits it into token-budgeted pieces via a binary
// search over character offsets followed by a punctuation-aligned backscan,
// and sends one ChunkTask per piece on out in order. It returns once every
// task has been sent or ctx is cancelled.
//
// The engine is used purely as a token-counting oracle here, never for
// generation.
func Chunk(ctx context.Context, engine inference.Engine, r io.Reader, targetTokens int, out chan<- ChunkTask) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return &apperrors.ChunkerError{Op: "read-stdin", Err: err}
	}
	chars := []rune(string(raw))

	index := 0
	start := 0
	for start < len(chars) {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := findChunkEnd(engine, chars, start, targetTokens)
		text := string(chars[start:end])

		select {
		case out <- ChunkTask{Index: index, Text: text}:
		case <-ctx.Done():
			return ctx.Err()
		}

		index++
		start = end
	}
	return nil
}

// findChunkEnd returns the exclusive end offset of the next chunk starting
// at start: the largest offset whose token count is within targetTokens,
// then backed off to the nearest preceding punctuation boundary.
func findChunkEnd(engine inference.Engine, chars []rune, start, targetTokens int) int {
	remainder := string(chars[start:])
	if engine.CountTokens(remainder) <= targetTokens {
		return len(chars)
	}

	left, right := start+1, len(chars)
	best := right
	for left <= right {
		mid := left + (right-left)/2
		count := engine.CountTokens(string(chars[start:mid]))
		if count <= targetTokens {
			best = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}

	for i := best - 1; i >= start; i-- {
		if splitPunctuation[chars[i]] {
			return i + 1
		}
	}
	return best
}
