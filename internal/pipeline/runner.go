package pipeline

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
	"github.com/kaelstream/lfmsum/internal/tracelog"
)

// RunOptions configures one end-to-end pipeline invocation.
type RunOptions struct {
	Engine       inference.Engine
	Config       *config.AppConfig
	SystemPrompt string
	Workers      int
	TargetTokens int
	Tracer       *tracelog.Tracer
}

// Run wires the chunker, worker pool, and reducer into a single streaming
// run over r, writing the final summary (and progress markers) to w, and
// returns the total number of chunks the chunker emitted (for the CLI's
// completion notification). Chunker, workers, and reducer run under a
// shared errgroup-supervised context, so any stage's error cancels every
// other stage rather than leaving them running past a failure.
func Run(ctx context.Context, r io.Reader, w io.Writer, opts RunOptions) (int, error) {
	if len(opts.Config.Redact.Patterns) > 0 || opts.Config.Dedup.Enabled {
		preprocessed, err := preprocess(r, opts.Config)
		if err != nil {
			return 0, err
		}
		r = preprocessed
	}

	chunkCh := make(chan ChunkTask, opts.Workers*2)
	summaryCh := make(chan PartialSummary, opts.Workers*2)

	// Shared across every worker goroutine and the reducer so notable
	// per-chunk output, progress markers, and the streamed final summary
	// never tear each other's writes.
	sw := newSyncWriter(w)

	var chunkCount int64

	g, gctx := errgroup.WithContext(ctx)

	// Chunk writes into an unbuffered internal channel; this forwarder
	// counts each task in flight before relaying it onto the bounded,
	// worker-visible chunkCh, so Run can report the total chunk count
	// without the chunker itself needing to know about counting.
	rawChunkCh := make(chan ChunkTask)
	g.Go(func() error {
		defer close(rawChunkCh)
		return Chunk(gctx, opts.Engine, r, opts.TargetTokens, rawChunkCh)
	})
	g.Go(func() error {
		defer close(chunkCh)
		for task := range rawChunkCh {
			atomic.AddInt64(&chunkCount, 1)
			select {
			case chunkCh <- task:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workerGroup, workerCtx := errgroup.WithContext(gctx)
	for id := 0; id < opts.Workers; id++ {
		workerGroup.Go(func() error {
			return RunWorker(workerCtx, id, opts.Engine, opts.Config, opts.SystemPrompt, chunkCh, summaryCh, opts.Tracer, sw)
		})
	}
	g.Go(func() error {
		defer close(summaryCh)
		return workerGroup.Wait()
	})

	reducer := NewReducer(opts.Engine, opts.Config, opts.SystemPrompt, opts.Tracer, sw)
	g.Go(func() error {
		return reducer.Run(gctx, summaryCh)
	})

	err := g.Wait()
	return int(atomic.LoadInt64(&chunkCount)), err
}

// preprocess applies the optional redact/dedup passes ahead of chunking.
// It reads r fully into memory up front, since both passes work on
// whole-text line boundaries.
func preprocess(r io.Reader, cfg *config.AppConfig) (io.Reader, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(raw)

	if len(cfg.Redact.Patterns) > 0 {
		redactor, err := NewRedactor(cfg.Redact.Patterns)
		if err != nil {
			return nil, err
		}
		text = redactor.Apply(text)
	}
	if cfg.Dedup.Enabled {
		text = Dedup(text)
	}

	return strings.NewReader(text), nil
}
