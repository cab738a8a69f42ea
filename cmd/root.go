// Package cmd implements lfmsum's CLI.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kaelstream/lfmsum/internal/config"
	"github.com/kaelstream/lfmsum/internal/inference"
	"github.com/kaelstream/lfmsum/internal/modelfile"
	"github.com/kaelstream/lfmsum/internal/notify"
	"github.com/kaelstream/lfmsum/internal/pipeline"
	"github.com/kaelstream/lfmsum/internal/tracelog"
	"github.com/kaelstream/lfmsum/internal/version"
)

var (
	targetTokens int
	workers      int
	modelPath    string
	systemPrompt string
	cfgFile      string
	verbose      bool
	dryRun       bool
)

var rootCmd = &cobra.Command{
	Use:   "lfmsum",
	Short: "Streaming map-reduce summarization over a local GGUF model",
	Long: `lfmsum reads text from stdin, splits it into token-budgeted chunks,
summarizes each chunk in parallel against a locally loaded GGUF model, and
reduces the ordered summaries into a single streamed final summary.

It features:
  - Token-budgeted, punctuation-aligned chunking
  - A worker pool with per-goroutine inference contexts (no global model lock)
  - Ordered reassembly with an intermediate reduce once accumulated summaries
    cross a rolling token threshold
  - A speculative meta-prompt derived from the first chunks' summaries
  - Optional redaction, deduplication, tracing, and completion notifications`,
	Version:      version.GetFullVersion(),
	SilenceUsage: true,
	RunE:         runSummarize,
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Standard Cobra pattern for flag registration.
func init() {
	rootCmd.Flags().IntVarP(&targetTokens, "tokens", "t", 512, "max tokens per chunk")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 2, "number of parallel workers")
	rootCmd.Flags().StringVarP(&modelPath, "model", "m", "", "path to a GGUF model file (default: embedded model, if this build carries one)")
	rootCmd.Flags().StringVarP(&systemPrompt, "prompt", "p", "Summarize the provided text in three lines.", "system prompt")
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "path to advanced JSON configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "use a mock engine instead of loading a GGUF model")
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose && cfg.ConfigFilePath != "" {
		fmt.Fprintf(os.Stderr, "loaded configuration from: %s\n", cfg.ConfigFilePath)
	}

	engine, err := resolveEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	tracer := tracelog.New(cfg.Trace.Dir, cfg.Trace.Enabled)

	notifier, err := notify.New(&cfg.Notification)
	if err != nil {
		return fmt.Errorf("configuring notifications: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chunkCount, runErr := pipeline.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), pipeline.RunOptions{
		Engine:       engine,
		Config:       cfg,
		SystemPrompt: systemPrompt,
		Workers:      workers,
		TargetTokens: targetTokens,
		Tracer:       tracer,
	})

	if notifier.IsEnabled() {
		runID := tracer.RunID()
		if runID == "" {
			runID = uuid.NewString()
		}
		if notifyErr := notifier.Send(runID, chunkCount, runErr); notifyErr != nil && verbose {
			fmt.Fprintf(os.Stderr, "notification failed: %v\n", notifyErr)
		}
	}

	return runErr
}

func resolveEngine(cfg *config.AppConfig) (inference.Engine, error) {
	if dryRun {
		return inference.NewMockEngine()
	}

	path := modelPath
	if path == "" {
		extracted, err := modelfile.Extract(version.GetVersion())
		if err != nil {
			return nil, fmt.Errorf("resolving model path: %w (pass --model explicitly)", err)
		}
		path = extracted
	}

	inference.SilenceBackendLogs()
	return inference.LoadModel(path)
}
