// Package config loads and validates lfmsum's AppConfig.
package config

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kaelstream/lfmsum/internal/apperrors"
)

//go:embed defaults/*.tmpl
var embeddedTemplates embed.FS

// Err is the sentinel wrapped by configuration failures.
var Err = errors.New("config error")

// RedactConfig holds optional regexp-based line redaction applied to stdin
// before chunking. Empty patterns (the default) leave input untouched and
// preserve the chunker's byte-exact partition invariant.
type RedactConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// DedupConfig controls optional collapsing of repeated consecutive lines
// before chunking.
type DedupConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// NotificationConfig controls the optional Shoutrrr completion notification.
type NotificationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ShoutrrrURL string `mapstructure:"shoutrrr_url"`
}

// TraceConfig controls optional Markdown tracing of inference calls.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// AppConfig is lfmsum's JSON-configurable surface: context sizes, sampling
// parameters, prompt templates, and the optional redact/dedup/notification/
// trace add-ons.
type AppConfig struct {
	MetaCtxSize       uint32 `mapstructure:"meta_ctx_size"`
	MainCtxSize       uint32 `mapstructure:"main_ctx_size"`
	MaxGenerateTokens int32  `mapstructure:"max_generate_tokens"`
	BatchSizeLimit    int    `mapstructure:"batch_size_limit"`

	SampleTemp    float32 `mapstructure:"sample_temp"`
	SampleTopK    int32   `mapstructure:"sample_top_k"`
	SampleTopP    float32 `mapstructure:"sample_top_p"`
	PenaltyRepeat float32 `mapstructure:"penalty_repeat"`
	PenaltyLastN  int32   `mapstructure:"penalty_last_n"`

	MetaPromptTemplate       string `mapstructure:"meta_prompt_template"`
	WorkerPromptTemplate     string `mapstructure:"worker_prompt_template"`
	IntermediateReducePrompt string `mapstructure:"intermediate_reduce_prompt"`
	FinalReducePrompt        string `mapstructure:"final_reduce_prompt"`

	Redact       RedactConfig       `mapstructure:"redact"`
	Dedup        DedupConfig        `mapstructure:"dedup"`
	Notification NotificationConfig `mapstructure:"notification"`
	Trace        TraceConfig        `mapstructure:"trace"`

	// ConfigFilePath records which file (if any) was actually loaded.
	ConfigFilePath string `mapstructure:"-"`
}

// IntermediateReduceThreshold is the rolling-token trigger for compressing
// the accumulated buffer before it reaches the next reduce.
const IntermediateReduceThreshold = 24000

// MetaPromptSampleChunks is how many leading chunk summaries the reducer
// collects as the meta-prompt sample. The speculative meta-prompt starts once
// the second chunk is assembled, so it sees at most the first two of them.
const MetaPromptSampleChunks = 3

// MetaPromptMaxTokens is the hard generation cap for the meta-prompt task,
// independent of MaxGenerateTokens.
const MetaPromptMaxTokens = 150

// NotableSentinel marks a worker summary as "nothing notable".
const NotableSentinel = "特になし"

func mustReadDefault(path string) string {
	b, err := embeddedTemplates.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("lfmsum: missing embedded default template %s: %v", path, err))
	}
	return string(b)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("meta_ctx_size", 8192)
	v.SetDefault("main_ctx_size", 32768)
	v.SetDefault("max_generate_tokens", 32768)
	v.SetDefault("batch_size_limit", 4096)

	v.SetDefault("sample_temp", 0.2)
	v.SetDefault("sample_top_k", 50)
	v.SetDefault("sample_top_p", 0.9)
	v.SetDefault("penalty_repeat", 1.00)
	v.SetDefault("penalty_last_n", 32)

	v.SetDefault("meta_prompt_template", mustReadDefault("defaults/meta_prompt.tmpl"))
	v.SetDefault("worker_prompt_template", mustReadDefault("defaults/worker_prompt.tmpl"))
	v.SetDefault("intermediate_reduce_prompt", mustReadDefault("defaults/intermediate_reduce.tmpl"))
	v.SetDefault("final_reduce_prompt", mustReadDefault("defaults/final_reduce.tmpl"))

	v.SetDefault("redact.patterns", []string{})
	v.SetDefault("dedup.enabled", false)
	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.shoutrrr_url", "")
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.dir", "./trace")
}

// Load reads AppConfig from the JSON file at configPath, falling back to
// defaults for everything not present. An empty configPath is valid and
// yields the pure-default configuration — every field is optional.
func Load(configPath string) (*AppConfig, error) {
	_ = godotenv.Load() // optional .env for NOTIFICATION webhook secrets

	v := viper.New()
	v.SetConfigType("json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	setDefaults(v)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, &apperrors.ConfigurationError{ConfigPath: configPath, Err: err}
		}
	}

	v.SetEnvPrefix("LFMSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &apperrors.ConfigurationError{ConfigPath: configPath, Err: err}
	}
	cfg.ConfigFilePath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the configured numeric ranges and checks that each
// template contains exactly the placeholders it needs.
func (c *AppConfig) Validate() error {
	if c.MainCtxSize == 0 {
		return fmt.Errorf("%w: main_ctx_size must be > 0", Err)
	}
	if c.MetaCtxSize == 0 {
		return fmt.Errorf("%w: meta_ctx_size must be > 0", Err)
	}
	if c.BatchSizeLimit <= 0 {
		return fmt.Errorf("%w: batch_size_limit must be > 0", Err)
	}
	if c.MaxGenerateTokens <= 0 {
		return fmt.Errorf("%w: max_generate_tokens must be > 0", Err)
	}
	if c.SampleTopK <= 0 {
		return fmt.Errorf("%w: sample_top_k must be > 0", Err)
	}
	if c.SampleTopP <= 0 || c.SampleTopP > 1 {
		return fmt.Errorf("%w: sample_top_p must be in (0, 1]", Err)
	}
	if c.PenaltyLastN < 0 {
		return fmt.Errorf("%w: penalty_last_n must be >= 0", Err)
	}

	if err := requireOccurrence(c.WorkerPromptTemplate, "worker_prompt_template", "{SYS_PROMPT}"); err != nil {
		return err
	}
	if err := requireOccurrence(c.WorkerPromptTemplate, "worker_prompt_template", "{TEXT}"); err != nil {
		return err
	}
	if err := requireOccurrence(c.MetaPromptTemplate, "meta_prompt_template", "{TEXT}"); err != nil {
		return err
	}
	for _, t := range []struct{ tmpl, name string }{
		{c.IntermediateReducePrompt, "intermediate_reduce_prompt"},
		{c.FinalReducePrompt, "final_reduce_prompt"},
	} {
		if err := requireOccurrence(t.tmpl, t.name, "{SYS_PROMPT}"); err != nil {
			return err
		}
		if err := requireOccurrence(t.tmpl, t.name, "{TEXT}"); err != nil {
			return err
		}
	}

	for i, pattern := range c.Redact.Patterns {
		if _, err := compileRegexp(pattern); err != nil {
			return fmt.Errorf("%w: redact.patterns[%d] %q: %v", Err, i, pattern, err)
		}
	}

	return nil
}

func requireOccurrence(template, name, placeholder string) error {
	if strings.Count(template, placeholder) < 1 {
		return fmt.Errorf("%w: %s must contain %s", Err, name, placeholder)
	}
	return nil
}
