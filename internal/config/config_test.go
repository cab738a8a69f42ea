package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoConfigPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.EqualValues(t, 32768, cfg.MainCtxSize)
	assert.EqualValues(t, 8192, cfg.MetaCtxSize)
	assert.Equal(t, float32(0.2), cfg.SampleTemp)
	assert.False(t, cfg.Dedup.Enabled)
	assert.Empty(t, cfg.Redact.Patterns)
	assert.Contains(t, cfg.WorkerPromptTemplate, "{SYS_PROMPT}")
	assert.Contains(t, cfg.WorkerPromptTemplate, "{TEXT}")
}

func TestLoad_OverridesFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"main_ctx_size": 65536,
		"sample_temp": 0.5,
		"dedup": {"enabled": true},
		"redact": {"patterns": ["\\d{3}-\\d{4}"]}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 65536, cfg.MainCtxSize)
	assert.Equal(t, float32(0.5), cfg.SampleTemp)
	assert.True(t, cfg.Dedup.Enabled)
	assert.Equal(t, []string{`\d{3}-\d{4}`}, cfg.Redact.Patterns)
	assert.Equal(t, path, cfg.ConfigFilePath)
}

func TestLoad_MissingConfigFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	assert.Error(t, err)
}

func TestLoad_InvalidJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadRanges(t *testing.T) {
	base := func() *AppConfig {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("zero main ctx", func(t *testing.T) {
		cfg := base()
		cfg.MainCtxSize = 0
		assert.ErrorIs(t, cfg.Validate(), Err)
	})

	t.Run("top_p out of range", func(t *testing.T) {
		cfg := base()
		cfg.SampleTopP = 1.5
		assert.ErrorIs(t, cfg.Validate(), Err)
	})

	t.Run("negative penalty_last_n", func(t *testing.T) {
		cfg := base()
		cfg.PenaltyLastN = -1
		assert.ErrorIs(t, cfg.Validate(), Err)
	})

	t.Run("template missing placeholder", func(t *testing.T) {
		cfg := base()
		cfg.WorkerPromptTemplate = "no placeholders here"
		assert.ErrorIs(t, cfg.Validate(), Err)
	})

	t.Run("invalid redact pattern", func(t *testing.T) {
		cfg := base()
		cfg.Redact.Patterns = []string{"(unclosed"}
		assert.ErrorIs(t, cfg.Validate(), Err)
	})
}
