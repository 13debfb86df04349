package ngramlm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, Complain, cfg.UnknownMissing)
	assert.Equal(t, ThrowUp, cfg.SentenceMarkerMissing)
	assert.Equal(t, ThrowUp, cfg.PositiveLogProbability)
	assert.Equal(t, float32(-100), cfg.UnknownMissingLogProb)
	assert.Equal(t, float32(1.5), cfg.ProbingMultiplier)
	assert.Equal(t, PopulateOrRead, cfg.LoadMethod)
	assert.True(t, cfg.IncludeVocab)
	assert.Equal(t, MaxOrder, cfg.maxOrder())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown action", func(c *Config) { c.UnknownMissing = 3 }},
		{"marker action", func(c *Config) { c.SentenceMarkerMissing = 7 }},
		{"positive action", func(c *Config) { c.PositiveLogProbability = 3 }},
		{"positive unknown logprob", func(c *Config) { c.UnknownMissingLogProb = 0.5 }},
		{"multiplier one", func(c *Config) { c.ProbingMultiplier = 1 }},
		{"write method", func(c *Config) { c.WriteMethod = 2 }},
		{"rest function", func(c *Config) { c.RestFunction = 2 }},
		{"prob bits", func(c *Config) { c.ProbBits = 0 }},
		{"backoff bits", func(c *Config) { c.BackoffBits = 26 }},
		{"bhiksha bits", func(c *Config) { c.PointerBhikshaBits = 33 }},
		{"load method", func(c *Config) { c.LoadMethod = ParallelRead + 1 }},
		{"max order", func(c *Config) { c.MaxOrder = MaxOrder + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
unknown_missing: throw_up
sentence_marker_missing: complain
load_method: parallel_read
rest_function: rest_lower
write_method: write_mmap
probing_multiplier: 2
max_order: 4
`))
	require.NoError(t, err)

	assert.Equal(t, ThrowUp, cfg.UnknownMissing)
	assert.Equal(t, Complain, cfg.SentenceMarkerMissing)
	assert.Equal(t, ParallelRead, cfg.LoadMethod)
	assert.Equal(t, RestLower, cfg.RestFunction)
	assert.Equal(t, WriteMmap, cfg.WriteMethod)
	assert.Equal(t, float32(2), cfg.ProbingMultiplier)
	assert.Equal(t, 4, cfg.maxOrder())
	// Unset fields keep their defaults.
	assert.Equal(t, ThrowUp, cfg.PositiveLogProbability)
	assert.Equal(t, uint8(8), cfg.ProbBits)

	_, err = ParseConfig([]byte("load_method: eager\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("probing_multiplier: 0.5\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoadMethod = Lazy
	cfg.PositiveLogProbability = Silent
	cfg.TemporaryDirectoryPrefix = "/var/tmp"

	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "load_method: lazy")
	assert.Contains(t, string(data), "positive_log_probability: silent")

	got, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestParseEnums(t *testing.T) {
	a, err := ParseWarningAction(" Throw_Up ")
	require.NoError(t, err)
	assert.Equal(t, ThrowUp, a)

	a, err = ParseWarningAction("throwup")
	require.NoError(t, err)
	assert.Equal(t, ThrowUp, a)

	m, err := ParseLoadMethod("populate_or_lazy")
	require.NoError(t, err)
	assert.Equal(t, PopulateOrLazy, m)

	_, err = ParseLoadMethod("mmap")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Equal(t, "9", LoadMethod(9).String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("show_progress: false\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.ShowProgress)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
