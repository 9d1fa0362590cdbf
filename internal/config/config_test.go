package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
files:
  input: in/urls.txt
  verified: out/verified.txt
fetch:
  timeout: 4s
  concurrency: 8
  cloudflare_bypass: true
  headers:
    Accept-Language: en-US
browser:
  headless: false
  max_parallel: 2
dedup:
  max_attempts: 7
  sweep_delay: 250ms
  max_sweep_delay: 4s
verify:
  keyword: absurd
  workers: 3
  sub_batches: 2
  sub_batch_size: 10
scrape:
  max_context_words: 80
metrics:
  addr: ":9100"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "in/urls.txt", cfg.Files.Input)
	assert.Equal(t, "out/verified.txt", cfg.Files.Verified)
	assert.Equal(t, "data/no_match_urls.txt", cfg.Files.NoMatch)
	assert.Equal(t, 4*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.True(t, cfg.Fetch.CloudflareBypass)
	assert.Equal(t, "en-US", cfg.Fetch.Headers["accept-language"])
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2, cfg.Browser.MaxParallel)
	assert.Equal(t, 7, cfg.Dedup.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Dedup.SweepDelay)
	assert.Equal(t, 4*time.Second, cfg.Dedup.MaxSweepDelay)
	assert.Equal(t, "absurd", cfg.Verify.Keyword)
	assert.Equal(t, 3, cfg.Verify.Workers)
	assert.Equal(t, 2, cfg.Verify.SubBatches)
	assert.Equal(t, 10, cfg.Verify.SubBatchSize)
	assert.Equal(t, 80, cfg.Scrape.MaxContextWords)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, []string{"out/verified.txt", "data/no_match_urls.txt", "data/failed_urls.txt"}, cfg.OutcomeStores())
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 50, cfg.Dedup.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Dedup.SweepDelay)
	assert.Zero(t, cfg.Dedup.MaxSweepDelay)
	assert.Equal(t, 15*time.Second, cfg.Dedup.SlowWait)
	assert.Equal(t, 500*time.Millisecond, cfg.Dedup.SlowPause)
	assert.Equal(t, "kafkaesque", cfg.Verify.Keyword)
	assert.Equal(t, 3, cfg.Verify.SubBatches)
	assert.Equal(t, 50, cfg.Verify.SubBatchSize)
	assert.Equal(t, 25, cfg.Verify.MaxTasksPerWorker)
	assert.Equal(t, 6*time.Second, cfg.Verify.CardWait)
	assert.Equal(t, DefaultWorkers(), cfg.Verify.Workers)
	assert.Equal(t, 500, cfg.Scrape.MaxContextWords)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HARVESTER_VERIFY_KEYWORD", "labyrinthine")
	t.Setenv("HARVESTER_DEDUP_SWEEP_DELAY", "2s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "labyrinthine", cfg.Verify.Keyword)
	assert.Equal(t, 2*time.Second, cfg.Dedup.SweepDelay)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"input", func(c *Config) { c.Files.Input = "" }, "files.input is required"},
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout must be > 0"},
		{"concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }, "fetch.concurrency must be > 0"},
		{"rps", func(c *Config) { c.Fetch.RateLimitRPS = -1 }, "fetch.rate_limit_rps must be >= 0"},
		{"max parallel", func(c *Config) { c.Browser.MaxParallel = -1 }, "browser.max_parallel must be >= 0"},
		{"attempts", func(c *Config) { c.Dedup.MaxAttempts = 0 }, "dedup.max_attempts must be > 0"},
		{"sweep delay", func(c *Config) { c.Dedup.SweepDelay = -time.Second }, "dedup.sweep_delay must be >= 0"},
		{"max sweep delay", func(c *Config) { c.Dedup.MaxSweepDelay = -time.Second }, "dedup.max_sweep_delay must be >= 0"},
		{"slow wait", func(c *Config) { c.Dedup.SlowWait = 0 }, "dedup.slow_wait must be > 0"},
		{"keyword", func(c *Config) { c.Verify.Keyword = "  " }, "verify.keyword is required"},
		{"workers", func(c *Config) { c.Verify.Workers = 0 }, "verify.workers must be > 0"},
		{"sub batches", func(c *Config) { c.Verify.SubBatches = 0 }, "verify.sub_batches must be > 0"},
		{"sub batch size", func(c *Config) { c.Verify.SubBatchSize = 0 }, "verify.sub_batch_size must be > 0"},
		{"recycle", func(c *Config) { c.Verify.MaxTasksPerWorker = -1 }, "verify.max_tasks_per_worker must be >= 0"},
		{"scrape workers", func(c *Config) { c.Scrape.Workers = 0 }, "scrape.workers must be > 0"},
		{"context words", func(c *Config) { c.Scrape.MaxContextWords = 0 }, "scrape.max_context_words must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.EqualError(t, cfg.Validate(), tt.want)
		})
	}
}
