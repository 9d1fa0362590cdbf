// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob of the pipeline stages.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Files    FilesConfig    `mapstructure:"files"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Verify   VerifyConfig   `mapstructure:"verify"`
	Discover DiscoverConfig `mapstructure:"discover"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FilesConfig names the URL files and CSV outputs shared between stages.
type FilesConfig struct {
	Input      string `mapstructure:"input"`
	Unique     string `mapstructure:"unique"`
	Discovered string `mapstructure:"discovered"`
	Verified   string `mapstructure:"verified"`
	NoMatch    string `mapstructure:"no_match"`
	Failed     string `mapstructure:"failed"`
	Reviews    string `mapstructure:"reviews"`
	Summary    string `mapstructure:"summary"`
}

// FetchConfig controls the plain HTTP fetcher.
type FetchConfig struct {
	UserAgent        string            `mapstructure:"user_agent"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	Concurrency      int               `mapstructure:"concurrency"`
	Headers          map[string]string `mapstructure:"headers"`
	CloudflareBypass bool              `mapstructure:"cloudflare_bypass"`
	RateLimitRPS     float64           `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int               `mapstructure:"rate_limit_burst"`
}

// BrowserConfig controls headless Chrome sessions.
type BrowserConfig struct {
	Headless          bool              `mapstructure:"headless"`
	UserAgent         string            `mapstructure:"user_agent"`
	WindowWidth       int               `mapstructure:"window_width"`
	WindowHeight      int               `mapstructure:"window_height"`
	NoSandbox         bool              `mapstructure:"no_sandbox"`
	ExecPath          string            `mapstructure:"exec_path"`
	Headers           map[string]string `mapstructure:"headers"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout"`
	StartupTimeout    time.Duration     `mapstructure:"startup_timeout"`
	MaxParallel       int               `mapstructure:"max_parallel"`
}

// DedupConfig controls canonicalization sweeps.
type DedupConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	SweepDelay  time.Duration `mapstructure:"sweep_delay"`
	// MaxSweepDelay switches to jittered exponential backoff from
	// SweepDelay up to this value when it exceeds SweepDelay.
	MaxSweepDelay time.Duration `mapstructure:"max_sweep_delay"`
	SlowWait      time.Duration `mapstructure:"slow_wait"`
	SlowPause     time.Duration `mapstructure:"slow_pause"`
}

// VerifyConfig controls keyword verification batches.
type VerifyConfig struct {
	Keyword           string        `mapstructure:"keyword"`
	Workers           int           `mapstructure:"workers"`
	SubBatches        int           `mapstructure:"sub_batches"`
	SubBatchSize      int           `mapstructure:"sub_batch_size"`
	MaxTasksPerWorker int           `mapstructure:"max_tasks_per_worker"`
	StartJitter       time.Duration `mapstructure:"start_jitter"`
	OverlayWait       time.Duration `mapstructure:"overlay_wait"`
	SearchWait        time.Duration `mapstructure:"search_wait"`
	CardWait          time.Duration `mapstructure:"card_wait"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
}

// DiscoverConfig controls the list crawl.
type DiscoverConfig struct {
	StartURL       string        `mapstructure:"start_url"`
	Delay          time.Duration `mapstructure:"delay"`
	MaxSearchPages int           `mapstructure:"max_search_pages"`
	MaxListPages   int           `mapstructure:"max_list_pages"`
}

// ScrapeConfig controls review collection.
type ScrapeConfig struct {
	Workers         int           `mapstructure:"workers"`
	MaxContextWords int           `mapstructure:"max_context_words"`
	MaxPages        int           `mapstructure:"max_pages"`
	LoadMoreWait    time.Duration `mapstructure:"load_more_wait"`
	MetadataWait    time.Duration `mapstructure:"metadata_wait"`
	PageDelay       time.Duration `mapstructure:"page_delay"`
	ExpandDelay     time.Duration `mapstructure:"expand_delay"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultWorkers leaves two cores for the browsers' own processes.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-2)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")

	v.SetDefault("files.input", "data/input_urls.txt")
	v.SetDefault("files.unique", "data/unique_urls.txt")
	v.SetDefault("files.discovered", "data/discovered_urls.txt")
	v.SetDefault("files.verified", "data/verified_urls.txt")
	v.SetDefault("files.no_match", "data/no_match_urls.txt")
	v.SetDefault("files.failed", "data/failed_urls.txt")
	v.SetDefault("files.reviews", "data/reviews.csv")
	v.SetDefault("files.summary", "data/summary.csv")

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.concurrency", 16)
	v.SetDefault("fetch.cloudflare_bypass", false)
	v.SetDefault("fetch.rate_limit_rps", 0)
	v.SetDefault("fetch.rate_limit_burst", 1)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigation_timeout", 45*time.Second)
	v.SetDefault("browser.startup_timeout", 30*time.Second)
	v.SetDefault("browser.max_parallel", 0)

	v.SetDefault("dedup.max_attempts", 50)
	v.SetDefault("dedup.sweep_delay", 5*time.Second)
	v.SetDefault("dedup.max_sweep_delay", 0)
	v.SetDefault("dedup.slow_wait", 15*time.Second)
	v.SetDefault("dedup.slow_pause", 500*time.Millisecond)

	v.SetDefault("verify.keyword", "kafkaesque")
	v.SetDefault("verify.workers", DefaultWorkers())
	v.SetDefault("verify.sub_batches", 3)
	v.SetDefault("verify.sub_batch_size", 50)
	v.SetDefault("verify.max_tasks_per_worker", 25)
	v.SetDefault("verify.start_jitter", 3*time.Second)
	v.SetDefault("verify.overlay_wait", 3*time.Second)
	v.SetDefault("verify.search_wait", 15*time.Second)
	v.SetDefault("verify.card_wait", 6*time.Second)
	v.SetDefault("verify.settle_delay", 1500*time.Millisecond)

	v.SetDefault("discover.start_url", "https://www.goodreads.com/search?q=kafka&search_type=lists&tab=lists")
	v.SetDefault("discover.delay", time.Second)
	v.SetDefault("discover.max_search_pages", 0)
	v.SetDefault("discover.max_list_pages", 0)

	v.SetDefault("scrape.workers", DefaultWorkers())
	v.SetDefault("scrape.max_context_words", 500)
	v.SetDefault("scrape.max_pages", 100)
	v.SetDefault("scrape.load_more_wait", 15*time.Second)
	v.SetDefault("scrape.metadata_wait", 10*time.Second)
	v.SetDefault("scrape.page_delay", 3*time.Second)
	v.SetDefault("scrape.expand_delay", 500*time.Millisecond)

	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Files.Input == "" {
		return fmt.Errorf("files.input is required")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.RateLimitRPS < 0 {
		return fmt.Errorf("fetch.rate_limit_rps must be >= 0")
	}
	if c.Browser.MaxParallel < 0 {
		return fmt.Errorf("browser.max_parallel must be >= 0")
	}
	if c.Dedup.MaxAttempts <= 0 {
		return fmt.Errorf("dedup.max_attempts must be > 0")
	}
	if c.Dedup.SweepDelay < 0 {
		return fmt.Errorf("dedup.sweep_delay must be >= 0")
	}
	if c.Dedup.MaxSweepDelay < 0 {
		return fmt.Errorf("dedup.max_sweep_delay must be >= 0")
	}
	if c.Dedup.SlowWait <= 0 {
		return fmt.Errorf("dedup.slow_wait must be > 0")
	}
	if strings.TrimSpace(c.Verify.Keyword) == "" {
		return fmt.Errorf("verify.keyword is required")
	}
	if c.Verify.Workers <= 0 {
		return fmt.Errorf("verify.workers must be > 0")
	}
	if c.Verify.SubBatches <= 0 {
		return fmt.Errorf("verify.sub_batches must be > 0")
	}
	if c.Verify.SubBatchSize <= 0 {
		return fmt.Errorf("verify.sub_batch_size must be > 0")
	}
	if c.Verify.MaxTasksPerWorker < 0 {
		return fmt.Errorf("verify.max_tasks_per_worker must be >= 0")
	}
	if c.Scrape.Workers <= 0 {
		return fmt.Errorf("scrape.workers must be > 0")
	}
	if c.Scrape.MaxContextWords <= 0 {
		return fmt.Errorf("scrape.max_context_words must be > 0")
	}
	return nil
}

// OutcomeStores lists the verification outcome files in ledger order.
func (c Config) OutcomeStores() []string {
	return []string{c.Files.Verified, c.Files.NoMatch, c.Files.Failed}
}
