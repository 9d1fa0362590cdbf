package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/browser"
	"github.com/JakeFAU/review-harvester/internal/canonical"
	"github.com/JakeFAU/review-harvester/internal/config"
	"github.com/JakeFAU/review-harvester/internal/dedup"
	"github.com/JakeFAU/review-harvester/internal/discover"
	"github.com/JakeFAU/review-harvester/internal/pool"
	"github.com/JakeFAU/review-harvester/internal/retry"
	"github.com/JakeFAU/review-harvester/internal/reviews"
	"github.com/JakeFAU/review-harvester/internal/verify"
)

func browserConfig(cfg config.Config) browser.Config {
	b := cfg.Browser
	return browser.Config{
		Headless:          b.Headless,
		UserAgent:         b.UserAgent,
		WindowWidth:       b.WindowWidth,
		WindowHeight:      b.WindowHeight,
		NoSandbox:         b.NoSandbox,
		ExecPath:          b.ExecPath,
		Headers:           b.Headers,
		NavigationTimeout: b.NavigationTimeout,
		StartupTimeout:    b.StartupTimeout,
		MaxParallel:       b.MaxParallel,
	}
}

func fastConfig(cfg config.Config) canonical.FastConfig {
	f := cfg.Fetch
	return canonical.FastConfig{
		UserAgent:        f.UserAgent,
		Timeout:          f.Timeout,
		Headers:          f.Headers,
		CloudflareBypass: f.CloudflareBypass,
		RPS:              f.RateLimitRPS,
		Burst:            f.RateLimitBurst,
	}
}

func dedupConfig(cfg config.Config) dedup.Config {
	delay := retry.FixedDelay(cfg.Dedup.SweepDelay)
	if cfg.Dedup.MaxSweepDelay > cfg.Dedup.SweepDelay {
		delay = retry.ExponentialDelay(cfg.Dedup.SweepDelay, cfg.Dedup.MaxSweepDelay)
	}
	return dedup.Config{
		Policy: retry.Policy{
			MaxAttempts: cfg.Dedup.MaxAttempts,
			Delay:       delay,
			Stop:        []retry.StopFunc{retry.StopOnEmpty(), retry.StopOnNoProgressAfterFirst()},
		},
		Concurrency: cfg.Fetch.Concurrency,
		SlowPause:   cfg.Dedup.SlowPause,
	}
}

// slowOpener launches one browser session for the whole residue pass.
func slowOpener(launcher *browser.Launcher, wait time.Duration, logger *zap.Logger) dedup.SlowOpener {
	return func(ctx context.Context) (dedup.SlowResolver, error) {
		session, err := launcher.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return canonical.NewSlow(session, wait, logger), nil
	}
}

func discoverConfig(cfg config.Config) discover.Config {
	d := cfg.Discover
	ua := cfg.Fetch.UserAgent
	if ua == "" {
		ua = canonical.DefaultUserAgent
	}
	return discover.Config{
		UserAgent:      ua,
		Timeout:        cfg.Fetch.Timeout,
		Delay:          d.Delay,
		MaxSearchPages: d.MaxSearchPages,
		MaxListPages:   d.MaxListPages,
	}
}

func verifierConfig(cfg config.Config) verify.Config {
	v := cfg.Verify
	return verify.Config{
		OverlayWait: v.OverlayWait,
		SearchWait:  v.SearchWait,
		CardWait:    v.CardWait,
		SettleDelay: v.SettleDelay,
	}
}

func verifyJobConfig(cfg config.Config, logger *zap.Logger) verify.JobConfig {
	v := cfg.Verify
	return verify.JobConfig{
		Keyword:      v.Keyword,
		SubBatches:   v.SubBatches,
		SubBatchSize: v.SubBatchSize,
		Pool: pool.Config{
			Workers:           v.Workers,
			MaxTasksPerWorker: v.MaxTasksPerWorker,
			StartJitter:       v.StartJitter,
			Logger:            logger,
		},
	}
}

func scraperConfig(cfg config.Config) reviews.Config {
	s := cfg.Scrape
	return reviews.Config{
		Keyword:         cfg.Verify.Keyword,
		MaxContextWords: s.MaxContextWords,
		MaxPages:        s.MaxPages,
		OverlayWait:     cfg.Verify.OverlayWait,
		SearchWait:      cfg.Verify.SearchWait,
		CardWait:        cfg.Verify.CardWait,
		LoadMoreWait:    s.LoadMoreWait,
		MetadataWait:    s.MetadataWait,
		SettleDelay:     cfg.Verify.SettleDelay,
		ExpandDelay:     s.ExpandDelay,
		PageDelay:       s.PageDelay,
	}
}

func scrapePoolConfig(cfg config.Config) pool.Config {
	return pool.Config{
		Workers:           cfg.Scrape.Workers,
		MaxTasksPerWorker: cfg.Verify.MaxTasksPerWorker,
		StartJitter:       cfg.Verify.StartJitter,
	}
}
