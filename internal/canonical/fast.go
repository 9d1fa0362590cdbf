package canonical

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/review-harvester/internal/work"
)

// DefaultUserAgent identifies plain HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// FastConfig controls the HTTP resolver.
type FastConfig struct {
	UserAgent        string
	Timeout          time.Duration
	Headers          map[string]string
	CloudflareBypass bool
	RPS              float64
	Burst            int
}

// FastResolver fetches the work page over HTTP and reads og:url from the
// static markup.
type FastResolver struct {
	cfg     FastConfig
	base    *colly.Collector
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// NewFast builds a FastResolver.
func NewFast(cfg FastConfig, logger *zap.Logger) *FastResolver {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	var transport http.RoundTripper = newHTTPTransport()
	if cfg.CloudflareBypass {
		transport = cloudflarebp.AddCloudFlareByPass(transport)
	}
	c.WithTransport(transport)
	// The HTTP client is shared by every clone, so its timeout is set once.
	c.SetRequestTimeout(cfg.Timeout)
	c.UserAgent = cfg.UserAgent

	return &FastResolver{
		cfg:     cfg,
		base:    c,
		limiter: ratelimit.New(ratelimit.Config{RPS: cfg.RPS, Burst: cfg.Burst}),
		logger:  logger,
	}
}

// Resolve implements Resolver.
func (r *FastResolver) Resolve(ctx context.Context, rawURL string) work.Resolution {
	if err := r.limiter.Wait(ctx, rawURL); err != nil {
		return work.UnresolvedFor(rawURL, err)
	}

	res, err := r.fetch(ctx, rawURL)
	if res.status != 0 && res.status != http.StatusOK {
		r.logger.Debug("fast resolve non-200", zap.String("url", rawURL), zap.Int("status", res.status))
		return work.Resolution{URL: rawURL, Status: work.Unresolved, Reason: fmt.Sprintf("HTTP%d", res.status)}
	}
	if err != nil {
		r.logger.Debug("fast resolve failed",
			zap.String("url", rawURL),
			zap.String("kind", work.ErrorKind(err)),
			zap.Error(err),
		)
		return work.UnresolvedFor(rawURL, err)
	}

	canonical, ok := FromHTML(res.body)
	if !ok {
		return work.Resolution{URL: rawURL, Status: work.Unresolved, Reason: "NoCanonical"}
	}
	return work.FromCanonical(rawURL, canonical)
}

func (r *FastResolver) fetch(ctx context.Context, rawURL string) (fetchResult, error) {
	var res fetchResult
	collector := r.buildCollector(&res)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fetchResult{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if res.err != nil {
			return res, fmt.Errorf("colly response failed: %w", res.err)
		}
		if err != nil {
			return res, fmt.Errorf("colly visit failed: %w", err)
		}
		return res, nil
	}
}

func (r *FastResolver) buildCollector(res *fetchResult) *colly.Collector {
	collector := r.base.Clone()
	r.configureCollectorHooks(collector, res)
	return collector
}

func (r *FastResolver) configureCollectorHooks(hooks collectorHooks, res *fetchResult) {
	hooks.OnRequest(func(req *colly.Request) {
		for key, value := range r.cfg.Headers {
			req.Headers.Set(key, value)
		}
	})
	hooks.OnResponse(func(resp *colly.Response) {
		res.status = resp.StatusCode
		res.body = append([]byte(nil), resp.Body...)
	})
	hooks.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			res.status = resp.StatusCode
		}
		res.err = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
