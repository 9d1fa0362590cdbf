// Package browser drives isolated headless Chrome sessions through chromedp.
// Each Session owns its own browser process and must be closed by the
// caller.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-harvester/internal/work"
)

// Enter submits a form when appended to typed text.
const Enter = kb.Enter

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ErrNotClickable is returned when a matched element could not be clicked.
var ErrNotClickable = errors.New("element not clickable")

// Config controls how browser sessions are launched.
type Config struct {
	Headless          bool
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NoSandbox         bool
	ExecPath          string
	Headers           map[string]string
	NavigationTimeout time.Duration
	StartupTimeout    time.Duration
	// MaxParallel bounds concurrently open sessions per Launcher. Zero means
	// unbounded.
	MaxParallel int
}

func (c Config) navTimeout() time.Duration {
	if c.NavigationTimeout > 0 {
		return c.NavigationTimeout
	}
	return 45 * time.Second
}

func (c Config) startupTimeout() time.Duration {
	if c.StartupTimeout > 0 {
		return c.StartupTimeout
	}
	return 30 * time.Second
}

// Page is the subset of browser automation the harvesting stages use.
// Timeouts surface as errors wrapping context.DeadlineExceeded.
type Page interface {
	Navigate(url string) error
	WaitPresent(selector string, timeout time.Duration) error
	Attribute(selector, name string, timeout time.Duration) (string, bool, error)
	Click(selector string, timeout time.Duration) error
	Type(selector, text string, timeout time.Duration) error
	HTML() (string, error)
	Eval(expression string, out any) error
	Close() error
}

// Factory opens a fresh Page.
type Factory interface {
	NewPage(ctx context.Context) (Page, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Page, error)

// NewPage implements Factory.
func (f FactoryFunc) NewPage(ctx context.Context) (Page, error) { return f(ctx) }

// AllocatorOptions returns the chromedp exec allocator options for cfg.
func AllocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	var headless any = false
	if cfg.Headless {
		headless = "new"
	}
	width, height := cfg.WindowWidth, cfg.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	opts = append(opts,
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(width, height),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Launcher creates sessions that share a configuration and an optional
// parallelism bound.
type Launcher struct {
	cfg     Config
	limiter chan struct{}
	logger  *zap.Logger
}

// NewLauncher validates cfg and builds a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("browser.max_parallel must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Launcher{cfg: cfg, limiter: limiter, logger: logger}, nil
}

// NewPage implements Factory by launching a new Session.
func (l *Launcher) NewPage(ctx context.Context) (Page, error) {
	return l.NewSession(ctx)
}

// NewSession launches a browser and returns a ready Session. Launch
// failures are reported as *work.CriticalSetupError. A slot wait cut short
// by ctx returns an error wrapping ctx.Err().
func (l *Launcher) NewSession(ctx context.Context) (*Session, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire browser slot: %w", err)
	}
	s, err := newSession(ctx, l.cfg, l.logger, l.release)
	if err != nil {
		l.release()
		return nil, err
	}
	return s, nil
}

func (l *Launcher) acquire(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	select {
	case l.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (l *Launcher) release() {
	if l.limiter == nil {
		return
	}
	select {
	case <-l.limiter:
	default:
	}
}

// Session is one browser process with a single tab.
type Session struct {
	cfg         Config
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	onClose     func()
	closeOnce   sync.Once
	closeErr    error
	logger      *zap.Logger
}

func newSession(ctx context.Context, cfg Config, logger *zap.Logger, onClose func()) (*Session, error) {
	// Sessions outlive caller cancellation so an in-flight task can finish
	// and record its outcome; every wait below is bounded by its own timeout.
	parent := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, AllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Sugar().Debugf))

	s := &Session{
		cfg:         cfg,
		tab:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		onClose:     onClose,
		logger:      logger,
	}

	// The first Run must use the tab context itself; a derived deadline
	// would tear the browser down when it fired.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx, s.setupAction()) }()

	timer := time.NewTimer(cfg.startupTimeout())
	defer timer.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			s.shutdown()
			return nil, &work.CriticalSetupError{Op: "launch browser", Err: err}
		}
	case <-timer.C:
		s.shutdown()
		return nil, &work.CriticalSetupError{Op: "launch browser", Err: context.DeadlineExceeded}
	}
	return s, nil
}

func (s *Session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(s.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(s.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx); err != nil {
			return fmt.Errorf("install webdriver shim: %w", err)
		}
		return nil
	})
}

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx := s.tab
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.tab, timeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(url string) error {
	if err := s.run(s.cfg.navTimeout(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitPresent waits until selector matches a node in the DOM.
func (s *Session) WaitPresent(selector string, timeout time.Duration) error {
	if err := s.run(timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// Attribute waits for selector and reads one of its attributes.
func (s *Session) Attribute(selector, name string, timeout time.Duration) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.run(timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery),
	)
	if err != nil {
		return "", false, fmt.Errorf("read %s[%s]: %w", selector, name, err)
	}
	return value, ok, nil
}

// Click waits for selector and clicks the first match through the DOM API,
// which also reaches elements obscured by overlays.
func (s *Session) Click(selector string, timeout time.Duration) error {
	var clicked bool
	err := s.run(timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(clickScript(selector), &clicked),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("click %s: %w", selector, ErrNotClickable)
	}
	return nil
}

// Type waits for selector to be visible, clears it and sends text.
func (s *Session) Type(selector, text string, timeout time.Duration) error {
	err := s.run(timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// HTML returns the serialized document.
func (s *Session) HTML() (string, error) {
	var html string
	if err := s.run(s.cfg.navTimeout(), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document html: %w", err)
	}
	return html, nil
}

// Eval evaluates a JavaScript expression and decodes its result into out.
func (s *Session) Eval(expression string, out any) error {
	if err := s.run(s.cfg.navTimeout(), chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

func (s *Session) shutdown() error {
	err := chromedp.Cancel(s.tab)
	s.tabCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("browser shutdown", zap.Error(err))
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func clickScript(selector string) string {
	return `(() => { const el = document.querySelector(` + strconv.Quote(selector) + `);` +
		` if (!el) { return false; } el.click(); return true; })()`
}

func toNetworkHeaders(h map[string]string) network.Headers {
	headers := network.Headers{}
	for key, value := range h {
		headers[key] = value
	}
	return headers
}
