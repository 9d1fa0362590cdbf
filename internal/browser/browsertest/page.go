// Package browsertest provides a scriptable browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/review-harvester/internal/browser"
)

// Page records calls and delegates to optional hooks. A nil hook succeeds
// with zero values.
type Page struct {
	NavigateFunc  func(url string) error
	WaitFunc      func(selector string, timeout time.Duration) error
	AttributeFunc func(selector, name string, timeout time.Duration) (string, bool, error)
	ClickFunc     func(selector string, timeout time.Duration) error
	TypeFunc      func(selector, text string, timeout time.Duration) error
	HTMLFunc      func() (string, error)
	EvalFunc      func(expression string, out any) error

	mu     sync.Mutex
	calls  []string
	closed int
}

var _ browser.Page = (*Page)(nil)

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

// Calls returns the recorded call log.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Closed returns how many times Close was called.
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Navigate implements browser.Page.
func (p *Page) Navigate(url string) error {
	p.record("navigate %s", url)
	if p.NavigateFunc != nil {
		return p.NavigateFunc(url)
	}
	return nil
}

// WaitPresent implements browser.Page.
func (p *Page) WaitPresent(selector string, timeout time.Duration) error {
	p.record("wait %s", selector)
	if p.WaitFunc != nil {
		return p.WaitFunc(selector, timeout)
	}
	return nil
}

// Attribute implements browser.Page.
func (p *Page) Attribute(selector, name string, timeout time.Duration) (string, bool, error) {
	p.record("attr %s %s", selector, name)
	if p.AttributeFunc != nil {
		return p.AttributeFunc(selector, name, timeout)
	}
	return "", false, nil
}

// Click implements browser.Page.
func (p *Page) Click(selector string, timeout time.Duration) error {
	p.record("click %s", selector)
	if p.ClickFunc != nil {
		return p.ClickFunc(selector, timeout)
	}
	return nil
}

// Type implements browser.Page.
func (p *Page) Type(selector, text string, timeout time.Duration) error {
	p.record("type %s %q", selector, text)
	if p.TypeFunc != nil {
		return p.TypeFunc(selector, text, timeout)
	}
	return nil
}

// HTML implements browser.Page.
func (p *Page) HTML() (string, error) {
	p.record("html")
	if p.HTMLFunc != nil {
		return p.HTMLFunc()
	}
	return "", nil
}

// Eval implements browser.Page.
func (p *Page) Eval(expression string, out any) error {
	p.record("eval")
	if p.EvalFunc != nil {
		return p.EvalFunc(expression, out)
	}
	return nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

// Factory hands out pages built by New, counting how many were opened.
type Factory struct {
	New func() *Page
	Err error

	mu     sync.Mutex
	opened []*Page
}

// NewPage implements browser.Factory.
func (f *Factory) NewPage(context.Context) (browser.Page, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	p := &Page{}
	if f.New != nil {
		p = f.New()
	}
	f.mu.Lock()
	f.opened = append(f.opened, p)
	f.mu.Unlock()
	return p, nil
}

// Opened returns every page handed out so far.
func (f *Factory) Opened() []*Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Page(nil), f.opened...)
}
