// browser.go provides browser automation for leak tests.
// It wraps Rod to launch a Chrome whose pages get the guard shim before
// any page script runs.
package testutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/thesyncim/rtcguard/pkg/guard/browser"
)

// BrowserConfig configures Chrome launch options.
type BrowserConfig struct {
	Headless bool          // Run in headless mode (default: true)
	Timeout  time.Duration // Default operation timeout (default: 30s)

	// Shim is injected into every page opened by Navigate when non-nil.
	Shim *browser.Options

	// ExposeLocalAddresses disables Chrome's own mDNS obfuscation so host
	// candidates carry real addresses, which is what the shim must remove.
	ExposeLocalAddresses bool
}

// DefaultBrowserConfig returns headless Chrome with the strict shim.
func DefaultBrowserConfig() BrowserConfig {
	opts := browser.DefaultOptions()
	return BrowserConfig{
		Headless: true,
		Timeout:  30 * time.Second,
		Shim:     &opts,
	}
}

// BrowserClient wraps Rod with WebRTC-ready Chrome configuration.
type BrowserClient struct {
	browser *rod.Browser
	page    *rod.Page
	shim    *browser.Options
	timeout time.Duration
}

// NewBrowserClient creates a Chrome instance with WebRTC flags:
//   - Fake media streams (no real camera/mic required)
//   - Auto-granted media permissions
//   - No sandbox (for container compatibility)
func NewBrowserClient(cfg BrowserConfig) (*BrowserClient, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("use-fake-device-for-media-stream").
		Set("use-fake-ui-for-media-stream")
	if cfg.ExposeLocalAddresses {
		l = l.Set("disable-features", "WebRtcHideLocalIpsWithMdns")
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &BrowserClient{
		browser: b,
		shim:    cfg.Shim,
		timeout: cfg.Timeout,
	}, nil
}

// Navigate opens a URL in a new page, injecting the shim first.
func (c *BrowserClient) Navigate(url string) (*rod.Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	c.page = page

	if c.shim != nil {
		if _, err := browser.Inject(page, *c.shim); err != nil {
			return nil, err
		}
	}

	if err := page.Timeout(c.timeout).Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return page, nil
}

// Page returns the current page, or nil if none open.
func (c *BrowserClient) Page() *rod.Page {
	return c.page
}

// Eval runs js on the current page and returns its JSON result.
// Promises are awaited.
func (c *BrowserClient) Eval(js string) (interface{}, error) {
	if c.page == nil {
		return nil, errors.New("no page open, call Navigate first")
	}
	result, err := c.page.Timeout(c.timeout).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	return result.Value.Val(), nil
}

// WaitStable waits for the page to be stable (no DOM changes).
func (c *BrowserClient) WaitStable() error {
	if c.page == nil {
		return errors.New("no page open")
	}
	return c.page.WaitStable(c.timeout)
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (c *BrowserClient) Close() error {
	if c.browser != nil {
		return c.browser.Close()
	}
	return nil
}
