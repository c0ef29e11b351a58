package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserStrategy renders pages in a lightweight headless Chrome driven by chromedp.
type BrowserStrategy struct {
	timeout time.Duration
	settle  time.Duration

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrows context.CancelFunc

	once     sync.Once
	startErr error
}

// NewBrowserStrategy prepares (but does not launch) a headless Chrome.
func NewBrowserStrategy(chromeBin, userAgent string, timeout time.Duration) *BrowserStrategy {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrows := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserStrategy{
		timeout:     timeout,
		settle:      2 * time.Second,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelBrows: cancelBrows,
	}
}

func (b *BrowserStrategy) Name() string { return "browser" }

func (b *BrowserStrategy) start() error {
	b.once.Do(func() {
		if err := chromedp.Run(b.browserCtx); err != nil {
			b.startErr = fmt.Errorf("browser: start chrome: %w", err)
		}
	})
	return b.startErr
}

// Attempt opens a fresh tab, navigates, waits for the page to settle and
// returns the rendered DOM.
func (b *BrowserStrategy) Attempt(ctx context.Context, url string) (*Page, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("%w: browser: %v", ErrNavigation, err)
	}

	var html, location string
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(b.settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: read dom: %w", err)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	return NewPage(location, status, html)
}

// Close shuts the browser down.
func (b *BrowserStrategy) Close() {
	b.cancelBrows()
	b.cancelAlloc()
}

// FindChromeBinary locates a Chrome/Chromium binary, or returns "".
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
