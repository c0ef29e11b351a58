package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// StealthStrategy renders pages in a full browser with fingerprint evasion
// scripts injected before any page script runs.
type StealthStrategy struct {
	bin       string
	userAgent string
	timeout   time.Duration
	settle    time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

func NewStealthStrategy(chromeBin, userAgent string, timeout time.Duration) *StealthStrategy {
	return &StealthStrategy{
		bin:       chromeBin,
		userAgent: userAgent,
		timeout:   timeout,
		settle:    3 * time.Second,
	}
}

func (s *StealthStrategy) Name() string { return "stealth" }

// connect launches the browser on first use and reuses it afterwards.
func (s *StealthStrategy) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled")
	if s.bin != "" {
		l = l.Bin(s.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("stealth: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("stealth: connect browser: %w", err)
	}
	s.browser = browser
	return browser, nil
}

func (s *StealthStrategy) Attempt(ctx context.Context, url string) (*Page, error) {
	browser, err := s.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("%w: stealth: open page: %v", ErrNavigation, err)
	}
	defer page.Close()

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	p := page.Context(tctx)

	if s.userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.userAgent,
			AcceptLanguage: "fr-FR,fr;q=0.9",
		}); err != nil {
			return nil, fmt.Errorf("stealth: set user agent: %w", err)
		}
	}

	status := 0
	waitDocument := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("%w: stealth: %v", ErrNavigation, err)
	}
	waitDocument()
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: stealth: wait load: %v", ErrNavigation, err)
	}

	select {
	case <-time.After(s.settle):
	case <-tctx.Done():
		return nil, tctx.Err()
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("stealth: read dom: %w", err)
	}

	finalURL := url
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return NewPage(finalURL, status, html)
}

// Close shuts the browser down if it was started.
func (s *StealthStrategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
}
