package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const maxBodyBytes = 10 * 1024 * 1024

// HTTPStrategy fetches a URL without rendering, sending browser-like headers.
type HTTPStrategy struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewHTTPStrategy returns a plain HTTP strategy with the given per-attempt timeout.
func NewHTTPStrategy(timeout time.Duration, userAgent string) *HTTPStrategy {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPStrategy{
		client:    &http.Client{Transport: transport},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (h *HTTPStrategy) Name() string { return "http" }

// Attempt performs one GET. A non-200 response is returned as a page, not an
// error, so the cascade can log the status.
func (h *HTTPStrategy) Attempt(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("http: gzip: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	decoded, err := charset.NewReader(io.LimitReader(body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("http: charset: %w", err)
	}
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}

	return NewPage(resp.Request.URL.String(), resp.StatusCode, string(raw))
}
