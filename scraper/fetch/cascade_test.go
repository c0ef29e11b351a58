package fetch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"yelp-scraper/utils"
)

// scriptedStrategy returns canned results in order, repeating the last one.
type scriptedStrategy struct {
	name    string
	results []func() (*Page, error)
	calls   int
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Attempt(ctx context.Context, url string) (*Page, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i]()
}

func timeout() (*Page, error) { return nil, context.DeadlineExceeded }

func pageWith(t *testing.T, status int, body string) func() (*Page, error) {
	t.Helper()
	p, err := NewPage("https://example.test/x", status, body)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	return func() (*Page, error) { return p, nil }
}

func newTestCascade(strategies ...Strategy) (*Cascade, *[]time.Duration) {
	var slept []time.Duration
	c := NewCascade(utils.NewLoggerTo(io.Discard), strategies,
		WithMaxRetries(3),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return ctx.Err()
		}),
	)
	return c, &slept
}

func TestCascadeFallsThroughToNextStrategy(t *testing.T) {
	first := &scriptedStrategy{name: "stealth", results: []func() (*Page, error){timeout}}
	second := &scriptedStrategy{name: "browser", results: []func() (*Page, error){
		pageWith(t, 200, "<html><body><p>second</p></body></html>"),
	}}
	third := &scriptedStrategy{name: "http", results: []func() (*Page, error){timeout}}

	c, slept := newTestCascade(first, second, third)
	page, err := c.Fetch(context.Background(), "https://example.test/x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := page.Find("p").Text(); got != "second" {
		t.Errorf("page body = %q; want second strategy's page", got)
	}
	if first.calls != 3 {
		t.Errorf("first strategy attempts = %d; want 3", first.calls)
	}
	if second.calls != 1 {
		t.Errorf("second strategy attempts = %d; want 1", second.calls)
	}
	if third.calls != 0 {
		t.Errorf("third strategy should not run, got %d attempts", third.calls)
	}

	// jitter before stealth, 2 backoffs, jitter before browser
	if len(*slept) != 4 {
		t.Errorf("sleep calls = %d; want 4", len(*slept))
	}

	stats := c.Stats()
	if s := stats["stealth"]; s.Attempts != 3 || s.Failures != 3 || s.Successes != 0 {
		t.Errorf("stealth stats = %+v", s)
	}
	if s := stats["browser"]; s.Attempts != 1 || s.Successes != 1 {
		t.Errorf("browser stats = %+v", s)
	}
}

func TestCascadeNon200IsFailure(t *testing.T) {
	st := &scriptedStrategy{name: "http", results: []func() (*Page, error){
		pageWith(t, 503, "<html></html>"),
		pageWith(t, 200, "<html><body>ok</body></html>"),
	}}

	c, _ := newTestCascade(st)
	page, err := c.Fetch(context.Background(), "https://example.test/x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Status != 200 {
		t.Errorf("status = %d; want 200", page.Status)
	}
	if st.calls != 2 {
		t.Errorf("attempts = %d; want 2", st.calls)
	}
	if s := c.Stats()["http"]; s.Failures != 1 || s.Successes != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCascadeExhausted(t *testing.T) {
	a := &scriptedStrategy{name: "a", results: []func() (*Page, error){timeout}}
	b := &scriptedStrategy{name: "b", results: []func() (*Page, error){pageWith(t, 403, "<html></html>")}}

	c, _ := newTestCascade(a, b)
	_, err := c.Fetch(context.Background(), "https://example.test/x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrStrategiesExhausted) {
		t.Errorf("error %v does not wrap ErrStrategiesExhausted", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fe.Attempts != 6 {
		t.Errorf("Attempts = %d; want 6", fe.Attempts)
	}
}

func TestCascadeStopsOnCancelledContext(t *testing.T) {
	a := &scriptedStrategy{name: "a", results: []func() (*Page, error){timeout}}
	c, _ := newTestCascade(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, "https://example.test/x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
	if a.calls != 0 {
		t.Errorf("strategy ran %d times after cancel", a.calls)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{ErrNavigation, true},
		{errors.New("rod: target closed"), true},
		{errors.New("page load error net::ERR_CONNECTION_RESET"), true},
		{errors.New("invalid selector"), false},
	}
	for _, tt := range tests {
		if got := IsRecoverable(tt.err); got != tt.want {
			t.Errorf("IsRecoverable(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}
