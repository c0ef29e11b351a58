package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"yelp-scraper/utils"
)

var (
	// ErrStrategiesExhausted is wrapped by every terminal FetchError.
	ErrStrategiesExhausted = errors.New("fetch: all strategies exhausted")
	// ErrNavigation marks page navigation and browser session failures.
	ErrNavigation = errors.New("fetch: navigation failed")
)

// Strategy renders one URL. Implementations own their timeout and options.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, url string) (*Page, error)
}

// FetchError is the terminal failure of a cascade: no strategy produced a 200.
type FetchError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrStrategiesExhausted, e.Last}
}

// IsRecoverable reports whether err is a timeout or a navigation/session
// failure worth retrying on the same strategy.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNavigation) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "net::err_", "navigation"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// StrategyStats accumulates attempt outcomes for one strategy.
type StrategyStats struct {
	Attempts  int
	Successes int
	Failures  int
}

// Cascade tries its strategies in order until one returns a 200 page.
type Cascade struct {
	strategies []Strategy
	maxRetries int
	backoff    utils.Backoff
	jitterMin  time.Duration
	jitterMax  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *utils.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	stats map[string]*StrategyStats
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithMaxRetries sets the attempts made per strategy. Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(c *Cascade) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the wait between attempts of the same strategy.
func WithBackoff(b utils.Backoff) Option {
	return func(c *Cascade) { c.backoff = b }
}

// WithStrategyJitter sets the random pause taken before each strategy starts.
func WithStrategyJitter(lo, hi time.Duration) Option {
	return func(c *Cascade) {
		c.jitterMin = lo
		c.jitterMax = hi
	}
}

// WithSleeper replaces the context-aware sleep. Tests use it to skip waits.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Cascade) { c.sleep = fn }
}

// WithRand sets the random source for jitter and backoff.
func WithRand(rng *rand.Rand) Option {
	return func(c *Cascade) { c.rng = rng }
}

// NewCascade builds a cascade over strategies, tried in the given order.
func NewCascade(logger *utils.Logger, strategies []Strategy, opts ...Option) *Cascade {
	c := &Cascade{
		strategies: strategies,
		maxRetries: 3,
		backoff:    utils.DefaultBackoff(),
		jitterMin:  500 * time.Millisecond,
		jitterMax:  2500 * time.Millisecond,
		sleep:      utils.Sleep,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:      make(map[string]*StrategyStats),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the first status-200 page, or a *FetchError once every
// strategy has used up its retries.
func (c *Cascade) Fetch(ctx context.Context, url string) (*Page, error) {
	attempts := 0
	var lastErr error

	for _, st := range c.strategies {
		if err := c.sleep(ctx, c.jitter()); err != nil {
			return nil, &FetchError{URL: url, Attempts: attempts, Last: err}
		}

		for attempt := 0; attempt < c.maxRetries; attempt++ {
			attempts++
			page, err := st.Attempt(ctx, url)

			switch {
			case err == nil && page != nil && page.Status == http.StatusOK:
				c.record(st.Name(), true)
				c.logger.Info("[fetch] strategy=%s attempt=%d/%d outcome=ok url=%s",
					st.Name(), attempt+1, c.maxRetries, url)
				return page, nil
			case err == nil && page == nil:
				lastErr = fmt.Errorf("%s: empty response", st.Name())
				c.logger.Warn("[fetch] strategy=%s attempt=%d/%d outcome=empty url=%s",
					st.Name(), attempt+1, c.maxRetries, url)
			case err == nil:
				lastErr = fmt.Errorf("%s: status %d", st.Name(), page.Status)
				c.logger.Warn("[fetch] strategy=%s attempt=%d/%d outcome=status status=%d url=%s",
					st.Name(), attempt+1, c.maxRetries, page.Status, url)
			case IsRecoverable(err):
				lastErr = err
				c.logger.Warn("[fetch] strategy=%s attempt=%d/%d outcome=error recoverable=true url=%s err=%v",
					st.Name(), attempt+1, c.maxRetries, url, err)
			default:
				lastErr = err
				c.logger.Error("[fetch] strategy=%s attempt=%d/%d outcome=error recoverable=false url=%s err=%v",
					st.Name(), attempt+1, c.maxRetries, url, err)
			}
			c.record(st.Name(), false)

			if ctx.Err() != nil {
				return nil, &FetchError{URL: url, Attempts: attempts, Last: ctx.Err()}
			}
			if attempt == c.maxRetries-1 {
				break
			}
			delay := c.delay(attempt)
			c.logger.Debug("[fetch] sleeping %v before retry", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &FetchError{URL: url, Attempts: attempts, Last: err}
			}
		}

		c.logger.Info("[fetch] %s failed after %d retries, switching to next strategy", st.Name(), c.maxRetries)
	}

	c.logger.Error("[fetch] all strategies failed for %s", url)
	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return nil, &FetchError{URL: url, Attempts: attempts, Last: lastErr}
}

// Stats returns a snapshot of the accumulated per-strategy counters.
func (c *Cascade) Stats() map[string]StrategyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]StrategyStats, len(c.stats))
	for name, s := range c.stats {
		out[name] = *s
	}
	return out
}

func (c *Cascade) record(name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, exists := c.stats[name]
	if !exists {
		s = &StrategyStats{}
		c.stats[name] = s
	}
	s.Attempts++
	if ok {
		s.Successes++
	} else {
		s.Failures++
	}
}

func (c *Cascade) jitter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return utils.Uniform(c.rng, c.jitterMin, c.jitterMax)
}

func (c *Cascade) delay(attempt int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff.Delay(attempt, c.rng)
}
