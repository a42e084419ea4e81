package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FetchError is returned when a request still fails after all retries.
// Callers use it to decide whether to skip the jurisdiction for this run.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts: status %d", e.URL, e.Attempts, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client wraps an HTTP session with retries, per-origin rate limiting and
// user-agent rotation. Politeness toward the scraped portals is the point;
// throughput is not.
type Client struct {
	http       *http.Client
	userAgents []string
	maxRetries int
	backoff    time.Duration
	delay      time.Duration

	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	requestCount int
	uaIndex      int
}

type Option func(*Client)

// WithBackoff overrides the base retry backoff (exponential: base, 2x, 4x).
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient builds a scraping client. delay is the minimum spacing between
// consecutive requests to the same origin.
func NewClient(delay time.Duration, userAgents []string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgents: userAgents,
		maxRetries: 3,
		backoff:    time.Second,
		delay:      delay,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil, "")
}

// PostForm submits a URL-encoded form.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded")
}

// Do performs a request with rate limiting and retries. Responses with
// status 429 or 5xx and transport errors are retried with exponential
// backoff; anything else non-2xx fails immediately.
func (c *Client) Do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.waitOrigin(ctx, rawURL); err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytesReader(payload))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return data, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastStatus = resp.StatusCode
			lastErr = nil
		default:
			return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Attempts: attempt + 1}
		}
	}

	return nil, &FetchError{URL: rawURL, StatusCode: lastStatus, Attempts: c.maxRetries + 1, Err: lastErr}
}

func (c *Client) waitOrigin(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	c.mu.Lock()
	lim, ok := c.limiters[u.Host]
	if !ok {
		if c.delay <= 0 {
			lim = rate.NewLimiter(rate.Inf, 1)
		} else {
			lim = rate.NewLimiter(rate.Every(c.delay), 1)
		}
		c.limiters[u.Host] = lim
	}
	c.mu.Unlock()

	return lim.Wait(ctx)
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	c.mu.Lock()
	c.requestCount++
	// Rotate the user agent every 10 requests
	if c.requestCount%10 == 0 && len(c.userAgents) > 0 {
		c.uaIndex = (c.uaIndex + 1) % len(c.userAgents)
	}
	ua := ""
	if len(c.userAgents) > 0 {
		ua = c.userAgents[c.uaIndex]
	}
	c.mu.Unlock()

	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return strings.NewReader(string(b))
}
