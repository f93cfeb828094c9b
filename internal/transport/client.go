// Package transport provides the retrying HTTP client every adapter and
// channel delivers through: bounded attempts, exponential backoff with
// jitter, separate connect and read timeouts, and redacted error logging.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const userAgent = "warnmelder/1.0 (+batch)"

// Config bounds one client. Retries counts total attempts including the
// first; a value below 1 is treated as 1.
type Config struct {
	Retries        int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client is a retrying HTTP client. On connection errors or a status of
// 300 or higher it retries up to the configured number of total attempts,
// sleeping 2^(attempt-1) seconds plus uniform jitter in [0, 0.5s) between
// attempts. The final failure is returned as an ordinary error; response
// bodies, query strings, and secret values never reach the logs.
type Client struct {
	http    *http.Client
	retries int
	clock   clockwork.Clock
	logger  *slog.Logger
	retried prometheus.Counter

	// jitter returns the additive backoff jitter. Swapped in tests.
	jitter func() time.Duration
}

// New creates a Client. The retry counter may be nil.
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger, retried prometheus.Counter) *Client {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &Client{
		http: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		retries: retries,
		clock:   clock,
		logger:  logger,
		retried: retried,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
		},
	}
}

// GetJSON performs a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	body, err := c.do(ctx, http.MethodGet, rawURL, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", redactURL(rawURL), err)
	}
	return nil
}

// GetText performs a GET and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PostJSON performs a POST with a JSON body. Query parameters may carry
// credentials; they are stripped before any logging.
func (c *Client) PostJSON(ctx context.Context, rawURL string, query url.Values, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, rawURL, query, data)
	return err
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body []byte) ([]byte, error) {
	full := rawURL
	if len(query) > 0 {
		full = rawURL + "?" + query.Encode()
	}
	safe := redactURL(rawURL)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if c.retried != nil {
				c.retried.Inc()
			}
			if err := c.sleep(ctx, backoff(attempt-1)+c.jitter()); err != nil {
				return nil, err
			}
		}

		data, err := c.once(ctx, method, full, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < c.retries {
			c.logger.Info("request failed, retrying",
				"method", method, "url", safe, "attempt", attempt, "error", redactError(err))
		}
	}

	c.logger.Warn("request failed after all attempts",
		"method", method, "url", safe, "attempts", c.retries, "error", redactError(lastErr))
	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, safe, c.retries, sanitizeErr(lastErr))
}

// once executes a single attempt. The response body is fully read so the
// connection is always released, but it is never included in errors.
func (c *Client) once(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return data, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// backoff returns the base delay before attempt k+1: 2^(k-1) seconds for
// the k-th failure.
func backoff(failed int) time.Duration {
	return time.Duration(1<<(failed-1)) * time.Second
}

// StatusError reports a non-success HTTP status. Only the code is carried;
// the body is deliberately dropped.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// sanitizeErr returns an error safe to propagate to callers that log it
// raw. Status errors carry no URL and are kept intact for errors.As;
// everything else, notably url.Error with its full query string, is
// reduced to its redacted form.
func sanitizeErr(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return se
	}
	return errors.New(redactError(err))
}

// redactURL strips query parameters and fragments, which may carry access
// keys, leaving scheme, host, and path for the logs. Telegram-style bot
// tokens travel in the path and are masked there.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	segs := strings.Split(u.Path, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, "bot") && strings.Contains(seg, ":") {
			segs[i] = "bot<redacted>"
		}
	}
	u.Path = strings.Join(segs, "/")
	return u.String()
}

// redactError keeps status codes and error types but drops anything that
// could embed a full URL from the standard library client.
func redactError(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Sprintf("%s %s: %T", ue.Op, redactURL(ue.URL), ue.Err)
	}
	return fmt.Sprintf("%T", err)
}
