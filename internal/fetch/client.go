// Package fetch is the crawler's only network boundary.
//
// Every registry page, tree listing, file viewer page and raw file body is
// retrieved through a Fetcher. The Client implementation paces requests with
// a shared rate limiter, retries transient failures with exponential backoff,
// caps body size and decodes the body to UTF-8. CachedFetcher layers an
// optional Redis response cache on top of any Fetcher.
package fetch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/conneroisu/typster/internal/config"
	terrors "github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/version"
)

// Fetcher retrieves the body behind a URL.
//
// Implementations return a *errors.Error of type network for transport
// failures and non-success responses, and the context error when ctx ends.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client defaults.
const (
	DefaultRequestTimeout  = 15 * time.Second
	DefaultRequestInterval = 100 * time.Millisecond
	DefaultMaxRetries      = 3
	DefaultInitialBackoff  = 250 * time.Millisecond
	DefaultMaxBackoff      = 5 * time.Second
	DefaultMaxBodyBytes    = 10 << 20

	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
)

// Client is the HTTP Fetcher.
type Client struct {
	client         *http.Client
	userAgent      string
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxBodyBytes   int64
	logger         logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout bounds each attempt. Zero or negative values fall back to the
// default timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		c.client.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithRequestInterval sets the minimum spacing between requests. Zero
// disables pacing.
func WithRequestInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithRetry sets how many times a transient failure is retried and the
// backoff bounds between attempts.
func WithRetry(maxRetries int, initial, maxBackoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if initial > 0 {
			c.initialBackoff = initial
		}
		if maxBackoff > 0 {
			c.maxBackoff = maxBackoff
		}
	}
}

// WithMaxBodyBytes caps the size of a response body.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithComponent("fetch")
		}
	}
}

// NewClient creates a Client with polite defaults.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c := &Client{
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		userAgent:      version.UserAgent(),
		limiter:        rate.NewLimiter(rate.Every(DefaultRequestInterval), 1),
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		maxBodyBytes:   DefaultMaxBodyBytes,
		logger:         logging.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig creates a Client from the http section of the
// configuration.
func NewClientFromConfig(cfg config.HTTPConfig, logger logging.Logger) *Client {
	return NewClient(
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithRequestInterval(cfg.RequestInterval),
		WithRetry(cfg.MaxRetries, cfg.InitialBackoff, cfg.MaxBackoff),
		WithMaxBodyBytes(cfg.MaxBodyBytes),
		WithLogger(logger),
	)
}

// Fetch performs a GET request and returns the decoded body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(err)
		}

		data, err := c.do(ctx, url)
		if err == nil {
			body = data
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}

		c.logger.Debug(ctx, "Retrying request", "url", url, "attempt", attempt, "error", err.Error())
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, terrors.NewNetworkError(terrors.ErrCodeInvalidURL, url, 0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, terrors.NewNetworkError(terrors.ErrCodeTransport, url, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, terrors.NewNetworkError(terrors.ErrCodeHTTPStatus, url, resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, terrors.NewNetworkError(terrors.ErrCodeTransport, url, resp.StatusCode, err)
	}
	if int64(len(raw)) > c.maxBodyBytes {
		return nil, terrors.NewNetworkError(terrors.ErrCodeBodyTooLarge, url, resp.StatusCode, nil).
			WithContext("limit", c.maxBodyBytes)
	}

	return decode(raw, resp.Header.Get("Content-Type"))
}

// decode converts raw to UTF-8. JSON is always UTF-8. Otherwise a declared
// non UTF-8 charset is honoured, valid UTF-8 is returned as is, and anything
// else is transcoded from the sniffed charset. Sniffing only sees the first
// 1024 bytes, so it never overrides a body that is already valid UTF-8.
func decode(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}

	mediaType, params, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return raw, nil
	}

	declared := strings.ToLower(strings.TrimSpace(params["charset"]))
	if (declared == "" || declared == "utf-8" || declared == "utf8") && utf8.Valid(raw) {
		return raw, nil
	}

	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		// unknown declared charset: hand back the bytes untouched
		return raw, nil
	}

	return io.ReadAll(reader)
}

// retryable reports whether a failed attempt may succeed if repeated.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return Transient(err)
}

// Transient reports whether err is a failure that may clear on its own: a
// transport error, 429 or a 5xx status. Other 4xx statuses, oversized bodies
// and parse failures are permanent.
func Transient(err error) bool {
	if terrors.HasErrorCode(err, terrors.ErrCodeTransport) {
		return true
	}

	status := terrors.StatusCode(err)
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
