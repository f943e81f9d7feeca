package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/logging"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Semantic Scholar Graph API root.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the documented budget for keyed clients (1 req/s).
	DefaultRateLimit = 1.0

	DefaultPageSize    = 100
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 500 * time.Millisecond

	// PaperFields is the fixed field set requested for every paper record.
	PaperFields = "title,authors,abstract,citationCount,referenceCount,externalIds,year"

	// MaxOffset is the provider's pagination ceiling for citation listings.
	MaxOffset = 10000

	// MaxConsecutivePageFailures stops a listing that keeps failing.
	MaxConsecutivePageFailures = 3

	// MaxResponseBytes caps a single response body.
	MaxResponseBytes = 4 << 20

	maxRetryAfter = 30 * time.Second
)

// Client is a rate-limited client for the Semantic Scholar Graph API. It is
// safe for concurrent use; all callers share one limiter.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	apiKey      string
	baseURL     string
	pageSize    int
	maxAttempts int
	baseBackoff time.Duration
	cache       Cache
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the x-api-key header value.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit sets requests per second and burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPageSize sets the page size for citation and reference listings.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRetry sets the attempt budget and the first backoff delay.
func WithRetry(maxAttempts int, baseBackoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseBackoff >= 0 {
			c.baseBackoff = baseBackoff
		}
	}
}

// WithCache enables payload caching for single-paper fetches.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Graph API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:     DefaultBaseURL,
		pageSize:    DefaultPageSize,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		logger:      logging.Component("s2"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PageSize returns the configured listing page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchPaper fetches a single paper record.
func (c *Client) FetchPaper(ctx context.Context, paperID string) (*RawPaper, error) {
	if strings.TrimSpace(paperID) == "" {
		return nil, errors.ValidationErrorf("paper id is required")
	}

	cacheKey := "paper:" + paperID
	if c.cache != nil {
		if body, ok := c.cache.Get(cacheKey); ok {
			var paper RawPaper
			if err := json.Unmarshal(body, &paper); err == nil {
				c.logger.Debug("paper served from cache", "paper_id", paperID)
				return &paper, nil
			}
		}
	}

	q := url.Values{}
	q.Set("fields", PaperFields)
	body, err := c.get(ctx, "/paper/"+url.PathEscape(paperID), q)
	if err != nil {
		return nil, err
	}

	var paper RawPaper
	if err := json.Unmarshal(body, &paper); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNormalization, errors.SeverityLow,
			fmt.Sprintf("decode paper %s", paperID))
	}

	if c.cache != nil {
		if err := c.cache.Put(cacheKey, body); err != nil {
			c.logger.Warn("failed to cache paper", "paper_id", paperID, "error", err)
		}
	}
	return &paper, nil
}

// FetchCitationPage fetches one page of papers citing paperID.
func (c *Client) FetchCitationPage(ctx context.Context, paperID string, offset, limit int) (*Page, error) {
	return c.fetchEdgePage(ctx, paperID, citationsKind, offset, limit)
}

// FetchReferencePage fetches one page of papers cited by paperID.
func (c *Client) FetchReferencePage(ctx context.Context, paperID string, offset, limit int) (*Page, error) {
	return c.fetchEdgePage(ctx, paperID, referencesKind, offset, limit)
}

func (c *Client) fetchEdgePage(ctx context.Context, paperID string, kind edgeKind, offset, limit int) (*Page, error) {
	if strings.TrimSpace(paperID) == "" {
		return nil, errors.ValidationErrorf("paper id is required")
	}
	if limit <= 0 {
		limit = c.pageSize
	}

	q := url.Values{}
	q.Set("fields", PaperFields)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/paper/"+url.PathEscape(paperID)+"/"+string(kind), q)
	if err != nil {
		return nil, err
	}

	page := &Page{Offset: offset}
	if err := json.Unmarshal(body, page); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNormalization, errors.SeverityLow,
			fmt.Sprintf("decode %s page of %s at offset %d", kind, paperID, offset))
	}
	page.Raw = body
	return page, nil
}

// Search runs a relevance search and returns at most limit papers.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]RawPaper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.ValidationErrorf("search query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("fields", PaperFields)
	q.Set("offset", "0")
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/paper/search", q)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNormalization, errors.SeverityLow, "decode search response")
	}
	return resp.Data, nil
}

// get performs a GET with rate limiting and bounded retry.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for attempt := 1; ; attempt++ {
		body, retryAfter, err := c.do(ctx, u)
		if err == nil {
			return body, nil
		}

		var retry *retryableError
		if !asRetryable(err, &retry) || attempt >= c.maxAttempts || ctx.Err() != nil {
			if retry != nil {
				return nil, retry.final
			}
			return nil, err
		}

		delay := c.backoff(attempt, retryAfter)
		c.logger.Warn("provider request failed, retrying",
			"path", path, "attempt", attempt, "delay", delay, "error", retry.final)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.ProviderUnavailable(ctx.Err(), "request cancelled during backoff")
		case <-timer.C:
		}
	}
}

// retryableError marks a failure worth another attempt. final is what the
// caller sees once attempts run out.
type retryableError struct {
	final error
}

func (e *retryableError) Error() string { return e.final.Error() }

func asRetryable(err error, target **retryableError) bool {
	r, ok := err.(*retryableError)
	if ok {
		*target = r
	}
	return ok
}

func (c *Client) do(ctx context.Context, u string) ([]byte, time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, errors.ProviderUnavailable(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, errors.ValidationErrorf("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		unavailable := errors.ProviderUnavailable(err, "provider request failed")
		if ctx.Err() != nil {
			return nil, 0, unavailable
		}
		return nil, 0, &retryableError{final: unavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		rejected := errors.ProviderRejected(resp.StatusCode, rejectionMessage(resp.StatusCode))
		if after, ok := retryAfter(resp); ok {
			return nil, after, &retryableError{final: rejected}
		}
		return nil, 0, rejected
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		unavailable := errors.ProviderUnavailable(err, "read provider response")
		if ctx.Err() != nil {
			return nil, 0, unavailable
		}
		return nil, 0, &retryableError{final: unavailable}
	}
	if len(body) > MaxResponseBytes {
		return nil, 0, errors.ProviderRejected(resp.StatusCode,
			fmt.Sprintf("response exceeds %d bytes", MaxResponseBytes))
	}
	return body, 0, nil
}

func rejectionMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "paper not found"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "provider rejected credentials"
	case http.StatusTooManyRequests:
		return "provider rate limit exceeded"
	default:
		return fmt.Sprintf("provider returned HTTP %d", status)
	}
}

// retryAfter reports a throttling response that names its own delay.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return 0, false
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxRetryAfter), true
	}
	if t, err := http.ParseTime(h); err == nil {
		return min(max(time.Until(t), 0), maxRetryAfter), true
	}
	return 0, false
}

// backoff doubles from baseBackoff with up to 50% jitter, or uses the
// server-provided delay when there is one.
func (c *Client) backoff(attempt int, serverDelay time.Duration) time.Duration {
	if serverDelay > 0 {
		return serverDelay
	}
	d := c.baseBackoff << (attempt - 1)
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}
