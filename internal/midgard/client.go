package midgard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL           = "https://midgard.ninerealms.com"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 1
	MaxPageSize              = 400

	// maxErrorBody caps how much of a failed response is kept in StatusError.
	maxErrorBody = 512
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("midgard status %d: %s", e.StatusCode, e.Body)
}

// PageRequest selects one page of hourly history.
type PageRequest struct {
	Family string // domain.FamilyDepths, FamilySwaps, FamilyEarnings or FamilyRunePool
	Pool   string // required for depths and swaps
	From   int64  // Unix seconds
	Count  int
}

// HTTPClient fetches history pages from Midgard.
// Requests are not retried; a failed page fails the caller's run.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithRateLimit caps outgoing requests. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Midgard client for baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage requests one page of hourly history starting at req.From.
func (c *HTTPClient) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	endpoint, err := c.pageURL(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := c.get(ctx, endpoint)
	observability.RecordUpstreamLatency(req.Family, time.Since(start).Seconds(), err)
	return page, err
}

func (c *HTTPClient) pageURL(req PageRequest) (string, error) {
	count := req.Count
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}

	q := url.Values{}
	q.Set("interval", string(domain.IntervalHour))
	q.Set("from", strconv.FormatInt(req.From, 10))
	q.Set("count", strconv.Itoa(count))

	var path string
	switch req.Family {
	case domain.FamilyDepths:
		if req.Pool == "" {
			return "", fmt.Errorf("depths history requires a pool")
		}
		path = "/v2/history/depths/" + url.PathEscape(req.Pool)
	case domain.FamilySwaps:
		if req.Pool == "" {
			return "", fmt.Errorf("swaps history requires a pool")
		}
		path = "/v2/history/swaps"
		q.Set("pool", req.Pool)
	case domain.FamilyEarnings:
		path = "/v2/history/earnings"
	case domain.FamilyRunePool:
		path = "/v2/history/runepool"
	default:
		return "", fmt.Errorf("unknown history family %q", req.Family)
	}

	return c.baseURL + path + "?" + q.Encode(), nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return DecodePage(body)
}
