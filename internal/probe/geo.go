package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxResponseBodySize = 1 << 20 // 1MB

	// allFields asks the lookup service for every field it can return.
	allFields = "262143"

	defaultLookupURL     = "http://ip-api.com"
	defaultLookupTimeout = 5 * time.Second
)

// connection pooling limits; every lookup goes to the same host
const (
	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 32
	defaultIdleConnTimeout     = 60 * time.Second
)

// ErrLookupFailed is returned when the service answers without a location.
var ErrLookupFailed = errors.New("geolocation lookup failed")

// Client queries an ip-api compatible geolocation service.
//
// Each request carries its own timeout via context so one slow address
// cannot hold a worker indefinitely. When a per-minute rate is configured,
// requests wait for a token before being sent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a lookup [Client] for baseURL.
//
// perMinute limits outgoing requests (0 disables limiting). Zero values for
// baseURL and timeout fall back to http://ip-api.com and 5s.
func NewClient(baseURL string, timeout time.Duration, perMinute int) *Client {
	if baseURL == "" {
		baseURL = defaultLookupURL
	}
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}

	var limiter *rate.Limiter
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}

	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: limiter,
	}
}

// Locate looks up addr and returns its location.
//
// Network errors, non-200 responses, malformed bodies and a status other
// than "success" are all returned as errors wrapping [ErrLookupFailed].
func (c *Client) Locate(ctx context.Context, addr string) (*Location, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrLookupFailed, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", c.baseURL, url.PathEscape(addr), allFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrLookupFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrLookupFailed, resp.StatusCode)
	}

	// read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrLookupFailed, err)
	}

	var loc Location
	if err := json.Unmarshal(body, &loc); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrLookupFailed, err)
	}
	if loc.Status != "success" {
		if loc.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrLookupFailed, loc.Message)
		}
		return nil, fmt.Errorf("%w: status %q", ErrLookupFailed, loc.Status)
	}
	return &loc, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
