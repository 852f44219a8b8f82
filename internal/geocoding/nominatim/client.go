package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Nominatim API endpoint
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent follows OSM usage policy requirements
	DefaultUserAgent = "Geowidget/1.0"
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 5 * time.Second
	// DefaultRateLimit is 1 request per second (OSM policy)
	DefaultRateLimit = rate.Limit(1.0)
	// MaxRetries for transient errors
	MaxRetries = 2
	// RetryBaseDelay is the initial backoff delay
	RetryBaseDelay = 1 * time.Second
	// MaxLimit is the largest result count Nominatim accepts
	MaxLimit = 50
)

var (
	// ErrRateLimited is returned when the provider keeps answering 429.
	ErrRateLimited = errors.New("nominatim rate limited")
	// ErrUnavailable is returned for network failures and 5xx responses.
	ErrUnavailable = errors.New("nominatim unavailable")
	// ErrInvalidRequest is returned before any request is sent, and for 4xx responses.
	ErrInvalidRequest = errors.New("invalid nominatim request")
)

// Client handles communication with the Nominatim geocoding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRetryDelay overrides the base backoff delay between retries.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// NewClient creates a new Nominatim API client.
// baseURL should be the Nominatim API endpoint; a trailing slash is tolerated.
// email is included in the User-Agent header per OSM usage policy.
func NewClient(baseURL, email string, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  fmt.Sprintf("%s (%s)", DefaultUserAgent, email),
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
		retryDelay: RetryBaseDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Search performs forward geocoding (query -> places).
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Place, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "jsonv2")
	values.Set("addressdetails", "1")

	if params.CountryCodes != "" {
		values.Set("countrycodes", params.CountryCodes)
	}
	if params.Viewbox != "" {
		values.Set("viewbox", params.Viewbox)
	}
	if params.Bounded {
		values.Set("bounded", "1")
	}
	if params.Limit > 0 {
		limit := params.Limit
		if limit > MaxLimit {
			limit = MaxLimit
		}
		values.Set("limit", strconv.Itoa(limit))
	}

	requestURL := fmt.Sprintf("%s/search?%s", c.baseURL, values.Encode())

	var places []Place
	if err := c.doWithRetry(ctx, requestURL, &places); err != nil {
		return nil, fmt.Errorf("search geocoding: %w", err)
	}

	return places, nil
}

// Reverse performs reverse geocoding (coordinates -> places).
// Nominatim answers with at most one place; an unmatched location yields an empty slice.
func (c *Client) Reverse(ctx context.Context, params ReverseParams) ([]Place, error) {
	if params.Lat < -90 || params.Lat > 90 {
		return nil, fmt.Errorf("%w: invalid latitude: %f (must be between -90 and 90)", ErrInvalidRequest, params.Lat)
	}
	if params.Lon < -180 || params.Lon > 180 {
		return nil, fmt.Errorf("%w: invalid longitude: %f (must be between -180 and 180)", ErrInvalidRequest, params.Lon)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(params.Lat, 'f', 6, 64))
	values.Set("lon", strconv.FormatFloat(params.Lon, 'f', 6, 64))
	values.Set("format", "jsonv2")
	values.Set("zoom", strconv.Itoa(clampZoom(params.Zoom)))
	values.Set("extratags", boolParam(params.ExtraTags))
	values.Set("namedetails", boolParam(params.NameDetails))
	values.Set("addressdetails", boolParam(params.AddressDetails))

	requestURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, values.Encode())

	var result reverseResponse
	if err := c.doWithRetry(ctx, requestURL, &result); err != nil {
		return nil, fmt.Errorf("reverse geocoding: %w", err)
	}

	if result.Error != "" || (result.Lat == "" && result.Lon == "") {
		return []Place{}, nil
	}

	return []Place{result.Place}, nil
}

// doWithRetry executes an HTTP GET request with exponential backoff retry logic.
func (c *Client) doWithRetry(ctx context.Context, requestURL string, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: http request: %v", ErrUnavailable, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: server error (%d)", ErrUnavailable, resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: unexpected status code %d: %s", ErrInvalidRequest, resp.StatusCode, string(body))
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func clampZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > 18 {
		return 18
	}
	return zoom
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
