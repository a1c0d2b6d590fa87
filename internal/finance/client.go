package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockwatch/internal/util"
)

// ErrEmptyBody is returned when the API answers 2xx with no payload.
var ErrEmptyBody = errors.New("finance: empty response body")

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("finance: http %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL         string // e.g. https://serpapi.com
	APIKey          string
	Engine          string // fixed engine identifier, e.g. google_finance
	Timeout         time.Duration
	RateLimitPerMin int
	HTTPClient      *http.Client // optional, overrides Timeout
	Logger          *slog.Logger
}

// Client calls the finance-search endpoint. It never retries: a failed call
// is returned to the caller as-is.
type Client struct {
	baseURL    string
	apiKey     string
	engine     string
	httpClient *http.Client
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		engine:     opts.Engine,
		httpClient: hc,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin),
		log:        log,
	}
}

// GetStock fetches the full record for an exact query such as "AAPL:NASDAQ".
func (c *Client) GetStock(ctx context.Context, query string) (*StockResponse, error) {
	var resp StockResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a free-text query and returns the exact match and close
// matches. Empty results are not an error.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, query string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	u := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %q: %w", query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response for %q: %w", query, err)
	}
	c.log.Debug("finance request", "query", query, "status", resp.StatusCode,
		"bytes", len(body), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response for %q: %w", query, err)
	}
	return nil
}

// Query builds the exact-lookup query string for a symbol on an exchange.
// An empty exchange yields the bare symbol.
func Query(symbol, exchange string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	if exchange == "" {
		return symbol
	}
	return symbol + ":" + exchange
}
