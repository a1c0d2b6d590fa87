// Package stockwatch is a Go client for the stockwatch-server REST API.
package stockwatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is returned for non-2xx responses. Message is the server's
// user-facing error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stockwatch: http %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the stockwatch-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stockwatch API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetStock retrieves the detail view of symbol. exchange may be empty.
func (c *Client) GetStock(ctx context.Context, symbol, exchange string) (*StockInformation, error) {
	q := url.Values{}
	if exchange != "" {
		q.Set("exchange", exchange)
	}
	var out StockInformation
	if err := c.doJSON(ctx, http.MethodGet, "/api/stocks/"+url.PathEscape(symbol), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GraphSVG retrieves the animated SVG chart of symbol.
func (c *Client) GraphSVG(ctx context.Context, symbol, exchange string, width, height int) ([]byte, error) {
	q := url.Values{}
	if exchange != "" {
		q.Set("exchange", exchange)
	}
	if width > 0 {
		q.Set("width", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("height", strconv.Itoa(height))
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/stocks/"+url.PathEscape(symbol)+"/graph.svg", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Search looks up stocks by name or symbol.
func (c *Client) Search(ctx context.Context, query string) (*SearchResults, error) {
	var out SearchResults
	if err := c.doJSON(ctx, http.MethodGet, "/api/search", url.Values{"q": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watchlist retrieves the watchlist in insertion order.
func (c *Client) Watchlist(ctx context.Context) ([]Stock, error) {
	var out struct {
		Stocks []Stock `json:"stocks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/watchlist", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Stocks, nil
}

// Add puts a stock on the watchlist. It reports false when the symbol was
// already tracked.
func (c *Client) Add(ctx context.Context, symbol, name, exchange string) (bool, error) {
	body, err := json.Marshal(map[string]string{"name": name, "exchange": exchange})
	if err != nil {
		return false, err
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/watchlist/"+url.PathEscape(symbol), nil, body)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusCreated, nil
}

// Remove takes symbol off the watchlist. Removing an untracked symbol
// returns an *APIError with status 404.
func (c *Client) Remove(ctx context.Context, symbol string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/watchlist/"+url.PathEscape(symbol), nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// History retrieves the archived graph of symbol for date (YYYY-MM-DD).
// An empty date means today in the server's zone.
func (c *Client) History(ctx context.Context, symbol, date string) (*History, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out History
	if err := c.doJSON(ctx, http.MethodGet, "/api/history/"+url.PathEscape(symbol), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchWatchlist streams watchlist changes, calling fn with the full list
// for the current state and after every change. It blocks until ctx is
// cancelled or the server closes the stream.
func (c *Client) WatchWatchlist(ctx context.Context, fn func([]Stock)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/watchlist/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client timeout.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev struct {
			Stocks []Stock `json:"stocks"`
		}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decoding watchlist event: %w", err)
		}
		fn(ev.Stocks)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do sends a request and returns the response for 2xx statuses; other
// statuses are converted to *APIError.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
