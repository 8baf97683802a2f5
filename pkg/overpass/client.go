// Package overpass is a minimal client for the Overpass API interpreter.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Element is one OSM element of an Overpass JSON response.
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat,omitempty"`
	Lon  float64           `json:"lon,omitempty"`
	Tags map[string]string `json:"tags,omitempty"`
	// Nodes is the ordered node ID list of a way.
	Nodes []int64 `json:"nodes,omitempty"`
}

// Response is the decoded Overpass payload.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Elements  []Element `json:"elements"`
}

// ClientOptions configures the Overpass client.
type ClientOptions struct {
	// BaseURL is the full interpreter endpoint.
	BaseURL    string
	UserAgent  string
	RatePerSec float64
	// Timeout bounds the whole request; Overpass queries over large
	// municipalities can run for minutes, so this should be generous and
	// at least the query's own [timeout:] setting.
	Timeout time.Duration
}

// Client posts QL queries to an Overpass interpreter.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates an Overpass client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://overpass-api.de/api/interpreter"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "viario-cli/1.0"
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 0.5
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Query posts an Overpass QL query and decodes the JSON response.
func (c *Client) Query(ctx context.Context, ql string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit wait")
	}

	zap.L().Debug("overpass: posting query", zap.Int("query_bytes", len(ql)))

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("overpass: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}

	zap.L().Debug("overpass: response decoded", zap.Int("elements", len(out.Elements)))

	return &out, nil
}
