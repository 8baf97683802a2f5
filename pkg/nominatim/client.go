// Package nominatim geocodes place queries to boundary geometries using the
// OSM Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Boundary is a geocoded administrative area.
type Boundary struct {
	DisplayName string
	OSMType     string
	OSMID       int64
	Geometry    geom.T // Polygon or MultiPolygon in WGS84
}

// ClientOptions configures the Nominatim client.
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Email     string
	Timeout   time.Duration
	// RatePerSec throttles requests. The public instance's usage policy
	// allows at most one request per second.
	RatePerSec float64
}

// Client is a rate-limited Nominatim search client.
type Client struct {
	baseURL    string
	userAgent  string
	email      string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates a Nominatim client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "viario-cli/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		email:     opts.Email,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// searchResult is one entry of a Nominatim jsonv2 search response.
type searchResult struct {
	DisplayName string          `json:"display_name"`
	OSMType     string          `json:"osm_type"`
	OSMID       int64           `json:"osm_id"`
	Class       string          `json:"class"`
	Type        string          `json:"type"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

// SearchBoundary geocodes a free-text query to its boundary polygon,
// requesting the full area geometry via polygon_geojson.
func (c *Client) SearchBoundary(ctx context.Context, query string) (*Boundary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit wait")
	}

	params := url.Values{
		"q":               {query},
		"format":          {"jsonv2"},
		"polygon_geojson": {"1"},
		"limit":           {"1"},
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	zap.L().Debug("nominatim: searching boundary", zap.String("query", query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "nominatim: search %q", query)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: status %d searching %q", resp.StatusCode, query)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read response")
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrapf(err, "nominatim: parse response for %q", query)
	}
	if len(results) == 0 {
		return nil, eris.Errorf("nominatim: no boundary found for %q", query)
	}

	r := results[0]
	if len(r.GeoJSON) == 0 {
		return nil, eris.Errorf("nominatim: result for %q has no geometry", query)
	}

	var g geom.T
	if err := geojson.Unmarshal(r.GeoJSON, &g); err != nil {
		return nil, eris.Wrapf(err, "nominatim: decode geometry for %q", query)
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
	default:
		return nil, eris.Errorf("nominatim: result for %q is %T, not an area", query, g)
	}

	return &Boundary{
		DisplayName: r.DisplayName,
		OSMType:     r.OSMType,
		OSMID:       r.OSMID,
		Geometry:    g,
	}, nil
}
