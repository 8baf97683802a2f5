package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const boundaryJSON = `[{
	"place_id": 12345,
	"osm_type": "relation",
	"osm_id": 242620,
	"display_name": "Porto Alegre, Rio Grande do Sul, Brasil",
	"class": "boundary",
	"type": "administrative",
	"geojson": {
		"type": "Polygon",
		"coordinates": [[[-51.3, -30.2], [-51.0, -30.2], [-51.0, -29.9], [-51.3, -29.9], [-51.3, -30.2]]]
	}
}]`

func TestSearchBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Porto Alegre, RS, Brasil", q.Get("q"))
		assert.Equal(t, "1", q.Get("polygon_geojson"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(boundaryJSON))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	b, err := c.SearchBoundary(context.Background(), "Porto Alegre, RS, Brasil")
	require.NoError(t, err)

	assert.Equal(t, "relation", b.OSMType)
	assert.Equal(t, int64(242620), b.OSMID)

	poly, ok := b.Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
	assert.Equal(t, 5, poly.LinearRing(0).NumCoords())
}

func TestSearchBoundaryEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.SearchBoundary(context.Background(), "Nowhere, ZZ, Brasil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no boundary found")
}

func TestSearchBoundaryNonArea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"display_name": "x", "geojson": {"type": "Point", "coordinates": [-51.2, -30.0]}}]`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.SearchBoundary(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an area")
}

func TestSearchBoundaryBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.SearchBoundary(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
