package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"version": 0.6,
	"generator": "Overpass API",
	"elements": [
		{"type": "node", "id": 1, "lat": -30.03, "lon": -51.23},
		{"type": "node", "id": 2, "lat": -30.04, "lon": -51.22},
		{"type": "way", "id": 100, "nodes": [1, 2], "tags": {"highway": "residential", "name": "Rua da Praia"}}
	]
}`

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), "out:json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	resp, err := c.Query(context.Background(), `[out:json];way["highway"];out;`)
	require.NoError(t, err)

	require.Len(t, resp.Elements, 3)
	assert.Equal(t, "node", resp.Elements[0].Type)
	assert.Equal(t, int64(100), resp.Elements[2].ID)
	assert.Equal(t, []int64{1, 2}, resp.Elements[2].Nodes)
	assert.Equal(t, "residential", resp.Elements[2].Tags["highway"])
}

func TestQueryBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.Query(context.Background(), "[out:json];out;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestQueryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.Query(context.Background(), "[out:json];out;")
	require.Error(t, err)
}
