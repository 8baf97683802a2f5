package boundary

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbmob/viario-cli/pkg/ibge"
	"github.com/urbmob/viario-cli/pkg/nominatim"
)

var testPlace = ibge.Place{Code: "4314902", Name: "Porto Alegre", UF: "RS"}

func testPolygon(t *testing.T) *geom.Polygon {
	t.Helper()
	p := geom.NewPolygon(geom.XY)
	require.NoError(t, p.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		-51.3, -30.2, -51.0, -30.2, -51.0, -29.9, -51.3, -30.2,
	})))
	return p
}

type stubGeocoder struct {
	boundary *nominatim.Boundary
	err      error
	queries  []string
}

func (s *stubGeocoder) SearchBoundary(_ context.Context, query string) (*nominatim.Boundary, error) {
	s.queries = append(s.queries, query)
	return s.boundary, s.err
}

func TestNominatimSource(t *testing.T) {
	stub := &stubGeocoder{boundary: &nominatim.Boundary{
		DisplayName: "Porto Alegre, Rio Grande do Sul, Brasil",
		Geometry:    testPolygon(t),
	}}
	src := &NominatimSource{Client: stub}

	b, err := src.Fetch(context.Background(), testPlace)
	require.NoError(t, err)

	assert.Equal(t, []string{"Porto Alegre, RS, Brasil"}, stub.queries)
	assert.Equal(t, "nominatim", b.Source)
	assert.NotNil(t, b.Geometry)
}

type stubSource struct {
	name     string
	boundary *Boundary
	err      error
	calls    int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context, ibge.Place) (*Boundary, error) {
	s.calls++
	return s.boundary, s.err
}

func TestCascadeFallsThrough(t *testing.T) {
	failing := &stubSource{name: "a", err: eris.New("boom")}
	working := &stubSource{name: "b", boundary: &Boundary{Source: "b", Geometry: testPolygon(t)}}

	c := &Cascade{Sources: []Source{failing, working}}
	b, err := c.Fetch(context.Background(), testPlace)
	require.NoError(t, err)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
	assert.Equal(t, "b", b.Source)
}

func TestCascadeStopsAtFirstSuccess(t *testing.T) {
	first := &stubSource{name: "a", boundary: &Boundary{Source: "a", Geometry: testPolygon(t)}}
	second := &stubSource{name: "b"}

	c := &Cascade{Sources: []Source{first, second}}
	_, err := c.Fetch(context.Background(), testPlace)
	require.NoError(t, err)
	assert.Zero(t, second.calls)
}

func TestCascadeAllFail(t *testing.T) {
	c := &Cascade{Sources: []Source{
		&stubSource{name: "a", err: eris.New("down")},
		&stubSource{name: "b", err: eris.New("also down")},
	}}

	_, err := c.Fetch(context.Background(), testPlace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4314902")
}
