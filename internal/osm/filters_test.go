package osm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestLoadFilters(t *testing.T) {
	f, err := LoadFilters()
	require.NoError(t, err)

	assert.Len(t, f, 5)
	for _, nt := range []NetworkType{NetworkDrive, NetworkAll, NetworkWalk, NetworkBike, NetworkDriveService} {
		assert.Contains(t, f, nt)
		assert.True(t, strings.HasPrefix(f[nt], `["highway"]`), "filter for %s must select highways", nt)
	}

	// drive excludes service roads, drive_service does not
	assert.Contains(t, f[NetworkDrive], "|service|")
	assert.NotContains(t, f[NetworkDriveService], "|service|")
}

func TestParseNetworkType(t *testing.T) {
	f, err := LoadFilters()
	require.NoError(t, err)

	nt, err := f.ParseNetworkType("  Drive ")
	require.NoError(t, err)
	assert.Equal(t, NetworkDrive, nt)

	_, err = f.ParseNetworkType("teleport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestBuildQuery(t *testing.T) {
	f, err := LoadFilters()
	require.NoError(t, err)

	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		-51.3, -30.2, -51.0, -30.2, -51.0, -29.9, -51.3, -30.2,
	})))

	ql, err := f.BuildQuery(poly, NetworkDrive, 180)
	require.NoError(t, err)

	assert.Contains(t, ql, "[out:json][timeout:180];")
	assert.Contains(t, ql, `(poly:"-30.2000000 -51.3000000`)
	assert.Contains(t, ql, "out body;>;out skel qt;")
}

func TestBuildQueryMultiPolygon(t *testing.T) {
	f, err := LoadFilters()
	require.NoError(t, err)

	mp := geom.NewMultiPolygon(geom.XY)
	for _, shift := range []float64{0, 1} {
		p := geom.NewPolygon(geom.XY)
		require.NoError(t, p.Push(geom.NewLinearRingFlat(geom.XY, []float64{
			-51 + shift, -30, -50.9 + shift, -30, -50.9 + shift, -29.9, -51 + shift, -30,
		})))
		require.NoError(t, mp.Push(p))
	}

	ql, err := f.BuildQuery(mp, NetworkWalk, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(ql, "(poly:"))
}

func TestBuildQueryRejectsPoint(t *testing.T) {
	f, err := LoadFilters()
	require.NoError(t, err)

	_, err = f.BuildQuery(geom.NewPointFlat(geom.XY, []float64{-51, -30}), NetworkDrive, 60)
	require.Error(t, err)
}
