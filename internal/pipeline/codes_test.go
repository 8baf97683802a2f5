package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodes(t *testing.T) {
	codes, err := ParseCodes("4305108; 4314902, 3550308\n4106902\t2304400 2611606")
	require.NoError(t, err)
	assert.Equal(t, []string{"4305108", "4314902", "3550308", "4106902", "2304400", "2611606"}, codes)
}

func TestParseCodesSpaceSeparated(t *testing.T) {
	// Space is a separator like any other; adjacent codes must not fuse.
	codes, err := ParseCodes("4305108 3550308")
	require.NoError(t, err)
	assert.Equal(t, []string{"4305108", "3550308"}, codes)
}

func TestParseCodesDedupesPreservingOrder(t *testing.T) {
	codes, err := ParseCodes("4305108; 4305108, 3550308; 4305108")
	require.NoError(t, err)
	assert.Equal(t, []string{"4305108", "3550308"}, codes)
}

func TestParseCodesStripsNonDigits(t *testing.T) {
	codes, err := ParseCodes("  43-05108 ; IBGE:3550308 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"4305108", "3550308"}, codes)
}

func TestParseCodesKeepsUnusualLengths(t *testing.T) {
	codes, err := ParseCodes("12345; 430510")
	require.NoError(t, err)
	assert.Equal(t, []string{"12345", "430510"}, codes)
}

func TestParseCodesEmpty(t *testing.T) {
	_, err := ParseCodes(" ; , \n")
	require.Error(t, err)
}

func TestNormalizeOutputPath(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"out.gpkg", "out.gpkg"},
		{"out.shp", "out.gpkg"},
		{"out.geojson", "out.gpkg"},
		{"out", "out.gpkg"},
		{"dir/segments.SHP", "dir/segments.gpkg"},
	} {
		got, err := NormalizeOutputPath(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeOutputPathEmpty(t *testing.T) {
	_, err := NormalizeOutputPath("   ")
	require.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "Sao_Paulo", slugify("São Paulo"))
	assert.Equal(t, "Santa_Barbara_d_Oeste", slugify("Santa Bárbara d'Oeste"))
	assert.Equal(t, "Brasilia", slugify("Brasília"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "OSM_Sao_Paulo_SP_drive_segments",
		DisplayName("São Paulo", "SP", "drive", 0))
	assert.Equal(t, "OSM_Porto_Alegre_RS_walk_segments_buf500m",
		DisplayName("Porto Alegre", "RS", "walk", 500))
}

func TestLayerName(t *testing.T) {
	assert.Equal(t, "osm_segments_4314902", LayerName("4314902"))
}
