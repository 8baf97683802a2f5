package malha

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urbmob/viario-cli/pkg/ibge"
)

// writeTestShapefile writes a two-municipality malha-style shapefile.
func writeTestShapefile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "RS_Municipios_2022.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("CD_MUN", 10),
		shp.StringField("NM_MUN", 60),
	}))

	write := func(code, name string, pts []shp.Point) {
		poly := &shp.Polygon{
			Box:       shp.Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y},
			NumParts:  1,
			NumPoints: int32(len(pts)),
			Parts:     []int32{0},
			Points:    pts,
		}
		for _, p := range pts {
			if p.X < poly.Box.MinX {
				poly.Box.MinX = p.X
			}
			if p.X > poly.Box.MaxX {
				poly.Box.MaxX = p.X
			}
			if p.Y < poly.Box.MinY {
				poly.Box.MinY = p.Y
			}
			if p.Y > poly.Box.MaxY {
				poly.Box.MaxY = p.Y
			}
		}
		row := w.Write(poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, code))
		require.NoError(t, w.WriteAttribute(int(row), 1, name))
	}

	write("4314902", "Porto Alegre", []shp.Point{
		{X: -51.3, Y: -30.2}, {X: -51.0, Y: -30.2}, {X: -51.0, Y: -29.9}, {X: -51.3, Y: -30.2},
	})
	write("4305108", "Caxias do Sul", []shp.Point{
		{X: -51.3, Y: -29.3}, {X: -50.9, Y: -29.3}, {X: -50.9, Y: -28.9}, {X: -51.3, Y: -29.3},
	})

	// shp.Writer.Close has no return value in go-shp.
	w.Close()
	return path
}

func TestFindMunicipality(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	mun, err := findMunicipality(path, "4314902")
	require.NoError(t, err)

	assert.Equal(t, "4314902", mun.Code)
	assert.Equal(t, "Porto Alegre", mun.Name)

	mp, ok := mun.Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestFindMunicipalitySixDigitPrefix(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	mun, err := findMunicipality(path, "430510")
	require.NoError(t, err)
	assert.Equal(t, "Caxias do Sul", mun.Name)
}

func TestFindMunicipalityNotFound(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir())

	_, err := findMunicipality(path, "9999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9999999")
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeTestShapefile(t, dir)

	zipPath := filepath.Join(dir, "RS.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src := shpPath[:len(shpPath)-4] + ext
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		entry, err := zw.Create("RS_Municipios_2022" + ext)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	extractDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(extractDir, 0o755))

	extracted, err := extractZip(zipPath, extractDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(extractDir, "RS_Municipios_2022.shp"), extracted)

	mun, err := findMunicipality(extracted, "4314902")
	require.NoError(t, err)
	assert.Equal(t, "Porto Alegre", mun.Name)
}

func TestExtractZipNoShapefile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "empty.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	entry, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nothing"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	_, err = extractZip(zipPath, dir)
	require.Error(t, err)
}

func TestSourceRequiresUF(t *testing.T) {
	src, err := NewSource(Options{TempDir: t.TempDir()})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), ibge.Place{Code: "4314902"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state abbreviation")
}
