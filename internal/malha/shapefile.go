package malha

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// municipality is one feature of a malha municipal shapefile.
type municipality struct {
	Code     string
	Name     string
	Geometry geom.T
}

// findMunicipality scans a malha shapefile for the feature whose code
// attribute matches the given IBGE code. Six-digit codes match on prefix.
func findMunicipality(shpPath, code string) (*municipality, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "malha: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx, nameIdx := -1, -1
	for i, f := range reader.Fields() {
		name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		switch name {
		case "cd_mun", "cd_geocmu", "cd_geocodm":
			codeIdx = i
		case "nm_mun", "nm_municip":
			nameIdx = i
		}
	}
	if codeIdx < 0 {
		return nil, eris.Errorf("malha: shapefile %s has no municipality code field", shpPath)
	}

	for reader.Next() {
		_, shape := reader.Shape()

		featCode := strings.TrimSpace(strings.TrimRight(reader.Attribute(codeIdx), "\x00"))
		if featCode != code && !(len(code) == 6 && strings.HasPrefix(featCode, code)) {
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, eris.Errorf("malha: feature for code %s is not a polygon", code)
		}
		g, err := polygonToGeom(poly)
		if err != nil {
			return nil, eris.Wrapf(err, "malha: convert polygon for code %s", code)
		}

		name := ""
		if nameIdx >= 0 {
			name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}

		return &municipality{Code: featCode, Name: name, Geometry: g}, nil
	}

	return nil, eris.Errorf("malha: code %s not found in %s", code, shpPath)
}

// polygonToGeom converts a shapefile polygon to a go-geom MultiPolygon.
// Shapefile rings are not grouped into polygons, so each part becomes its
// own single-ring polygon; for boundary clipping this is equivalent.
func polygonToGeom(p *shp.Polygon) (geom.T, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.New("malha: empty polygon shape")
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, eris.New("malha: polygon shape has no usable rings")
	}
	return mp, nil
}
