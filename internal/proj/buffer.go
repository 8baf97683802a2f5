package proj

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// BufferMeters dilates a WGS84 polygon (or multipolygon) outward by the
// given distance in meters and returns a new WGS84 geometry. The dilation
// happens in Web Mercator with the offset distance corrected for the
// latitude-dependent Mercator scale at the geometry centroid.
//
// Interior rings are dropped: the result is only ever used to widen a clip
// area, where holes would be counterproductive. Vertices are offset along
// the averaged outward normals of their adjacent edges, which is an
// approximation of a true Minkowski dilation but is well within the
// tolerance needed for network clipping.
func BufferMeters(g geom.T, meters float64) (geom.T, error) {
	if meters <= 0 {
		return g, nil
	}

	_, lat, err := Centroid(g)
	if err != nil {
		return nil, eris.Wrap(err, "proj: buffer centroid")
	}
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		return nil, eris.New("proj: cannot buffer at polar latitude")
	}
	offset := meters / cosLat

	switch p := g.(type) {
	case *geom.Polygon:
		ring, err := bufferRing(ringCoords(p.LinearRing(0)), offset)
		if err != nil {
			return nil, err
		}
		out := geom.NewPolygon(geom.XY)
		if err := out.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
			return nil, eris.Wrap(err, "proj: rebuild buffered polygon")
		}
		return out, nil

	case *geom.MultiPolygon:
		out := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < p.NumPolygons(); i++ {
			ring, err := bufferRing(ringCoords(p.Polygon(i).LinearRing(0)), offset)
			if err != nil {
				return nil, err
			}
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
				return nil, eris.Wrap(err, "proj: rebuild buffered polygon part")
			}
			if err := out.Push(poly); err != nil {
				return nil, eris.Wrap(err, "proj: push buffered polygon part")
			}
		}
		return out, nil

	default:
		return nil, eris.Errorf("proj: cannot buffer %T", g)
	}
}

// ringCoords copies a ring's flat XY coordinates.
func ringCoords(ring *geom.LinearRing) []float64 {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

// bufferRing offsets a closed WGS84 ring outward by offset meters, working
// in Web Mercator. The returned ring is closed.
func bufferRing(wgs []float64, offset float64) ([]float64, error) {
	if len(wgs) < 8 {
		return nil, eris.New("proj: ring has fewer than 4 vertices")
	}

	ring := geom.NewLineStringFlat(geom.XY, append([]float64(nil), wgs...))
	ToMercator(ring)
	coords := ring.FlatCoords()

	// Drop the duplicated closing vertex for normal computation.
	n := len(coords) / 2
	if coords[0] == coords[(n-1)*2] && coords[1] == coords[(n-1)*2+1] {
		n--
	}
	if n < 3 {
		return nil, eris.New("proj: degenerate ring")
	}

	// Shoelace sign decides which perpendicular points outward.
	var area2 float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area2 += coords[i*2]*coords[j*2+1] - coords[j*2]*coords[i*2+1]
	}
	sign := 1.0 // counter-clockwise ring: outward normal is (dy, -dx)
	if area2 < 0 {
		sign = -1.0
	}

	out := make([]float64, 0, (n+1)*2)
	for i := 0; i < n; i++ {
		prev := (i - 1 + n) % n
		next := (i + 1) % n

		nx1, ny1 := edgeNormal(coords[prev*2], coords[prev*2+1], coords[i*2], coords[i*2+1], sign)
		nx2, ny2 := edgeNormal(coords[i*2], coords[i*2+1], coords[next*2], coords[next*2+1], sign)

		nx, ny := nx1+nx2, ny1+ny2
		norm := math.Hypot(nx, ny)
		if norm < 1e-12 {
			nx, ny, norm = nx1, ny1, 1
		}
		out = append(out, coords[i*2]+offset*nx/norm, coords[i*2+1]+offset*ny/norm)
	}
	out = append(out, out[0], out[1])

	buffered := geom.NewLineStringFlat(geom.XY, out)
	FromMercator(buffered)
	return buffered.FlatCoords(), nil
}

// edgeNormal returns the unit normal of segment (x1,y1)-(x2,y2) pointing
// outward for the given ring orientation sign.
func edgeNormal(x1, y1, x2, y2, sign float64) (float64, float64) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length < 1e-12 {
		return 0, 0
	}
	return sign * dy / length, sign * -dx / length
}
