package proj

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-geom"
)

// Apply runs fn over every coordinate pair of g in place and returns g.
// go-geom geometries share one flat coordinate slice, so a single pass
// covers all rings and members.
func Apply(g geom.T, fn func(x, y float64) (float64, float64)) geom.T {
	flat := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		flat[i], flat[i+1] = fn(flat[i], flat[i+1])
	}
	return g
}

// ToUTM projects a WGS84 geometry into the given UTM zone, in place.
func ToUTM(g geom.T, zone UTM) geom.T {
	return Apply(g, func(x, y float64) (float64, float64) {
		return zone.Forward(x, y)
	})
}

// ToMercator projects a WGS84 geometry to Web Mercator (EPSG:3857), in place.
func ToMercator(g geom.T) geom.T {
	return Apply(g, func(x, y float64) (float64, float64) {
		p := project.WGS84.ToMercator(orb.Point{x, y})
		return p[0], p[1]
	})
}

// FromMercator projects a Web Mercator geometry back to WGS84, in place.
func FromMercator(g geom.T) geom.T {
	return Apply(g, func(x, y float64) (float64, float64) {
		p := project.Mercator.ToWGS84(orb.Point{x, y})
		return p[0], p[1]
	})
}
