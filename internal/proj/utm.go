// Package proj projects WGS84 geometries into metric coordinate systems:
// the locally appropriate UTM zone for final output, and Web Mercator for
// intermediate buffering.
package proj

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// WGS84 ellipsoid constants.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	utmK0   = 0.9996
	falseE  = 500000.0
	falseNS = 10000000.0
)

// UTM identifies a UTM zone.
type UTM struct {
	Zone  int
	South bool
}

// UTMZoneFor returns the UTM zone containing the given WGS84 coordinate.
func UTMZoneFor(lon, lat float64) (UTM, error) {
	if lon < -180 || lon > 180 || lat < -84 || lat > 84 {
		return UTM{}, eris.Errorf("proj: coordinate (%f, %f) outside UTM domain", lon, lat)
	}
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	return UTM{Zone: zone, South: lat < 0}, nil
}

// EPSG returns the EPSG code of the zone (326xx north, 327xx south).
func (u UTM) EPSG() int {
	if u.South {
		return 32700 + u.Zone
	}
	return 32600 + u.Zone
}

// CentralMeridian returns the zone's central meridian in degrees.
func (u UTM) CentralMeridian() float64 {
	return float64(u.Zone-1)*6 - 180 + 3
}

// Forward converts a WGS84 lon/lat to UTM easting/northing in meters using
// the standard transverse Mercator series expansion.
func (u UTM) Forward(lon, lat float64) (x, y float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	lam0 := u.CentralMeridian() * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := wgs84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lam - lam0)

	// Meridional arc length.
	m := wgs84A * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	x = falseE + utmK0*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120)

	y = utmK0 * (m + n*tanPhi*(a*a/2+(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))

	if u.South {
		y += falseNS
	}
	return x, y
}

// Centroid returns a representative WGS84 coordinate of a geometry, taken as
// the arithmetic mean of its flat coordinates. Good enough for zone picking.
func Centroid(g geom.T) (lon, lat float64, err error) {
	flat := g.FlatCoords()
	stride := g.Stride()
	if len(flat) < stride || stride < 2 {
		return 0, 0, eris.New("proj: empty geometry")
	}
	var sx, sy float64
	n := 0
	for i := 0; i+1 < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
		n++
	}
	return sx / float64(n), sy / float64(n), nil
}
