// Package osm turns Overpass responses into a street network and builds the
// clipped download queries for it.
package osm

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"
)

// NetworkType selects which ways belong to the network.
type NetworkType string

// The supported network types.
const (
	NetworkDrive        NetworkType = "drive"
	NetworkAll          NetworkType = "all"
	NetworkWalk         NetworkType = "walk"
	NetworkBike         NetworkType = "bike"
	NetworkDriveService NetworkType = "drive_service"
)

//go:embed filters.yaml
var filtersYAML []byte

type filterFile struct {
	NetworkTypes map[string]string `yaml:"network_types"`
}

// Filters maps network types to Overpass way selector chains.
type Filters map[NetworkType]string

// LoadFilters parses the embedded per-network-type way filters.
func LoadFilters() (Filters, error) {
	var f filterFile
	if err := yaml.Unmarshal(filtersYAML, &f); err != nil {
		return nil, eris.Wrap(err, "osm: parse embedded filters")
	}
	if len(f.NetworkTypes) == 0 {
		return nil, eris.New("osm: embedded filters are empty")
	}

	out := make(Filters, len(f.NetworkTypes))
	for k, v := range f.NetworkTypes {
		out[NetworkType(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// Types returns the known network types in stable order.
func (f Filters) Types() []NetworkType {
	types := make([]NetworkType, 0, len(f))
	for k := range f {
		types = append(types, k)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseNetworkType validates a user-supplied network type string.
func (f Filters) ParseNetworkType(s string) (NetworkType, error) {
	nt := NetworkType(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := f[nt]; !ok {
		return "", eris.Errorf("osm: unknown network type %q (choose one of %v)", s, f.Types())
	}
	return nt, nil
}

// BuildQuery produces an Overpass QL query downloading all ways of the
// network type inside the boundary, plus their nodes. Multipolygon
// boundaries contribute one clipped way statement per exterior ring.
func (f Filters) BuildQuery(boundary geom.T, nt NetworkType, timeoutSecs int) (string, error) {
	filter, ok := f[nt]
	if !ok {
		return "", eris.Errorf("osm: unknown network type %q", nt)
	}

	rings, err := exteriorRings(boundary)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];(", timeoutSecs)
	for _, ring := range rings {
		fmt.Fprintf(&b, "way%s(poly:%q);", filter, ring)
	}
	b.WriteString(");out body;>;out skel qt;")
	return b.String(), nil
}

// exteriorRings renders each exterior ring as the "lat lon lat lon ..."
// string Overpass expects in a poly filter.
func exteriorRings(boundary geom.T) ([]string, error) {
	var polys []*geom.Polygon
	switch g := boundary.(type) {
	case *geom.Polygon:
		polys = append(polys, g)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			polys = append(polys, g.Polygon(i))
		}
	default:
		return nil, eris.Errorf("osm: boundary is %T, expected polygonal geometry", boundary)
	}

	rings := make([]string, 0, len(polys))
	for _, p := range polys {
		if p.NumLinearRings() == 0 {
			continue
		}
		ring := p.LinearRing(0)
		flat := ring.FlatCoords()
		stride := ring.Stride()

		var b strings.Builder
		for i := 0; i+1 < len(flat); i += stride {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			// poly filters take latitude first.
			fmt.Fprintf(&b, "%.7f %.7f", flat[i+1], flat[i])
		}
		if b.Len() > 0 {
			rings = append(rings, b.String())
		}
	}

	if len(rings) == 0 {
		return nil, eris.New("osm: boundary has no usable rings")
	}
	return rings, nil
}
