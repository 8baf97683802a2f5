package osm

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/internal/proj"
	"github.com/urbmob/viario-cli/pkg/overpass"
)

// Node is an OSM node with WGS84 coordinates.
type Node struct {
	ID  int64
	Lon float64
	Lat float64
}

// Edge is one street segment: a run of way nodes between two intersections
// (or a way end), with its full geometry retained.
type Edge struct {
	ID       int64
	WayID    int64
	FromNode int64
	ToNode   int64
	Highway  string
	Name     string
	Maxspeed string
	Oneway   bool
	// LengthM is filled in by ProjectUTM once coordinates are metric.
	LengthM  float64
	Geometry *geom.LineString
}

// Network is the edge set built from one Overpass download.
type Network struct {
	Edges     []Edge
	NodeCount int
	WayCount  int
	// Projected holds the UTM zone after ProjectUTM; zero Zone means the
	// geometries are still WGS84.
	Projected proj.UTM
}

// BuildNetwork assembles a street network from Overpass elements. Ways are
// split into edges at nodes shared with other ways, so every edge runs
// between two topological breakpoints.
func BuildNetwork(elements []overpass.Element) (*Network, error) {
	nodes := make(map[int64]Node)
	var ways []overpass.Element

	for _, el := range elements {
		switch el.Type {
		case "node":
			nodes[el.ID] = Node{ID: el.ID, Lon: el.Lon, Lat: el.Lat}
		case "way":
			if len(el.Nodes) >= 2 {
				ways = append(ways, el)
			}
		}
	}

	if len(ways) == 0 {
		return nil, eris.New("osm: download contains no ways")
	}

	// A node referenced by more than one way, or more than once within a
	// way, is an intersection and therefore an edge breakpoint.
	refCount := make(map[int64]int, len(nodes))
	for _, w := range ways {
		for _, id := range w.Nodes {
			refCount[id]++
		}
	}

	net := &Network{NodeCount: len(nodes), WayCount: len(ways)}
	var edgeID int64
	var skippedWays int

	for _, w := range ways {
		runs := splitWay(w.Nodes, refCount)
		emitted := false
		for _, run := range runs {
			e, ok := buildEdge(edgeID, w, run, nodes)
			if !ok {
				continue
			}
			net.Edges = append(net.Edges, e)
			edgeID++
			emitted = true
		}
		if !emitted {
			skippedWays++
		}
	}

	if skippedWays > 0 {
		zap.L().Debug("osm: ways skipped for missing node coordinates", zap.Int("ways", skippedWays))
	}
	if len(net.Edges) == 0 {
		return nil, eris.New("osm: no edges could be built from the download")
	}

	return net, nil
}

// splitWay cuts a way's node list into runs at interior intersection nodes.
// Endpoints always terminate a run.
func splitWay(nodeIDs []int64, refCount map[int64]int) [][]int64 {
	var runs [][]int64
	start := 0
	for i := 1; i < len(nodeIDs); i++ {
		last := i == len(nodeIDs)-1
		if refCount[nodeIDs[i]] > 1 || last {
			runs = append(runs, nodeIDs[start:i+1])
			start = i
		}
	}
	return runs
}

// buildEdge materializes one node run as an Edge. Runs referencing nodes
// missing from the download (clipped at the boundary) are dropped.
func buildEdge(id int64, w overpass.Element, run []int64, nodes map[int64]Node) (Edge, bool) {
	coords := make([]float64, 0, len(run)*2)
	for _, nid := range run {
		n, ok := nodes[nid]
		if !ok {
			return Edge{}, false
		}
		coords = append(coords, n.Lon, n.Lat)
	}
	if len(coords) < 4 {
		return Edge{}, false
	}

	oneway := false
	reversed := false
	switch w.Tags["oneway"] {
	case "yes", "true", "1":
		oneway = true
	case "-1", "reverse":
		oneway = true
		reversed = true
	}

	from, to := run[0], run[len(run)-1]
	if reversed {
		from, to = to, from
		for i, j := 0, len(coords)-2; i < j; i, j = i+2, j-2 {
			coords[i], coords[j] = coords[j], coords[i]
			coords[i+1], coords[j+1] = coords[j+1], coords[i+1]
		}
	}

	return Edge{
		ID:       id,
		WayID:    w.ID,
		FromNode: from,
		ToNode:   to,
		Highway:  w.Tags["highway"],
		Name:     w.Tags["name"],
		Maxspeed: w.Tags["maxspeed"],
		Oneway:   oneway,
		Geometry: geom.NewLineStringFlat(geom.XY, coords),
	}, true
}

// ProjectUTM projects every edge geometry into the UTM zone covering the
// network's centroid and computes metric edge lengths.
func (n *Network) ProjectUTM() error {
	if len(n.Edges) == 0 {
		return eris.New("osm: cannot project empty network")
	}

	lon, lat, err := proj.Centroid(n.Edges[0].Geometry)
	if err != nil {
		return eris.Wrap(err, "osm: network centroid")
	}
	zone, err := proj.UTMZoneFor(lon, lat)
	if err != nil {
		return eris.Wrap(err, "osm: pick UTM zone")
	}

	for i := range n.Edges {
		proj.ToUTM(n.Edges[i].Geometry, zone)
		n.Edges[i].LengthM = lineLength(n.Edges[i].Geometry)
	}
	n.Projected = zone

	zap.L().Debug("osm: network projected",
		zap.Int("epsg", zone.EPSG()),
		zap.Int("edges", len(n.Edges)),
	)
	return nil
}

// lineLength sums the planar segment lengths of a projected linestring.
func lineLength(ls *geom.LineString) float64 {
	flat := ls.FlatCoords()
	stride := ls.Stride()
	var total float64
	for i := stride; i+1 < len(flat); i += stride {
		total += math.Hypot(flat[i]-flat[i-stride], flat[i+1]-flat[i-stride+1])
	}
	return total
}
