package gpkg

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// LayerInfo describes one registered feature layer.
type LayerInfo struct {
	Name     string
	DataType string
	SRSID    int32
	MinX     float64
	MinY     float64
	MaxX     float64
	MaxY     float64
}

// ListLayers returns the feature layers registered in gpkg_contents, in
// insertion order.
func (p *Package) ListLayers(ctx context.Context) ([]LayerInfo, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name, data_type, srs_id, min_x, min_y, max_x, max_y
		FROM gpkg_contents WHERE data_type = 'features' ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: list layers")
	}
	defer rows.Close() //nolint:errcheck

	var layers []LayerInfo
	for rows.Next() {
		var l LayerInfo
		if err := rows.Scan(&l.Name, &l.DataType, &l.SRSID, &l.MinX, &l.MinY, &l.MaxX, &l.MaxY); err != nil {
			return nil, eris.Wrap(err, "gpkg: scan layer row")
		}
		layers = append(layers, l)
	}
	return layers, eris.Wrap(rows.Err(), "gpkg: iterate layers")
}

// ValidateLayer opens a layer by name and checks it is usable: registered,
// backed by a feature table, and with decodable geometry blobs. Returns the
// feature count.
func (p *Package) ValidateLayer(ctx context.Context, name string) (int, error) {
	if !layerNameRe.MatchString(name) {
		return 0, eris.Errorf("gpkg: invalid layer name %q", name)
	}

	var registered int
	err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM gpkg_contents WHERE table_name = ? AND data_type = 'features'`,
		name).Scan(&registered)
	if err != nil {
		return 0, eris.Wrapf(err, "gpkg: look up layer %s", name)
	}
	if registered == 0 {
		return 0, eris.Errorf("gpkg: layer %s is not registered in the package", name)
	}

	var count int
	if err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM "%s"`, name)).Scan(&count); err != nil {
		return 0, eris.Wrapf(err, "gpkg: layer %s table is not readable", name)
	}
	if count == 0 {
		return 0, eris.Errorf("gpkg: layer %s has no features", name)
	}

	var blob []byte
	if err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT geom FROM "%s" ORDER BY fid LIMIT 1`, name)).Scan(&blob); err != nil {
		return 0, eris.Wrapf(err, "gpkg: read first geometry of layer %s", name)
	}
	if _, _, err := DecodeGeometry(blob); err != nil {
		return 0, eris.Wrapf(err, "gpkg: layer %s geometry is not decodable", name)
	}

	return count, nil
}

// ReadLayerGeometries loads all geometries of a layer, mainly for tests and
// the layers command.
func (p *Package) ReadLayerGeometries(ctx context.Context, name string) ([]geom.T, error) {
	if !layerNameRe.MatchString(name) {
		return nil, eris.Errorf("gpkg: invalid layer name %q", name)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT geom FROM "%s" ORDER BY fid`, name))
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: read layer %s", name)
	}
	defer rows.Close() //nolint:errcheck

	var geoms []geom.T
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrapf(err, "gpkg: scan geometry of layer %s", name)
		}
		g, _, err := DecodeGeometry(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "gpkg: decode geometry of layer %s", name)
		}
		geoms = append(geoms, g)
	}
	return geoms, eris.Wrapf(rows.Err(), "gpkg: iterate layer %s", name)
}
