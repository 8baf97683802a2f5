package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/urbmob/viario-cli/internal/osm"
)

// UndefinedCartesianSRS is the srs_id for "undefined Cartesian coordinate
// reference system" per the GeoPackage spec. Layers are written with this id
// on purpose: the geometries carry correct projected metric coordinates, but
// the file does not self-describe the CRS, sidestepping PROJ metadata
// mismatches in consumers. Whoever loads a layer assigns the CRS manually.
const UndefinedCartesianSRS = -1

const applicationID = 0x47504B47 // "GPKG"

// Package is an open multi-layer GeoPackage file.
type Package struct {
	path string
	db   *sql.DB
}

var layerNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens (creating if necessary) a GeoPackage at path and ensures the
// required metadata tables exist.
func Open(path string) (*Package, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		"PRAGMA user_version = 10300",
		"PRAGMA journal_mode=DELETE",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}

	p := &Package{path: path, db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

const gpkgMigration = `
CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
	srs_name                 TEXT NOT NULL,
	srs_id                   INTEGER PRIMARY KEY,
	organization             TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT NOT NULL,
	description              TEXT
);

CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name  TEXT PRIMARY KEY,
	data_type   TEXT NOT NULL,
	identifier  TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
	table_name         TEXT NOT NULL,
	column_name        TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES
	('Undefined Cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined Cartesian coordinate reference system'),
	('Undefined Geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system'),
	('WGS 84', 4326, 'EPSG', 4326,
	 'GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]',
	 'WGS 1984 geographic');
`

func (p *Package) migrate() error {
	_, err := p.db.Exec(gpkgMigration)
	return eris.Wrap(err, "gpkg: create metadata tables")
}

// Path returns the file path of the package.
func (p *Package) Path() string { return p.path }

// Close closes the underlying database handle.
func (p *Package) Close() error {
	return p.db.Close()
}

// WriteEdgeLayer persists a projected edge set as a named feature layer.
// An existing layer of the same name is replaced.
func (p *Package) WriteEdgeLayer(ctx context.Context, name string, edges []osm.Edge) error {
	if !layerNameRe.MatchString(name) {
		return eris.Errorf("gpkg: invalid layer name %q", name)
	}
	if len(edges) == 0 {
		return eris.Errorf("gpkg: layer %s has no edges to write", name)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "gpkg: begin write of layer %s", name)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, name),
		fmt.Sprintf(`CREATE TABLE "%s" (
			fid       INTEGER PRIMARY KEY AUTOINCREMENT,
			geom      BLOB NOT NULL,
			way_id    INTEGER,
			from_node INTEGER,
			to_node   INTEGER,
			highway   TEXT,
			name      TEXT,
			maxspeed  TEXT,
			oneway    INTEGER NOT NULL DEFAULT 0,
			length_m  DOUBLE
		)`, name),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "gpkg: create feature table for layer %s", name)
		}
	}

	insert := fmt.Sprintf(`INSERT INTO "%s"
		(geom, way_id, from_node, to_node, highway, name, maxspeed, oneway, length_m)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, name)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eris.Wrapf(err, "gpkg: prepare insert for layer %s", name)
	}
	defer stmt.Close() //nolint:errcheck

	geoms := make([]geom.T, 0, len(edges))
	for _, e := range edges {
		blob, err := EncodeGeometry(e.Geometry, UndefinedCartesianSRS)
		if err != nil {
			return eris.Wrapf(err, "gpkg: encode edge %d of layer %s", e.ID, name)
		}
		oneway := 0
		if e.Oneway {
			oneway = 1
		}
		if _, err := stmt.ExecContext(ctx, blob, e.WayID, e.FromNode, e.ToNode,
			nullable(e.Highway), nullable(e.Name), nullable(e.Maxspeed), oneway, e.LengthM); err != nil {
			return eris.Wrapf(err, "gpkg: insert edge %d of layer %s", e.ID, name)
		}
		geoms = append(geoms, e.Geometry)
	}

	minX, minY, maxX, maxY := envelopeOf(geoms)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			min_x = excluded.min_x, min_y = excluded.min_y,
			max_x = excluded.max_x, max_y = excluded.max_y,
			last_change = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		name, name, minX, minY, maxX, maxY, UndefinedCartesianSRS); err != nil {
		return eris.Wrapf(err, "gpkg: register layer %s in contents", name)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, 'geom', 'LINESTRING', ?, 0, 0)
		ON CONFLICT (table_name, column_name) DO UPDATE SET srs_id = excluded.srs_id`,
		name, UndefinedCartesianSRS); err != nil {
		return eris.Wrapf(err, "gpkg: register geometry column for layer %s", name)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "gpkg: commit layer %s", name)
	}

	zap.L().Info("gpkg: layer written",
		zap.String("layer", name),
		zap.Int("features", len(edges)),
		zap.String("package", p.path),
	)
	return nil
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
