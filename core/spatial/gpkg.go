package spatial

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/internal/logger"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"
)

// gpkgApplicationID is the "GPKG" magic GeoPackage requires in the
// sqlite header; gpkgUserVersion encodes GeoPackage 1.3.0.
const (
	gpkgApplicationID = 0x47504B47
	gpkgUserVersion   = 10300
)

const wgs84Definition = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

type gpkgDriver struct{}

func (d gpkgDriver) Open(path string, schema Schema, targetEPSG int) (Layer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error creating geopackage: %w", err)
	}

	table := layerName(path)
	if err := initGeoPackage(db, table, schema, targetEPSG); err != nil {
		db.Close()
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error starting geopackage transaction: %w", err)
	}

	cols := make([]string, 0, len(schema.Properties)+1)
	marks := make([]string, 0, len(schema.Properties)+1)
	cols = append(cols, `"geom"`)
	marks = append(marks, "?")
	for _, p := range schema.Properties {
		cols = append(cols, quoteSQL(p.Name))
		marks = append(marks, "?")
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteSQL(table), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("error preparing feature insert: %w", err)
	}

	logger.Debug("GeoPackage layer opened: %s table=%s (EPSG:%d)", path, table, targetEPSG)
	return &gpkgLayer{db: db, tx: tx, stmt: stmt, schema: schema, srsID: targetEPSG}, nil
}

type gpkgLayer struct {
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	schema Schema
	srsID  int
}

func (l *gpkgLayer) Write(f Feature) error {
	blob, err := gpkgGeometry(f.Geometry, l.srsID)
	if err != nil {
		return err
	}

	args := make([]any, 0, len(l.schema.Properties)+1)
	if blob == nil {
		args = append(args, nil)
	} else {
		args = append(args, blob)
	}
	for _, p := range l.schema.Properties {
		v, _ := f.Properties.Get(p.Name)
		args = append(args, sqlValue(v))
	}

	if _, err := l.stmt.Exec(args...); err != nil {
		return fmt.Errorf("error inserting feature: %w", err)
	}
	return nil
}

func (l *gpkgLayer) Close() error {
	l.stmt.Close()
	if err := l.tx.Commit(); err != nil {
		l.db.Close()
		return fmt.Errorf("error committing geopackage: %w", err)
	}
	return l.db.Close()
}

func initGeoPackage(db *sql.DB, table string, schema Schema, targetEPSG int) error {
	stmts := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			PRIMARY KEY (table_name, column_name)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("error initializing geopackage: %w", err)
		}
	}

	srs := [][]any{
		{"Undefined cartesian SRS", -1, "NONE", -1, "undefined", "undefined cartesian coordinate reference system"},
		{"Undefined geographic SRS", 0, "NONE", 0, "undefined", "undefined geographic coordinate reference system"},
		{"WGS 84", 4326, "EPSG", 4326, wgs84Definition, "longitude/latitude coordinates in decimal degrees"},
	}
	if targetEPSG != 4326 {
		srs = append(srs, []any{fmt.Sprintf("EPSG:%d", targetEPSG), targetEPSG, "EPSG", targetEPSG, "undefined", nil})
	}
	for _, row := range srs {
		if _, err := db.Exec(`INSERT INTO gpkg_spatial_ref_sys
			(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
			VALUES (?, ?, ?, ?, ?, ?)`, row...); err != nil {
			return fmt.Errorf("error inserting spatial ref: %w", err)
		}
	}

	colDefs := []string{`"fid" INTEGER PRIMARY KEY AUTOINCREMENT`, `"geom" BLOB`}
	for _, p := range schema.Properties {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", quoteSQL(p.Name), sqlType(p.Type)))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteSQL(table), strings.Join(colDefs, ", "))); err != nil {
		return fmt.Errorf("error creating feature table: %w", err)
	}

	typeName := strings.ToUpper(strings.TrimPrefix(schema.GeometryType, "3D "))
	if _, err := db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		table, table, targetEPSG); err != nil {
		return fmt.Errorf("error registering contents: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, 'geom', ?, ?, 0, 0)`, table, typeName, targetEPSG); err != nil {
		return fmt.Errorf("error registering geometry column: %w", err)
	}

	return nil
}

// gpkgGeometry encodes a standard GeoPackageBinary blob: the GP header
// (little-endian flag, empty flag when the geometry has no coordinates,
// no envelope) followed by the WKB body.
func gpkgGeometry(g *geometry.Geometry, srsID int) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	og, err := orbGeometry(g)
	if err != nil {
		return nil, err
	}

	body, err := wkb.Marshal(og)
	if err != nil {
		return nil, fmt.Errorf("error encoding WKB: %w", err)
	}

	flags := byte(0x01) // little endian, no envelope
	if coords, ok := g.Coordinates.([]any); ok && len(coords) == 0 {
		flags |= 0x10 // empty geometry
	}

	var buf bytes.Buffer
	buf.Grow(8 + len(body))
	buf.WriteString("GP")
	buf.WriteByte(0x00) // version 1
	buf.WriteByte(flags)
	if err := binary.Write(&buf, binary.LittleEndian, int32(srsID)); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

func sqlType(schemaType string) string {
	switch schemaType {
	case "int":
		return "INTEGER"
	case "float":
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqlValue(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	default:
		return v
	}
}

func quoteSQL(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

var layerNamePattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// layerName derives a sql-safe table name from the output filename.
func layerName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := layerNamePattern.ReplaceAllString(base, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "features"
	}
	return name
}

func init() {
	MustRegister("gpkg", gpkgDriver{})
}
