package spatial

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/internal/logger"
	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// Well-known text definitions written to the .prj sidecar. Outputs in a
// CRS missing from this table still produce valid shapefiles, they just
// ship without projection metadata.
var prjDefinitions = map[int]string{
	4326: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`,
	3857: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1]]`,
	2952: `PROJCS["NAD83(CSRS) / MTM zone 10",GEOGCS["NAD83(CSRS)",DATUM["NAD83_Canadian_Spatial_Reference_System",SPHEROID["GRS 1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-79.5],PARAMETER["scale_factor",0.9999],PARAMETER["false_easting",304800],PARAMETER["false_northing",0],UNIT["metre",1]]`,
}

type shapefileDriver struct{}

func (d shapefileDriver) Open(path string, schema Schema, targetEPSG int) (Layer, error) {
	shapeType, err := shapeTypeFor(schema.GeometryType)
	if err != nil {
		return nil, err
	}

	w, err := shp.Create(path, shapeType)
	if err != nil {
		return nil, fmt.Errorf("error creating shapefile: %w", err)
	}

	fields := make([]shp.Field, len(schema.Properties))
	for i, p := range schema.Properties {
		fields[i] = dbfField(p)
	}
	w.SetFields(fields)

	if err := writeSidecars(path, targetEPSG); err != nil {
		w.Close()
		return nil, err
	}

	logger.Debug("Shapefile layer opened: %s (EPSG:%d)", path, targetEPSG)
	return &shapefileLayer{w: w, path: path, schema: schema}, nil
}

type shapefileLayer struct {
	w      *shp.Writer
	path   string
	schema Schema
	row    int
}

func (l *shapefileLayer) Write(f Feature) error {
	shape, err := shapeFor(f.Geometry, l.schema.GeometryType)
	if err != nil {
		return err
	}
	l.w.Write(shape)

	for i, p := range l.schema.Properties {
		v, _ := f.Properties.Get(p.Name)
		if err := l.w.WriteAttribute(l.row, i, dbfValue(v, p.Type)); err != nil {
			return fmt.Errorf("error writing attribute %s: %w", p.Name, err)
		}
	}
	l.row++
	return nil
}

func (l *shapefileLayer) Close() error {
	l.w.Close()

	// go-shp names the attribute table by appending "dbf" to the .shp
	// path with its extension stripped, so the file lands without a dot.
	// Rename it so the sidecar set reads .shp/.shx/.dbf.
	base := strings.TrimSuffix(l.path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return fmt.Errorf("error renaming attribute table: %w", err)
		}
	}
	return nil
}

func shapeTypeFor(geometryType string) (shp.ShapeType, error) {
	switch strings.TrimPrefix(geometryType, "3D ") {
	case "MultiPoint":
		return shp.MULTIPOINT, nil
	case "MultiLineString":
		return shp.POLYLINE, nil
	case "MultiPolygon":
		return shp.POLYGON, nil
	default:
		return shp.NULL, fmt.Errorf("geometry type %q cannot be written to a shapefile", geometryType)
	}
}

// shapeFor builds the ESRI shape record. Records with no geometry, or
// with an empty coordinate list left behind by a null-island source
// placeholder, become null shapes.
func shapeFor(g *geometry.Geometry, geometryType string) (shp.Shape, error) {
	if g == nil {
		return &shp.Null{}, nil
	}
	if coords, ok := g.Coordinates.([]any); ok && len(coords) == 0 {
		return &shp.Null{}, nil
	}

	switch strings.TrimPrefix(geometryType, "3D ") {
	case "MultiPoint":
		pts, err := positions(g.Coordinates)
		if err != nil {
			return nil, err
		}
		points := shpPoints(pts)
		return &shp.MultiPoint{
			Box:       shpBox(points),
			NumPoints: int32(len(points)),
			Points:    points,
		}, nil
	case "MultiLineString":
		lines, err := lineSet(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return shpPolyLine(lines), nil
	case "MultiPolygon":
		arr, ok := g.Coordinates.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid MultiPolygon coordinates")
		}
		var rings [][]orb.Point
		for _, member := range arr {
			set, err := lineSet(member)
			if err != nil {
				return nil, err
			}
			rings = append(rings, set...)
		}
		pl := shpPolyLine(rings)
		return (*shp.Polygon)(pl), nil
	default:
		return nil, fmt.Errorf("geometry type %q cannot be written to a shapefile", geometryType)
	}
}

func shpPolyLine(parts [][]orb.Point) *shp.PolyLine {
	var points []shp.Point
	offsets := make([]int32, len(parts))
	for i, part := range parts {
		offsets[i] = int32(len(points))
		points = append(points, shpPoints(part)...)
	}
	return &shp.PolyLine{
		Box:       shpBox(points),
		NumParts:  int32(len(parts)),
		NumPoints: int32(len(points)),
		Parts:     offsets,
		Points:    points,
	}
}

func shpPoints(pts []orb.Point) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}

func shpBox(points []shp.Point) shp.Box {
	if len(points) == 0 {
		return shp.Box{}
	}
	box := shp.Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		if p.X < box.MinX {
			box.MinX = p.X
		}
		if p.Y < box.MinY {
			box.MinY = p.Y
		}
		if p.X > box.MaxX {
			box.MaxX = p.X
		}
		if p.Y > box.MaxY {
			box.MaxY = p.Y
		}
	}
	return box
}

func dbfField(p Property) shp.Field {
	switch p.Type {
	case "int":
		return shp.NumberField(p.Name, 18)
	case "float":
		return shp.FloatField(p.Name, 33, 8)
	default:
		return shp.StringField(p.Name, 254)
	}
}

func dbfValue(v any, schemaType string) any {
	if v == nil {
		if schemaType == "str" {
			return ""
		}
		return 0
	}
	switch schemaType {
	case "int":
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
		return v
	case "float":
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func writeSidecars(shpPath string, targetEPSG int) error {
	base := strings.TrimSuffix(shpPath, ".shp")

	if wkt, ok := prjDefinitions[targetEPSG]; ok {
		if err := os.WriteFile(base+".prj", []byte(wkt), 0644); err != nil {
			return fmt.Errorf("error writing .prj: %w", err)
		}
	} else {
		logger.Warn("No projection definition for EPSG:%d, skipping .prj", targetEPSG)
	}

	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0644); err != nil {
		return fmt.Errorf("error writing .cpg: %w", err)
	}
	return nil
}

func init() {
	MustRegister("shp", shapefileDriver{})
}
