package spatial

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/paulmach/orb"
)

// orbGeometry converts the engine's raw GeoJSON nesting into a typed orb
// geometry for codecs that consume WKB. The caller has already promoted
// and reprojected, so all coordinates here are real numbers; the 3D name
// prefix is dropped because the binary codecs written here are 2-D.
func orbGeometry(g *geometry.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}

	switch strings.TrimPrefix(g.Type, "3D ") {
	case "Point":
		p, err := position(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "MultiPoint":
		pts, err := positions(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return orb.MultiPoint(pts), nil
	case "LineString":
		pts, err := positions(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return orb.LineString(pts), nil
	case "MultiLineString":
		lines, err := lineSet(g.Coordinates)
		if err != nil {
			return nil, err
		}
		ls := make(orb.MultiLineString, len(lines))
		for i, l := range lines {
			ls[i] = orb.LineString(l)
		}
		return ls, nil
	case "Polygon":
		rings, err := lineSet(g.Coordinates)
		if err != nil {
			return nil, err
		}
		return polygon(rings), nil
	case "MultiPolygon":
		arr, ok := g.Coordinates.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid MultiPolygon coordinates")
		}
		mp := make(orb.MultiPolygon, 0, len(arr))
		for _, member := range arr {
			rings, err := lineSet(member)
			if err != nil {
				return nil, err
			}
			mp = append(mp, polygon(rings))
		}
		return mp, nil
	case "GeometryCollection":
		coll := make(orb.Collection, 0, len(g.Geometries))
		for _, member := range g.Geometries {
			og, err := orbGeometry(member)
			if err != nil {
				return nil, err
			}
			coll = append(coll, og)
		}
		return coll, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func polygon(rings [][]orb.Point) orb.Polygon {
	p := make(orb.Polygon, len(rings))
	for i, r := range rings {
		p[i] = orb.Ring(r)
	}
	return p
}

func lineSet(coords any) ([][]orb.Point, error) {
	arr, ok := coords.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid coordinate nesting")
	}
	lines := make([][]orb.Point, 0, len(arr))
	for _, member := range arr {
		pts, err := positions(member)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pts)
	}
	return lines, nil
}

func positions(coords any) ([]orb.Point, error) {
	arr, ok := coords.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid coordinate nesting")
	}
	pts := make([]orb.Point, 0, len(arr))
	for _, member := range arr {
		p, err := position(member)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func position(coords any) (orb.Point, error) {
	arr, ok := coords.([]any)
	if !ok || len(arr) < 2 {
		return orb.Point{}, fmt.Errorf("invalid coordinate pair %v", coords)
	}
	x, err := coordFloat(arr[0])
	if err != nil {
		return orb.Point{}, err
	}
	y, err := coordFloat(arr[1])
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

func coordFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("coordinate %v is not a number", v)
	}
}
