// Package proj provides the built-in Reprojector: a registry of per
// EPSG-pair point transforms applied across a GeoJSON coordinate nesting.
// WGS84 <-> Web Mercator and WGS84 <-> MTM zone 10 ship by default;
// anything else is registered by the embedding application.
package proj

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// EPSG codes with built-in transforms.
const (
	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
	EPSGMTMZone10   = 2952
)

// PointTransform converts one coordinate pair between two fixed CRS.
type PointTransform func(x, y float64) (float64, float64)

// Registry maps (source, target) EPSG pairs to point transforms.
type Registry struct {
	transforms map[[2]int]PointTransform
}

// NewRegistry returns a registry with the WGS84/WebMercator pair built in.
func NewRegistry() *Registry {
	r := &Registry{transforms: map[[2]int]PointTransform{}}

	r.Register(EPSGWGS84, EPSGWebMercator, func(x, y float64) (float64, float64) {
		p := project.WGS84.ToMercator(orb.Point{x, y})
		return p[0], p[1]
	})
	r.Register(EPSGWebMercator, EPSGWGS84, func(x, y float64) (float64, float64) {
		p := project.Mercator.ToWGS84(orb.Point{x, y})
		return p[0], p[1]
	})

	// NAD83(CSRS) / MTM zone 10, the projected CRS Toronto open data
	// ships in. NAD83 and WGS84 are treated as coincident, which holds
	// to roughly a metre.
	mtm10 := newTransverseMercator(-79.5, 0.9999, 304800, 0)
	r.Register(EPSGWGS84, EPSGMTMZone10, mtm10.Forward)
	r.Register(EPSGMTMZone10, EPSGWGS84, mtm10.Inverse)

	return r
}

// Register adds or replaces the transform for a (source, target) pair.
func (r *Registry) Register(sourceEPSG, targetEPSG int, fn PointTransform) {
	r.transforms[[2]int{sourceEPSG, targetEPSG}] = fn
}

// Supports reports whether a transform exists for the pair.
func (r *Registry) Supports(sourceEPSG, targetEPSG int) bool {
	if sourceEPSG == targetEPSG {
		return true
	}
	_, ok := r.transforms[[2]int{sourceEPSG, targetEPSG}]
	return ok
}

// Reproject walks the coordinate nesting and applies the pair's transform
// to every position. Extra dimensions beyond x,y are preserved.
func (r *Registry) Reproject(coords any, sourceEPSG, targetEPSG int) (any, error) {
	if sourceEPSG == targetEPSG {
		return coords, nil
	}

	fn, ok := r.transforms[[2]int{sourceEPSG, targetEPSG}]
	if !ok {
		return nil, fmt.Errorf("no transform registered for EPSG:%d -> EPSG:%d", sourceEPSG, targetEPSG)
	}
	return walk(coords, fn)
}

func walk(coords any, fn PointTransform) (any, error) {
	arr, ok := coords.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected coordinate value %v", coords)
	}
	if len(arr) == 0 {
		return arr, nil
	}

	if isPosition(arr) {
		return transformPosition(arr, fn)
	}

	out := make([]any, len(arr))
	for i, member := range arr {
		transformed, err := walk(member, fn)
		if err != nil {
			return nil, err
		}
		out[i] = transformed
	}
	return out, nil
}

// isPosition detects a coordinate leaf: a numeric [x, y, ...] array.
func isPosition(arr []any) bool {
	if len(arr) < 2 {
		return false
	}
	switch arr[0].(type) {
	case json.Number, float64:
		return true
	default:
		return false
	}
}

func transformPosition(arr []any, fn PointTransform) (any, error) {
	x, err := toFloat(arr[0])
	if err != nil {
		return nil, err
	}
	y, err := toFloat(arr[1])
	if err != nil {
		return nil, err
	}

	tx, ty := fn(x, y)

	out := make([]any, len(arr))
	out[0] = tx
	out[1] = ty
	copy(out[2:], arr[2:])
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("coordinate %v is not a number", v)
	}
}
