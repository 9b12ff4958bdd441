package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Geometry is a GeoJSON-shaped geometry. Coordinates hold the raw nesting
// ([]any of json.Number / float64 / nil) rather than typed points: source
// data contains [null,null] placeholder pairs that no typed representation
// can carry, and the degenerate short-circuits must see them untouched.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates any         `json:"coordinates,omitempty"`
	Geometries  []*Geometry `json:"geometries,omitempty"`
}

// multiTypes maps each geometry type to its multi-part form. Collections
// pass through unchanged; everything else promotes so a single output
// schema can hold mixed single/multi inputs.
var multiTypes = map[string]string{
	"Point":                 "MultiPoint",
	"LineString":            "MultiLineString",
	"Polygon":               "MultiPolygon",
	"3D Point":              "3D MultiPoint",
	"3D LineString":         "3D MultiLineString",
	"3D Polygon":            "3D MultiPolygon",
	"MultiPoint":            "MultiPoint",
	"MultiLineString":       "MultiLineString",
	"MultiPolygon":          "MultiPolygon",
	"3D MultiPoint":         "3D MultiPoint",
	"3D MultiLineString":    "3D MultiLineString",
	"3D MultiPolygon":       "3D MultiPolygon",
	"GeometryCollection":    "GeometryCollection",
	"3D GeometryCollection": "3D GeometryCollection",
}

// MultiType returns the multi-part form of a geometry type name.
func MultiType(geometryType string) (string, error) {
	mt, ok := multiTypes[geometryType]
	if !ok {
		return "", fmt.Errorf("unsupported geometry type %q", geometryType)
	}
	return mt, nil
}

// IsCollection reports whether the type is a geometry collection.
func IsCollection(geometryType string) bool {
	return strings.HasSuffix(geometryType, "GeometryCollection")
}

// Parse reads a geometry payload from a record field. The payload may be a
// structured object (from a fresh source page) or a JSON-encoded string
// (the common datastore representation). Null payloads (nil, "", "null")
// return (nil, nil). A non-null payload missing both coordinates and
// geometries is malformed and returns an error rather than being dropped,
// so row-count parity between source and outputs holds.
func Parse(value any) (*Geometry, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Geometry:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || trimmed == "null" || trimmed == "None" {
			return nil, nil
		}
		return parseJSON([]byte(trimmed))
	case map[string]any:
		return fromMap(v)
	default:
		return nil, fmt.Errorf("geometry payload has unexpected type %T", value)
	}
}

func parseJSON(data []byte) (*Geometry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unreadable geometry: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (*Geometry, error) {
	g := &Geometry{}

	if t, ok := raw["type"].(string); ok {
		g.Type = t
	}
	if g.Type == "" {
		return nil, fmt.Errorf("geometry missing type")
	}

	if IsCollection(g.Type) {
		members, _ := raw["geometries"].([]any)
		for i, m := range members {
			mm, ok := m.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("geometry collection member %d is not an object", i)
			}
			member, err := fromMap(mm)
			if err != nil {
				return nil, err
			}
			g.Geometries = append(g.Geometries, member)
		}
		return g, nil
	}

	coords, ok := raw["coordinates"]
	if !ok || coords == nil {
		return nil, fmt.Errorf("geometry of type %q missing coordinates", g.Type)
	}
	g.Coordinates = coords
	return g, nil
}

// Degenerate reports whether the (pre-promotion) coordinates are one of
// the two placeholder pairs the reprojector must never see: [0,0] or
// [null,null].
func (g *Geometry) Degenerate() bool {
	return isZeroPair(g.Coordinates) || isNullPair(g.Coordinates)
}

// PromoteToMulti rewrites a single-part geometry as its multi-part form,
// wrapping the coordinates one level deeper. The [null,null] placeholder
// promotes to empty coordinates instead. Collections and already-multi
// geometries are untouched.
func (g *Geometry) PromoteToMulti() error {
	mt, err := MultiType(g.Type)
	if err != nil {
		return err
	}
	if mt == g.Type {
		return nil
	}

	if isNullPair(g.Coordinates) {
		g.Coordinates = []any{}
	} else {
		g.Coordinates = []any{g.Coordinates}
	}
	g.Type = mt
	return nil
}

// EncodeJSON renders the geometry as a GeoJSON string with plain bracket
// delimiters. A nil geometry encodes as the literal null.
func EncodeJSON(g *Geometry) (string, error) {
	if g == nil {
		return "null", nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("error encoding geometry: %w", err)
	}
	return string(data), nil
}

func isZeroPair(coords any) bool {
	pair, ok := coords.([]any)
	if !ok || len(pair) != 2 {
		return false
	}
	return isZero(pair[0]) && isZero(pair[1])
}

func isNullPair(coords any) bool {
	pair, ok := coords.([]any)
	if !ok || len(pair) != 2 {
		return false
	}
	return pair[0] == nil && pair[1] == nil
}

func isZero(v any) bool {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return err == nil && f == 0
	case float64:
		return n == 0
	case int:
		return n == 0
	default:
		return false
	}
}
