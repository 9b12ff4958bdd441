package record

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// GeometryField is the reserved field id that marks a dataset as spatial.
const GeometryField = "geometry"

// Field describes one dataset column: its id and semantic type as reported
// by the record source (text, date, timestamp, float, int, numeric, time,
// possibly with a width suffix like float4 or int8).
type Field struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Metadata describes a dataset: display name (used for output filenames),
// ordered field list and, for spatial datasets, the sampled base geometry
// type of the first non-null geometry.
type Metadata struct {
	Name         string
	Fields       []Field
	GeometryType string
}

// FieldIDs returns the ordered field ids.
func (m Metadata) FieldIDs() []string {
	ids := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		ids[i] = f.ID
	}
	return ids
}

// IsSpatial reports whether the dataset schema carries a geometry field.
func (m Metadata) IsSpatial() bool {
	for _, f := range m.Fields {
		if f.ID == GeometryField {
			return true
		}
	}
	return false
}

// SchemaType maps a semantic field type to the spatial write-schema
// vocabulary (str, float, int). Width suffixes are stripped before lookup,
// so float4 and float8 both resolve as float.
func SchemaType(fieldType string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, fieldType)

	switch stripped {
	case "text", "date", "timestamp", "time":
		return "str", nil
	case "float", "numeric":
		return "float", nil
	case "int":
		return "int", nil
	default:
		return "", fmt.Errorf("no schema type mapping for field type %q", fieldType)
	}
}

// Record is an ordered mapping of field id to scalar value. Order matters
// for every output format, so a plain map is not an option.
type Record struct {
	m *orderedmap.OrderedMap[string, any]
}

func New() Record {
	return Record{m: orderedmap.NewOrderedMap[string, any]()}
}

func (r Record) Set(key string, value any) {
	r.m.Set(key, value)
}

func (r Record) Get(key string) (any, bool) {
	return r.m.Get(key)
}

func (r Record) Len() int {
	return r.m.Len()
}

// All iterates fields in insertion order.
func (r Record) All() iter.Seq2[string, any] {
	return r.m.AllFromFront()
}

// Values returns the record's values in the order given by fieldIDs.
// Missing fields yield nil.
func (r Record) Values(fieldIDs []string) []any {
	values := make([]any, len(fieldIDs))
	for i, id := range fieldIDs {
		v, _ := r.m.Get(id)
		values[i] = v
	}
	return values
}

// FormatValue renders a scalar for text outputs (csv cells, xml element
// text). Nulls become empty strings; json.Number keeps its literal form so
// ints never grow a decimal point.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return fmt.Sprintf("%.15g", val)
	case float32:
		return fmt.Sprintf("%.15g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
