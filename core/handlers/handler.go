// Package handlers turns one pass over the cached record stream into one
// output artifact. Every handler owns its artifact path and reports it
// back on success, so a conversion run ends with a name-to-path map.
package handlers

import (
	"encoding/json"

	"github.com/fenrix-tec/ioxport/core/cache"
)

const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatXML     = "xml"
	FormatYAML    = "yaml"
	FormatXLSX    = "xlsx"
	FormatGeoJSON = "geojson"
	FormatGPKG    = "gpkg"
	FormatSHP     = "shp"
)

// Handler consumes one full pass of the cached stream and writes a single
// artifact. ToFile returns the path of the file it produced.
type Handler interface {
	Name() string
	ToFile(rows cache.Rows) (string, error)
}

// TabularFormats lists the formats a non-spatial dataset can request.
func TabularFormats() []string {
	return []string{FormatCSV, FormatJSON, FormatXML, FormatYAML, FormatXLSX}
}

// SpatialFormats lists the formats a spatial dataset can request.
func SpatialFormats() []string {
	return []string{FormatCSV, FormatGeoJSON, FormatGPKG, FormatSHP}
}

// IsTabularFormat reports whether format is valid for non-spatial datasets.
func IsTabularFormat(format string) bool {
	for _, f := range TabularFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// IsSpatialFormat reports whether format is valid for spatial datasets.
func IsSpatialFormat(format string) bool {
	for _, f := range SpatialFormats() {
		if f == format {
			return true
		}
	}
	return false
}

// numericValue unwraps json.Number into int64 or float64 so typed sinks
// receive real numbers instead of number-shaped strings.
func numericValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}
