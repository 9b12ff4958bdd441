// Package spatial holds the geospatial write drivers: GeoJSON, GeoPackage
// and ESRI Shapefile. Handlers pick a driver by name, open a layer with a
// write schema and a target CRS, and stream features into it.
package spatial

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/record"
)

// Property is one non-geometry column of the write schema. Type uses the
// schema vocabulary: str, float or int.
type Property struct {
	Name string
	Type string
}

// Schema is what a driver needs to open a layer: the dataset's promoted
// geometry type plus its ordered properties.
type Schema struct {
	GeometryType string
	Properties   []Property
}

// Feature is one output record: ordered properties plus a transformed
// geometry (nil for null geometries).
type Feature struct {
	Properties record.Record
	Geometry   *geometry.Geometry
}

// Layer is an open output the driver writes features into.
type Layer interface {
	Write(f Feature) error
	Close() error
}

// Driver creates layers for one concrete format.
type Driver interface {
	Open(path string, schema Schema, targetEPSG int) (Layer, error)
}

var registry = map[string]Driver{}

// Register adds a driver under a format name.
func Register(format string, driver Driver) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if _, exists := registry[format]; exists {
		return fmt.Errorf("spatial: driver %q already registered", format)
	}
	registry[format] = driver
	return nil
}

// MustRegister is Register that panics, for init-time wiring.
func MustRegister(format string, driver Driver) {
	if err := Register(format, driver); err != nil {
		panic(err)
	}
}

// Lookup returns the driver for a format name.
func Lookup(format string) (Driver, error) {
	driver, ok := registry[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("no spatial driver for format %q (available: %s)",
			format, strings.Join(List(), ", "))
	}
	return driver, nil
}

// List returns the registered format names, sorted.
func List() []string {
	formats := make([]string, 0, len(registry))
	for name := range registry {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}
