package spatial

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fenrix-tec/ioxport/core/encoders"
	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

type geoJSONDriver struct{}

// Open starts a streaming FeatureCollection. Features are written one by
// one with a leading comma after the first, so the file is valid JSON at
// Close without ever holding the collection in memory.
func (d geoJSONDriver) Open(path string, schema Schema, targetEPSG int) (Layer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating geojson file: %w", err)
	}

	w := bufio.NewWriterSize(file, 256*1024)
	header := fmt.Sprintf(
		`{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::%d"}},"features":[`,
		targetEPSG)
	if _, err := w.WriteString(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("error writing geojson header: %w", err)
	}

	logger.Debug("GeoJSON layer opened: %s (EPSG:%d)", path, targetEPSG)
	return &geoJSONLayer{file: file, w: w}, nil
}

type geoJSONLayer struct {
	file  *os.File
	w     *bufio.Writer
	count int
}

func (l *geoJSONLayer) Write(f Feature) error {
	if l.count > 0 {
		if err := l.w.WriteByte(','); err != nil {
			return fmt.Errorf("error writing feature separator: %w", err)
		}
	}

	props, err := encoders.EncodeRow(f.Properties)
	if err != nil {
		return fmt.Errorf("error encoding feature properties: %w", err)
	}
	geom, err := geometry.EncodeJSON(f.Geometry)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(l.w, `{"type":"Feature","properties":%s,"geometry":%s}`, props, geom); err != nil {
		return fmt.Errorf("error writing feature: %w", err)
	}

	l.count++
	return nil
}

func (l *geoJSONLayer) Close() error {
	if _, err := l.w.WriteString("]}\n"); err != nil {
		l.file.Close()
		return fmt.Errorf("error closing feature collection: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		l.file.Close()
		return fmt.Errorf("error flushing geojson: %w", err)
	}
	return l.file.Close()
}

func init() {
	MustRegister("geojson", geoJSONDriver{})
}
