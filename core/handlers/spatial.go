package handlers

import (
	"encoding/csv"
	"fmt"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/output"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/core/spatial"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

// spatialCSVHandler writes the tabular view of a spatial dataset: every
// ordinary field as text plus the transformed geometry re-serialized to a
// GeoJSON string in its own column.
type spatialCSVHandler struct {
	name        string
	path        string
	fieldIDs    []string
	compression string
	transformer geometry.Transformer
}

func (h *spatialCSVHandler) Name() string {
	return h.name
}

func (h *spatialCSVHandler) ToFile(rows cache.Rows) (string, error) {
	transformed := h.transformer.Rows(rows)

	w, path, err := output.NewWriter(h.path, h.compression)
	if err != nil {
		return "", err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(h.fieldIDs); err != nil {
		w.Close()
		return "", fmt.Errorf("error writing csv header: %w", err)
	}

	count := 0
	for transformed.Next() {
		rec := transformed.Record()
		cells := make([]string, len(h.fieldIDs))
		for i, id := range h.fieldIDs {
			v, _ := rec.Get(id)
			if id == record.GeometryField {
				g, _ := v.(*geometry.Geometry)
				encoded, err := geometry.EncodeJSON(g)
				if err != nil {
					w.Close()
					return "", err
				}
				cells[i] = encoded
				continue
			}
			cells[i] = record.FormatValue(v)
		}
		if err := cw.Write(cells); err != nil {
			w.Close()
			return "", fmt.Errorf("error writing csv row: %w", err)
		}
		count++
	}
	if err := transformed.Err(); err != nil {
		w.Close()
		return "", err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		w.Close()
		return "", fmt.Errorf("error flushing csv: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d records to %s", h.name, count, path)
	return path, nil
}

// layerHandler drives a registered spatial codec (geojson, gpkg) over the
// transformed stream.
type layerHandler struct {
	name        string
	path        string
	driver      string
	schema      spatial.Schema
	targetEPSG  int
	transformer geometry.Transformer
}

func (h *layerHandler) Name() string {
	return h.name
}

func (h *layerHandler) ToFile(rows cache.Rows) (string, error) {
	driver, err := spatial.Lookup(h.driver)
	if err != nil {
		return "", err
	}

	layer, err := driver.Open(h.path, h.schema, h.targetEPSG)
	if err != nil {
		return "", err
	}

	transformed := h.transformer.Rows(rows)
	count := 0
	for transformed.Next() {
		feature, err := featureOf(transformed.Record())
		if err != nil {
			layer.Close()
			return "", err
		}
		if err := layer.Write(feature); err != nil {
			layer.Close()
			return "", err
		}
		count++
	}
	if err := transformed.Err(); err != nil {
		layer.Close()
		return "", err
	}
	if err := layer.Close(); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d features to %s", h.name, count, h.path)
	return h.path, nil
}

// featureOf splits a transformed record into its geometry and the ordered
// non-geometry properties.
func featureOf(rec record.Record) (spatial.Feature, error) {
	props := record.New()
	var geom *geometry.Geometry
	for k, v := range rec.All() {
		if k == record.GeometryField {
			if v != nil {
				g, ok := v.(*geometry.Geometry)
				if !ok {
					return spatial.Feature{}, fmt.Errorf("geometry field holds %T, not a parsed geometry", v)
				}
				geom = g
			}
			continue
		}
		props.Set(k, v)
	}
	return spatial.Feature{Properties: props, Geometry: geom}, nil
}
