package handlers

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/core/spatial"
	"github.com/fenrix-tec/ioxport/internal/logger"
)

// dbfNameLimit is the DBF field name capacity that forces truncation.
const dbfNameLimit = 10

// shapefileHandler writes the shapefile sidecar family into a scratch
// directory, records the truncated-to-original column mapping, and zips
// the lot into one artifact.
type shapefileHandler struct {
	name        string
	zipPath     string
	baseName    string
	datasetName string
	outDir      string
	fields      []record.Field
	schemaType  string
	targetEPSG  int
	transformer geometry.Transformer
}

func (h *shapefileHandler) Name() string {
	return h.name
}

func (h *shapefileHandler) ToFile(rows cache.Rows) (string, error) {
	// Mkdir, not MkdirAll: a leftover scratch dir means a previous run
	// did not clean up and silently reusing it could mix artifacts.
	scratch := filepath.Join(h.outDir, h.baseName)
	if err := os.Mkdir(scratch, 0755); err != nil {
		return "", fmt.Errorf("error creating shapefile scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	colMap := truncateColumns(h.fields)

	properties := make([]spatial.Property, 0, len(h.fields))
	for _, f := range h.fields {
		if f.ID == record.GeometryField {
			continue
		}
		st, err := record.SchemaType(f.Type)
		if err != nil {
			return "", err
		}
		properties = append(properties, spatial.Property{Name: colMap[f.ID], Type: st})
	}
	schema := spatial.Schema{GeometryType: h.schemaType, Properties: properties}

	driver, err := spatial.Lookup(FormatSHP)
	if err != nil {
		return "", err
	}
	layer, err := driver.Open(filepath.Join(scratch, h.baseName+".shp"), schema, h.targetEPSG)
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
		feature.Properties = renameFields(feature.Properties, colMap)
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

	if err := writeFieldMap(scratch, h.datasetName, h.fields, colMap); err != nil {
		return "", err
	}
	if err := zipDirectory(scratch, h.zipPath); err != nil {
		return "", err
	}

	logger.Info("Handler %s wrote %d features to %s", h.name, count, h.zipPath)
	return h.zipPath, nil
}

// truncateColumns maps every non-geometry field id to its DBF column name.
// Names only shrink when at least one id exceeds the DBF limit; then every
// id becomes its first seven characters plus a 1-based sequence number, so
// two long ids sharing a prefix stay distinct.
func truncateColumns(fields []record.Field) map[string]string {
	needed := false
	for _, f := range fields {
		if f.ID != record.GeometryField && len(f.ID) > dbfNameLimit {
			needed = true
			break
		}
	}

	colMap := make(map[string]string, len(fields))
	seq := 0
	for _, f := range fields {
		if f.ID == record.GeometryField {
			continue
		}
		seq++
		if !needed {
			colMap[f.ID] = f.ID
			continue
		}
		prefix := f.ID
		if len(prefix) > 7 {
			prefix = prefix[:7]
		}
		colMap[f.ID] = prefix + strconv.Itoa(seq)
	}
	return colMap
}

func renameFields(props record.Record, colMap map[string]string) record.Record {
	renamed := record.New()
	for k, v := range props.All() {
		renamed.Set(colMap[k], v)
	}
	return renamed
}

// writeFieldMap records which truncated DBF column holds which original
// field, as "{dataset} fields.csv" beside the shapefile.
func writeFieldMap(dir, datasetName string, fields []record.Field, colMap map[string]string) error {
	path := filepath.Join(dir, datasetName+" fields.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating field map: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"field", "name"}); err != nil {
		return err
	}
	for _, f := range fields {
		if f.ID == record.GeometryField {
			continue
		}
		if err := w.Write([]string{colMap[f.ID], f.ID}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func zipDirectory(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("error creating zip: %w", err)
	}

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		zw.Close()
		out.Close()
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addZipEntry(zw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("error finalizing zip: %w", err)
	}
	return out.Close()
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, file)
	return err
}
