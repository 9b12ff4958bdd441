package handlers

import (
	"archive/zip"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/fenrix-tec/ioxport/core/geometry"
	"github.com/fenrix-tec/ioxport/core/proj"
	"github.com/fenrix-tec/ioxport/core/record"
)

func TestTruncateColumnsWhenAnyNameExceedsLimit(t *testing.T) {
	fields := []record.Field{
		{ID: "service_system_manager", Type: "text"},
		{ID: "agency", Type: "text"},
		{ID: "geometry", Type: "text"},
	}

	got := truncateColumns(fields)

	// one id over 10 chars forces the scheme onto every column
	want := map[string]string{
		"service_system_manager": "service1",
		"agency":                 "agency2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("truncateColumns() = %v, want %v", got, want)
	}
}

func TestTruncateColumnsIdentityWhenAllShort(t *testing.T) {
	fields := []record.Field{
		{ID: "name", Type: "text"},
		{ID: "rank", Type: "int"},
		{ID: "geometry", Type: "text"},
	}

	got := truncateColumns(fields)
	want := map[string]string{"name": "name", "rank": "rank"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("truncateColumns() = %v, want %v", got, want)
	}
}

func TestTruncateColumnsDisambiguatesSharedPrefix(t *testing.T) {
	fields := []record.Field{
		{ID: "measurement_start", Type: "text"},
		{ID: "measurement_end", Type: "text"},
	}

	got := truncateColumns(fields)
	if got["measurement_start"] == got["measurement_end"] {
		t.Errorf("columns collide: %v", got)
	}
	if got["measurement_start"] != "measure1" || got["measurement_end"] != "measure2" {
		t.Errorf("truncateColumns() = %v", got)
	}
}

func newShapefileHandler(t *testing.T) *shapefileHandler {
	t.Helper()
	dir := t.TempDir()
	return &shapefileHandler{
		name:        "shp-4326",
		zipPath:     filepath.Join(dir, "parks - 4326.zip"),
		baseName:    "parks - 4326",
		datasetName: "parks",
		outDir:      dir,
		fields: []record.Field{
			{ID: "service_system_manager", Type: "text"},
			{ID: "agency", Type: "text"},
			{ID: "geometry", Type: "text"},
		},
		schemaType:  "MultiPoint",
		targetEPSG:  4326,
		transformer: geometry.Transformer{SourceEPSG: 4326, TargetEPSG: 4326, Reprojector: proj.NewRegistry()},
	}
}

func shapefileRecord(manager, agency, geom string) record.Record {
	r := record.New()
	r.Set("service_system_manager", manager)
	r.Set("agency", agency)
	r.Set(record.GeometryField, geom)
	return r
}

func TestShapefileHandlerBundlesSidecarSet(t *testing.T) {
	h := newShapefileHandler(t)
	rows := &sliceRows{records: []record.Record{
		shapefileRecord("city", "parks dept", `{"type":"Point","coordinates":[-79.38,43.65]}`),
		shapefileRecord("city", "forestry", "null"), // null shape row
	}}

	path, err := h.ToFile(rows)
	if err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}
	if path != h.zipPath {
		t.Errorf("artifact path = %q, want %q", path, h.zipPath)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening zip: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{
		"parks - 4326.cpg",
		"parks - 4326.dbf",
		"parks - 4326.prj",
		"parks - 4326.shp",
		"parks - 4326.shx",
		"parks fields.csv",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("zip entries = %v, want %v", names, want)
	}

	// the field map ties each truncated DBF column to its source field
	var mapEntry *zip.File
	for _, f := range zr.File {
		if f.Name == "parks fields.csv" {
			mapEntry = f
		}
	}
	rc, err := mapEntry.Open()
	if err != nil {
		t.Fatalf("opening field map: %v", err)
	}
	defer rc.Close()
	lines, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("reading field map: %v", err)
	}
	wantLines := [][]string{
		{"field", "name"},
		{"service1", "service_system_manager"},
		{"agency2", "agency"},
	}
	if !reflect.DeepEqual(lines, wantLines) {
		t.Errorf("field map = %v, want %v", lines, wantLines)
	}
}

func TestShapefileHandlerRefusesLeftoverScratchDir(t *testing.T) {
	h := newShapefileHandler(t)
	if err := os.Mkdir(filepath.Join(h.outDir, h.baseName), 0755); err != nil {
		t.Fatalf("pre-creating scratch dir: %v", err)
	}

	_, err := h.ToFile(&sliceRows{records: []record.Record{
		shapefileRecord("city", "parks dept", `{"type":"Point","coordinates":[-79.38,43.65]}`),
	}})
	if err == nil || !strings.Contains(err.Error(), "scratch dir") {
		t.Fatalf("error = %v, want scratch dir collision", err)
	}
}

func TestRenameFieldsKeepsOrder(t *testing.T) {
	props := record.New()
	props.Set("service_system_manager", "x")
	props.Set("agency", "y")

	renamed := renameFields(props, map[string]string{
		"service_system_manager": "service1",
		"agency":                 "agency2",
	})

	var keys []string
	for k := range renamed.All() {
		keys = append(keys, k)
	}
	if !reflect.DeepEqual(keys, []string{"service1", "agency2"}) {
		t.Errorf("renamed key order = %v", keys)
	}
	if v, _ := renamed.Get("service1"); v != "x" {
		t.Errorf("service1 = %v", v)
	}
}
