package geometry

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/fenrix-tec/ioxport/core/cache"
	"github.com/fenrix-tec/ioxport/core/record"
)

// sliceRows serves in-memory records through the cache cursor shape.
type sliceRows struct {
	records []record.Record
	pos     int
}

func (r *sliceRows) Next() bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Record() record.Record { return r.records[r.pos-1] }
func (r *sliceRows) Err() error            { return nil }
func (r *sliceRows) Close() error          { return nil }

// countingReprojector returns coordinates unchanged but counts invocations
// so the short-circuit paths are observable.
type countingReprojector struct {
	calls int
}

func (c *countingReprojector) Reproject(coords any, sourceEPSG, targetEPSG int) (any, error) {
	c.calls++
	return coords, nil
}

func geomRecord(payload any) record.Record {
	r := record.New()
	r.Set("id", json.Number("1"))
	r.Set(record.GeometryField, payload)
	return r
}

func collect(t *testing.T, rows cache.Rows) []record.Record {
	t.Helper()
	var out []record.Record
	for rows.Next() {
		out = append(out, rows.Record())
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err() = %v", err)
	}
	return out
}

func TestApplyPromotesAndReprojects(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: rp}

	rec := geomRecord(`{"type":"Point","coordinates":[-79.38,43.65]}`)
	if err := tr.Apply(rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	v, _ := rec.Get(record.GeometryField)
	g := v.(*Geometry)
	if g.Type != "MultiPoint" {
		t.Errorf("Type = %q, want MultiPoint", g.Type)
	}
	if rp.calls != 1 {
		t.Errorf("reprojector calls = %d, want 1", rp.calls)
	}
}

func TestApplyZeroPairSkipsReprojection(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: rp}

	rec := geomRecord(`{"type":"Point","coordinates":[0,0]}`)
	if err := tr.Apply(rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	v, _ := rec.Get(record.GeometryField)
	g := v.(*Geometry)
	want := []any{[]any{json.Number("0"), json.Number("0")}}
	if !reflect.DeepEqual(g.Coordinates, want) {
		t.Errorf("Coordinates = %v, want %v", g.Coordinates, want)
	}
	if rp.calls != 0 {
		t.Errorf("reprojector calls = %d, want 0", rp.calls)
	}
}

func TestApplyNullPairBecomesEmptyWithoutReprojection(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: rp}

	rec := geomRecord(`{"type":"Point","coordinates":[null,null]}`)
	if err := tr.Apply(rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	v, _ := rec.Get(record.GeometryField)
	g := v.(*Geometry)
	if coords, ok := g.Coordinates.([]any); !ok || len(coords) != 0 {
		t.Errorf("Coordinates = %v, want []", g.Coordinates)
	}
	if rp.calls != 0 {
		t.Errorf("reprojector calls = %d, want 0", rp.calls)
	}
}

func TestApplyNullGeometryPassesThrough(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: rp}

	rec := geomRecord("null")
	if err := tr.Apply(rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	v, _ := rec.Get(record.GeometryField)
	if v != nil {
		t.Errorf("geometry = %v, want nil", v)
	}
	if rp.calls != 0 {
		t.Errorf("reprojector calls = %d, want 0", rp.calls)
	}
}

func TestApplySameEPSGStillNormalizes(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 4326, Reprojector: rp}

	rec := geomRecord(`{"type":"Point","coordinates":[-79.38,43.65]}`)
	if err := tr.Apply(rec); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	v, _ := rec.Get(record.GeometryField)
	g := v.(*Geometry)
	if g.Type != "MultiPoint" {
		t.Errorf("Type = %q, want MultiPoint even without CRS change", g.Type)
	}
	if rp.calls != 0 {
		t.Errorf("reprojector calls = %d, want 0", rp.calls)
	}
}

func TestTransformRowsFatalOnMalformedRecord(t *testing.T) {
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: &countingReprojector{}}
	rows := tr.Rows(&sliceRows{records: []record.Record{
		geomRecord(`{"type":"Point","coordinates":[1,2]}`),
		geomRecord(`{"type":"Point"}`),
		geomRecord(`{"type":"Point","coordinates":[3,4]}`),
	}})

	n := 0
	for rows.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("read %d records before failure, want 1", n)
	}
	err := rows.Err()
	if err == nil {
		t.Fatal("expected fatal error for malformed record")
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Errorf("error %q does not name the failing record", err)
	}
}

func TestTransformRowsContinueOnErrorSkips(t *testing.T) {
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: &countingReprojector{}, ContinueOnError: true}
	rows := tr.Rows(&sliceRows{records: []record.Record{
		geomRecord(`{"type":"Point","coordinates":[1,2]}`),
		geomRecord(`{"type":"Point"}`),
		geomRecord(`{"type":"Point","coordinates":[3,4]}`),
	}})

	got := collect(t, rows)
	if len(got) != 2 {
		t.Errorf("read %d records, want 2 with the malformed one skipped", len(got))
	}
}

func TestTransformRowsCollectionMembersReproject(t *testing.T) {
	rp := &countingReprojector{}
	tr := Transformer{SourceEPSG: 4326, TargetEPSG: 3857, Reprojector: rp}

	rec := geomRecord(`{"type":"GeometryCollection","geometries":[` +
		`{"type":"Point","coordinates":[1,2]},{"type":"LineString","coordinates":[[1,2],[3,4]]}]}`)
	rows := tr.Rows(&sliceRows{records: []record.Record{rec}})

	got := collect(t, rows)
	if len(got) != 1 {
		t.Fatalf("read %d records, want 1", len(got))
	}
	if rp.calls != 2 {
		t.Errorf("reprojector calls = %d, want one per member", rp.calls)
	}
}
