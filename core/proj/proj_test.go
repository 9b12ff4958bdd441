package proj

import (
	"encoding/json"
	"math"
	"testing"
)

func TestSupports(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		source, target int
		want           bool
	}{
		{EPSGWGS84, EPSGWebMercator, true},
		{EPSGWebMercator, EPSGWGS84, true},
		{EPSGWGS84, EPSGMTMZone10, true},
		{EPSGMTMZone10, EPSGWGS84, true},
		{EPSGWGS84, EPSGWGS84, true},
		{32617, 32617, true},
		{EPSGWGS84, 32617, false},
		{32617, EPSGWGS84, false},
	}

	for _, tt := range tests {
		if got := r.Supports(tt.source, tt.target); got != tt.want {
			t.Errorf("Supports(%d, %d) = %v, want %v", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestRegisterAddsPair(t *testing.T) {
	r := NewRegistry()
	r.Register(EPSGWGS84, 32617, func(x, y float64) (float64, float64) { return x, y })
	if !r.Supports(EPSGWGS84, 32617) {
		t.Error("registered pair not supported")
	}
}

func TestReprojectSameEPSGIsIdentity(t *testing.T) {
	r := NewRegistry()
	coords := []any{json.Number("1"), json.Number("2")}
	got, err := r.Reproject(coords, EPSGWGS84, EPSGWGS84)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	if gotArr, ok := got.([]any); !ok || gotArr[0] != json.Number("1") {
		t.Errorf("Reproject() = %v, want input unchanged", got)
	}
}

func TestReprojectUnknownPairIsError(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Reproject([]any{1.0, 2.0}, EPSGWGS84, 32617); err == nil {
		t.Fatal("expected error for unregistered pair")
	}
}

func TestReprojectWGS84ToWebMercatorRoundTrip(t *testing.T) {
	r := NewRegistry()
	coords := []any{json.Number("-79.3832"), json.Number("43.6532")}

	mercator, err := r.Reproject(coords, EPSGWGS84, EPSGWebMercator)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	pair := mercator.([]any)
	x := pair[0].(float64)
	y := pair[1].(float64)
	if math.Abs(x) < 1e6 || math.Abs(y) < 1e6 {
		t.Errorf("mercator coordinates look unprojected: %v %v", x, y)
	}

	back, err := r.Reproject(mercator, EPSGWebMercator, EPSGWGS84)
	if err != nil {
		t.Fatalf("Reproject() back error = %v", err)
	}
	backPair := back.([]any)
	if math.Abs(backPair[0].(float64)-(-79.3832)) > 1e-6 {
		t.Errorf("round trip x = %v, want -79.3832", backPair[0])
	}
	if math.Abs(backPair[1].(float64)-43.6532) > 1e-6 {
		t.Errorf("round trip y = %v, want 43.6532", backPair[1])
	}
}

func TestReprojectWGS84ToMTMZone10RoundTrip(t *testing.T) {
	r := NewRegistry()
	coords := []any{json.Number("-79.3832"), json.Number("43.6532")}

	mtm, err := r.Reproject(coords, EPSGWGS84, EPSGMTMZone10)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	pair := mtm.([]any)
	x := pair[0].(float64)
	y := pair[1].(float64)
	// downtown Toronto sits just east of the zone's central meridian
	if x < 300000 || x > 330000 {
		t.Errorf("easting = %v, want near the 304800 false easting", x)
	}
	if y < 4.8e6 || y > 4.87e6 {
		t.Errorf("northing = %v, want mid-latitude metres", y)
	}

	back, err := r.Reproject(mtm, EPSGMTMZone10, EPSGWGS84)
	if err != nil {
		t.Fatalf("Reproject() back error = %v", err)
	}
	backPair := back.([]any)
	if math.Abs(backPair[0].(float64)-(-79.3832)) > 1e-6 {
		t.Errorf("round trip x = %v, want -79.3832", backPair[0])
	}
	if math.Abs(backPair[1].(float64)-43.6532) > 1e-6 {
		t.Errorf("round trip y = %v, want 43.6532", backPair[1])
	}
}

func TestTransverseMercatorCentralMeridianMapsToFalseEasting(t *testing.T) {
	mtm := newTransverseMercator(-79.5, 0.9999, 304800, 0)
	x, y := mtm.Forward(-79.5, 43.65)
	if math.Abs(x-304800) > 1e-6 {
		t.Errorf("easting on central meridian = %v, want 304800", x)
	}
	if y <= 0 {
		t.Errorf("northing = %v, want positive", y)
	}
}

func TestReprojectWalksNesting(t *testing.T) {
	r := NewRegistry()
	coords := []any{
		[]any{[]any{json.Number("-79.38"), json.Number("43.65")}, []any{json.Number("-79.40"), json.Number("43.66")}},
	}

	got, err := r.Reproject(coords, EPSGWGS84, EPSGWebMercator)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	outer := got.([]any)
	line := outer[0].([]any)
	if len(line) != 2 {
		t.Fatalf("line length = %d, want 2", len(line))
	}
	first := line[0].([]any)
	if _, ok := first[0].(float64); !ok {
		t.Errorf("leaf not transformed: %v", first)
	}
}

func TestReprojectPreservesExtraDimensions(t *testing.T) {
	r := NewRegistry()
	coords := []any{json.Number("-79.38"), json.Number("43.65"), json.Number("120.5")}

	got, err := r.Reproject(coords, EPSGWGS84, EPSGWebMercator)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	pair := got.([]any)
	if len(pair) != 3 {
		t.Fatalf("position length = %d, want 3", len(pair))
	}
	if pair[2] != json.Number("120.5") {
		t.Errorf("z = %v, want untouched 120.5", pair[2])
	}
}

func TestReprojectEmptyCoordinates(t *testing.T) {
	r := NewRegistry()
	got, err := r.Reproject([]any{}, EPSGWGS84, EPSGWebMercator)
	if err != nil {
		t.Fatalf("Reproject() error = %v", err)
	}
	if arr, ok := got.([]any); !ok || len(arr) != 0 {
		t.Errorf("Reproject([]) = %v, want []", got)
	}
}
