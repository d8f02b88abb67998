package dsval

import (
	"math"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	eq(t, GeoPointKind.String(), "geo point")
	eq(t, TimestampKind.String(), "timestamp")
	eq(t, Kind(42).String(), "Kind(42)")
	eq(t, KindOf(nil), NullKind)
	eq(t, KindOf(IntOf(1)), IntegerKind)
	eq(t, KindOf(NewEntity()), EntityKind)
}

func TestEntityOrderIndependence(t *testing.T) {
	a := NewEntity().Set("name", String("Rust")).Set("strongly_typed", Boolean(true)).Set("year", IntOf(2015))
	b := NewEntity().Set("year", IntOf(2015)).Set("strongly_typed", Boolean(true)).Set("name", String("Rust"))
	if !Equal(a, b) {
		t.Errorf("** entities with the same properties in different insertion order are not equal")
	}
	b.Set("year", IntOf(2016))
	if Equal(a, b) {
		t.Errorf("** entities with different property values are equal")
	}
	c := NewEntity().Set("name", String("Rust")).Set("strongly_typed", Boolean(true))
	if Equal(a, c) {
		t.Errorf("** entities with different property sets are equal")
	}
}

func TestEqual(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	berlin := time.FixedZone("CEST", 2*3600)
	tests := []struct {
		a, b  Value
		equal bool
	}{
		{nil, Null{}, true},
		{(*Entity)(nil), Null{}, true},
		{String("a"), String("a"), true},
		{String("a"), String("b"), false},
		{String("1"), IntOf(1), false},
		{IntOf(7), Int("7"), true},
		{Double(math.NaN()), Double(math.NaN()), true},
		{Double(0.5), Double(0.25), false},
		{Array{IntOf(1), Null{}}, Array{IntOf(1), nil}, true},
		{Array{IntOf(1)}, Array{IntOf(1), IntOf(2)}, false},
		{GeoPoint{1, 2}, GeoPoint{1, 2}, true},
		{Blob("x"), Blob("x"), true},
		{Blob("x"), Blob(nil), false},
		{TimestampOf(ts), Timestamp{ts.In(berlin)}, true},
		{NewKey("p", "", IDElement("K", 1)), NewKey("p", "", IDElement("K", 1)), true},
		{NewKey("p", "", IDElement("K", 1)), NewKey("p", "ns", IDElement("K", 1)), false},
	}
	for _, tt := range tests {
		if actual := Equal(tt.a, tt.b); actual != tt.equal {
			t.Errorf("** Equal(%#v, %#v) = %v, wanted %v", tt.a, tt.b, actual, tt.equal)
		}
	}
}

func TestTimestampOf(t *testing.T) {
	local := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	ts := TimestampOf(local)
	eq(t, ts.Location(), time.UTC)
	eq(t, ts.Hour(), 12)
}

func TestEntityAccessors(t *testing.T) {
	var e Entity
	e.Set("a", IntOf(1))
	eq(t, e.Len(), 1)
	v, ok := e.Get("a")
	eq(t, ok, true)
	eq(t, Equal(v, IntOf(1)), true)
	_, ok = e.Get("b")
	eq(t, ok, false)
}
