package dsval

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

type Kind int

const (
	NullKind Kind = iota
	StringKind
	BooleanKind
	IntegerKind
	DoubleKind
	ArrayKind
	GeoPointKind
	EntityKind
	KeyKind
	BlobKind
	TimestampKind
)

var kindNames = [...]string{
	NullKind:      "null",
	StringKind:    "string",
	BooleanKind:   "boolean",
	IntegerKind:   "integer",
	DoubleKind:    "double",
	ArrayKind:     "array",
	GeoPointKind:  "geo point",
	EntityKind:    "entity",
	KeyKind:       "key",
	BlobKind:      "blob",
	TimestampKind: "timestamp",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one node of a value tree. The implementations are Null, String,
// Boolean, Int, Double, Array, GeoPoint, *Entity, *Key, Blob and Timestamp;
// no other type can implement it. A nil Value means Null.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Null    struct{}
	String  string
	Boolean bool
	Double  float64
	Array   []Value

	GeoPoint struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	// Timestamp is a UTC instant; see TimestampOf.
	Timestamp struct {
		time.Time
	}
)

// Entity is a set of uniquely named properties. Property order carries no
// meaning and is not preserved.
type Entity struct {
	Properties map[string]Value
}

func NewEntity() *Entity {
	return &Entity{Properties: make(map[string]Value)}
}

// Set adds or replaces a property and returns e for chaining.
func (e *Entity) Set(name string, v Value) *Entity {
	if e.Properties == nil {
		e.Properties = make(map[string]Value)
	}
	e.Properties[name] = v
	return e
}

func (e *Entity) Get(name string) (Value, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

func (e *Entity) Len() int {
	return len(e.Properties)
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

func (Null) Kind() Kind      { return NullKind }
func (String) Kind() Kind    { return StringKind }
func (Boolean) Kind() Kind   { return BooleanKind }
func (Int) Kind() Kind       { return IntegerKind }
func (Double) Kind() Kind    { return DoubleKind }
func (Array) Kind() Kind     { return ArrayKind }
func (GeoPoint) Kind() Kind  { return GeoPointKind }
func (*Entity) Kind() Kind   { return EntityKind }
func (*Key) Kind() Kind      { return KeyKind }
func (Blob) Kind() Kind      { return BlobKind }
func (Timestamp) Kind() Kind { return TimestampKind }

func (Null) isValue()      {}
func (String) isValue()    {}
func (Boolean) isValue()   {}
func (Int) isValue()       {}
func (Double) isValue()    {}
func (Array) isValue()     {}
func (GeoPoint) isValue()  {}
func (*Entity) isValue()   {}
func (*Key) isValue()      {}
func (Blob) isValue()      {}
func (Timestamp) isValue() {}

// KindOf returns v's kind, treating nil as Null.
func KindOf(v Value) Kind {
	if v == nil {
		return NullKind
	}
	return v.Kind()
}

func normalize(v Value) Value {
	switch v := v.(type) {
	case nil:
		return Null{}
	case *Entity:
		if v == nil {
			return Null{}
		}
	case *Key:
		if v == nil {
			return Null{}
		}
	}
	return v
}

// Equal reports whether two value trees hold the same data. Entities are
// compared as maps, timestamps as instants, and NaN doubles equal each other.
func Equal(a, b Value) bool {
	a, b = normalize(a), normalize(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case Null:
		return true
	case String:
		return a == b.(String)
	case Boolean:
		return a == b.(Boolean)
	case Int:
		x, errx := a.Int64()
		y, erry := b.(Int).Int64()
		if errx != nil || erry != nil {
			return a == b.(Int)
		}
		return x == y
	case Double:
		y := b.(Double)
		if math.IsNaN(float64(a)) && math.IsNaN(float64(y)) {
			return true
		}
		return a == y
	case Array:
		y := b.(Array)
		if len(a) != len(y) {
			return false
		}
		for i := range a {
			if !Equal(a[i], y[i]) {
				return false
			}
		}
		return true
	case GeoPoint:
		return a == b.(GeoPoint)
	case *Entity:
		y := b.(*Entity)
		if len(a.Properties) != len(y.Properties) {
			return false
		}
		for name, av := range a.Properties {
			bv, ok := y.Properties[name]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case *Key:
		return a.Equal(b.(*Key))
	case Blob:
		return bytes.Equal(a, b.(Blob))
	case Timestamp:
		return a.Time.Equal(b.(Timestamp).Time)
	default:
		panic(fmt.Errorf("unknown value type %T", a))
	}
}

func (v Null) String() string { return "null" }

func (a Array) Len() int { return len(a) }
