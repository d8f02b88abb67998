package dsval

import (
	"math"
	"reflect"
)

// DefaultMaxDepth bounds the nesting of arrays and entities when encoding,
// decoding and parsing, so hostile input cannot exhaust the stack.
const DefaultMaxDepth = 64

// Serializer converts Go values into value trees. The zero Serializer is
// ready to use.
type Serializer struct {
	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

var defaultSerializer Serializer

// Encode converts v into a value tree using the default Serializer.
func Encode(v any) (Value, error) {
	return defaultSerializer.Encode(v)
}

// Encode converts v into a value tree. See the package documentation for
// the mapping of Go types.
func (s *Serializer) Encode(v any) (Value, error) {
	es := encodeState{maxDepth: s.MaxDepth}
	if es.maxDepth <= 0 {
		es.maxDepth = DefaultMaxDepth
	}
	return es.encode(reflect.ValueOf(v))
}

// EncodeEntity is like Encode, but requires v to encode to an entity.
func (s *Serializer) EncodeEntity(v any) (*Entity, error) {
	val, err := s.Encode(v)
	if err != nil {
		return nil, err
	}
	e, ok := val.(*Entity)
	if !ok {
		return nil, errorf(SerializationError, "%T encodes to %v, not an entity", v, val.Kind())
	}
	return e, nil
}

// EncodeEntity converts v, which must be a struct or a map, into an entity.
func EncodeEntity(v any) (*Entity, error) {
	return defaultSerializer.EncodeEntity(v)
}

// The methods below are the primitive encode events emitted by the walk in
// encode.go; each produces one node.

func (es *encodeState) boolValue(v bool) Value {
	return Boolean(v)
}

func (es *encodeState) intValue(v int64) Value {
	return IntOf(v)
}

func (es *encodeState) uintValue(v uint64, typ reflect.Type) (Value, error) {
	if v > math.MaxInt64 {
		return nil, errorf(IntegerSizeMismatch, "%v", typ)
	}
	return IntOf(int64(v)), nil
}

func (es *encodeState) floatValue(v float64) Value {
	return Double(v)
}

func (es *encodeState) stringValue(v string) Value {
	return String(v)
}

func (es *encodeState) bytesValue(v []byte) Value {
	b := make(Blob, len(v))
	copy(b, v)
	return b
}

func (es *encodeState) nullValue() Value {
	return Null{}
}

// unitVariant encodes a payload-free enum-like value by its name.
func (es *encodeState) unitVariant(name string) Value {
	return String(name)
}

func (es *encodeState) unsupported(kind string) error {
	return errorf(UnsupportedValueType, "%s", kind)
}

type arrayBuilder struct {
	values Array
}

func (es *encodeState) beginArray(n int) *arrayBuilder {
	return &arrayBuilder{values: make(Array, 0, n)}
}

func (ab *arrayBuilder) element(v Value) {
	ab.values = append(ab.values, v)
}

func (ab *arrayBuilder) end() Value {
	return ab.values
}

// entityBuilder accumulates properties of a map or struct. Map keys go
// through key/value; struct fields are already names and use field.
type entityBuilder struct {
	props   map[string]Value
	key     string
	haveKey bool
}

func (es *encodeState) beginEntity(n int) *entityBuilder {
	return &entityBuilder{props: make(map[string]Value, n)}
}

func (eb *entityBuilder) setKey(k Value) error {
	s, ok := k.(String)
	if !ok {
		return errorf(UnsupportedKeyType, "%v", KindOf(k))
	}
	eb.key, eb.haveKey = string(s), true
	return nil
}

func (eb *entityBuilder) setValue(v Value) error {
	if !eb.haveKey {
		return errorf(SerializationError, "map key is missing")
	}
	eb.props[eb.key] = v
	eb.key, eb.haveKey = "", false
	return nil
}

func (eb *entityBuilder) field(name string, v Value) {
	eb.props[name] = v
}

func (eb *entityBuilder) end() Value {
	return &Entity{Properties: eb.props}
}
