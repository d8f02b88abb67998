package dsval

import (
	"iter"
	"maps"
	"math"
	"reflect"
)

// Deserializer converts value trees into Go values. The zero Deserializer
// is ready to use.
type Deserializer struct {
	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int

	// IgnoreUnknownProperties skips entity properties that match no struct
	// field. By default they fail with NotYetImplemented("ignored value").
	IgnoreUnknownProperties bool
}

var defaultDeserializer Deserializer

// Decode stores v into the value ptr points to, using the default Deserializer.
func Decode(v Value, ptr any) error {
	return defaultDeserializer.Decode(v, ptr)
}

// DecodeAs decodes v into a new T.
func DecodeAs[T any](v Value) (T, error) {
	var result T
	err := defaultDeserializer.Decode(v, &result)
	return result, err
}

// Decode stores v into the value ptr points to. ptr must be a non-nil pointer.
func (d *Deserializer) Decode(v Value, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errorf(DeserializationError, "decode target must be a non-nil pointer, got %T", ptr)
	}
	ds := &decodeState{
		maxDepth:      d.MaxDepth,
		ignoreUnknown: d.IgnoreUnknownProperties,
	}
	if ds.maxDepth <= 0 {
		ds.maxDepth = DefaultMaxDepth
	}
	return ds.decodeInto(ds.input(v), rv.Elem())
}

// decodeState is shared by all inputs of one Decode call.
type decodeState struct {
	maxDepth      int
	depth         int
	ignoreUnknown bool
}

// NewInput wraps v for decoding through a custom Visitor, with the
// default depth limit.
func NewInput(v Value) *Input {
	ds := &decodeState{maxDepth: DefaultMaxDepth}
	return ds.input(v)
}

func (ds *decodeState) input(v Value) *Input {
	return &Input{value: normalize(v), ds: ds}
}

func (ds *decodeState) enter() error {
	ds.depth++
	if ds.depth > ds.maxDepth {
		return errorf(DepthLimitExceeded, "%d", ds.maxDepth)
	}
	return nil
}

func (ds *decodeState) leave() {
	ds.depth--
}

// Input is a single value being decoded. Its Decode methods check that the
// value has the requested shape and replay it into a Visitor.
type Input struct {
	value Value
	ds    *decodeState
}

func (in *Input) Kind() Kind {
	return in.value.Kind()
}

// Value returns the underlying value tree, for targets that take it whole.
func (in *Input) Value() Value {
	return in.value
}

// DecodeAny dispatches on the value's own kind. Entities, keys, geo points
// and timestamps have no canonical Go shape and fail with NonSelfDescribingType.
func (in *Input) DecodeAny(vis Visitor) error {
	switch in.value.(type) {
	case Null:
		return in.DecodeUnit(vis)
	case String:
		return in.DecodeString(vis)
	case Int:
		return in.DecodeInt(64, vis)
	case Double:
		return in.DecodeFloat(64, vis)
	case Boolean:
		return in.DecodeBool(vis)
	case Blob:
		return in.DecodeBytes(vis)
	case Array:
		return in.DecodeSeq(vis)
	default:
		return errorf(NonSelfDescribingType, "%v", in.Kind())
	}
}

func (in *Input) DecodeBool(vis Visitor) error {
	v, ok := in.value.(Boolean)
	if !ok {
		return in.expected(BooleanKind)
	}
	return vis.VisitBool(bool(v))
}

// DecodeInt decodes an integer that must fit in a signed type of the given width.
func (in *Input) DecodeInt(bits int, vis Visitor) error {
	i, ok := in.value.(Int)
	if !ok {
		return in.expected(IntegerKind)
	}
	v, err := i.Int64()
	if err != nil {
		return err
	}
	if !fitsSigned(v, bits) {
		return errorf(IntegerSizeMismatch, "int%d", bits)
	}
	return vis.VisitInt(v)
}

// DecodeUint decodes an integer that must fit in an unsigned type of the given width.
func (in *Input) DecodeUint(bits int, vis Visitor) error {
	i, ok := in.value.(Int)
	if !ok {
		return in.expected(IntegerKind)
	}
	v, err := i.Int64()
	if err != nil {
		return err
	}
	if !fitsUnsigned(v, bits) {
		return errorf(IntegerSizeMismatch, "uint%d", bits)
	}
	return vis.VisitUint(uint64(v))
}

// DecodeFloat decodes a double; for bits == 32, finite magnitudes beyond
// math.MaxFloat32 fail with DoubleSizeMismatch.
func (in *Input) DecodeFloat(bits int, vis Visitor) error {
	d, ok := in.value.(Double)
	if !ok {
		return in.expected(DoubleKind)
	}
	f := float64(d)
	if bits == 32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return errorf(DoubleSizeMismatch, "float32")
	}
	return vis.VisitFloat(f)
}

func (in *Input) DecodeString(vis Visitor) error {
	s, ok := in.value.(String)
	if !ok {
		return in.expected(StringKind)
	}
	return vis.VisitString(string(s))
}

func (in *Input) DecodeBytes(vis Visitor) error {
	b, ok := in.value.(Blob)
	if !ok {
		return in.expected(BlobKind)
	}
	return vis.VisitBytes(b)
}

func (in *Input) DecodeTimestamp(vis Visitor) error {
	ts, ok := in.value.(Timestamp)
	if !ok {
		return in.expected(TimestampKind)
	}
	return vis.VisitTimestamp(ts.Time)
}

func (in *Input) DecodeGeoPoint(vis Visitor) error {
	gp, ok := in.value.(GeoPoint)
	if !ok {
		return in.expected(GeoPointKind)
	}
	return vis.VisitGeoPoint(gp)
}

func (in *Input) DecodeKey(vis Visitor) error {
	k, ok := in.value.(*Key)
	if !ok {
		return in.expected(KeyKind)
	}
	return vis.VisitKey(k)
}

// DecodeOption calls VisitNull for Null and VisitSome for anything else.
func (in *Input) DecodeOption(vis Visitor) error {
	if _, ok := in.value.(Null); ok {
		return vis.VisitNull()
	}
	return vis.VisitSome(in)
}

func (in *Input) DecodeUnit(vis Visitor) error {
	if _, ok := in.value.(Null); !ok {
		return in.expected(NullKind)
	}
	return vis.VisitNull()
}

func (in *Input) DecodeSeq(vis Visitor) error {
	arr, ok := in.value.(Array)
	if !ok {
		return in.expected(ArrayKind)
	}
	if err := in.ds.enter(); err != nil {
		return err
	}
	defer in.ds.leave()
	return vis.VisitSeq(&seqAccess{ds: in.ds, values: arr})
}

func (in *Input) DecodeMap(vis Visitor) error {
	e, ok := in.value.(*Entity)
	if !ok {
		return in.expected(EntityKind)
	}
	if err := in.ds.enter(); err != nil {
		return err
	}
	defer in.ds.leave()
	next, stop := iter.Pull2(maps.All(e.Properties))
	defer stop()
	return vis.VisitMap(&mapAccess{ds: in.ds, n: len(e.Properties), next: next})
}

// DecodeTuple always fails: fixed-size sequences have no wire shape.
func (in *Input) DecodeTuple(n int, vis Visitor) error {
	return errorf(UnsupportedValueType, "tuple")
}

// DecodeVariant always fails: values that carry a variant tag plus data
// have no agreed wire shape yet.
func (in *Input) DecodeVariant(vis Visitor) error {
	return errorf(NotYetImplemented, "interface variant")
}

// DecodeIgnored is requested for values the target has no place for.
func (in *Input) DecodeIgnored(vis Visitor) error {
	return errorf(NotYetImplemented, "ignored value")
}

func (in *Input) expected(k Kind) error {
	return errorf(ExpectedType, "%v, got %v", k, in.Kind())
}

type seqAccess struct {
	ds     *decodeState
	values Array
	pos    int
}

func (sa *seqAccess) Len() int {
	return len(sa.values)
}

func (sa *seqAccess) Next() (*Input, bool) {
	if sa.pos >= len(sa.values) {
		return nil, false
	}
	v := sa.values[sa.pos]
	sa.pos++
	return sa.ds.input(v), true
}

type mapAccess struct {
	ds      *decodeState
	n       int
	next    func() (string, Value, bool)
	pending Value
	hasKey  bool
}

func (ma *mapAccess) Len() int {
	return ma.n
}

func (ma *mapAccess) NextKey() (*Input, bool) {
	name, v, ok := ma.next()
	if !ok {
		ma.pending, ma.hasKey = nil, false
		return nil, false
	}
	ma.pending, ma.hasKey = v, true
	return ma.ds.input(String(name)), true
}

func (ma *mapAccess) NextValue() *Input {
	if !ma.hasKey {
		panic("dsval: MapAccess.NextValue called before NextKey")
	}
	v := ma.pending
	ma.pending, ma.hasKey = nil, false
	return ma.ds.input(v)
}
