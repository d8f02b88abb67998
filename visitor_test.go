package dsval

import (
	"reflect"
	"testing"
	"time"
)

// rejectVisitor fails every visit; tests embed it and override what they need.
type rejectVisitor struct{}

func (rejectVisitor) VisitNull() error                 { return errorf(DeserializationError, "null") }
func (rejectVisitor) VisitBool(v bool) error           { return errorf(DeserializationError, "bool") }
func (rejectVisitor) VisitInt(v int64) error           { return errorf(DeserializationError, "int") }
func (rejectVisitor) VisitUint(v uint64) error         { return errorf(DeserializationError, "uint") }
func (rejectVisitor) VisitFloat(v float64) error       { return errorf(DeserializationError, "float") }
func (rejectVisitor) VisitString(v string) error       { return errorf(DeserializationError, "string") }
func (rejectVisitor) VisitBytes(v []byte) error        { return errorf(DeserializationError, "bytes") }
func (rejectVisitor) VisitTimestamp(v time.Time) error { return errorf(DeserializationError, "timestamp") }
func (rejectVisitor) VisitGeoPoint(v GeoPoint) error   { return errorf(DeserializationError, "geo point") }
func (rejectVisitor) VisitKey(v *Key) error            { return errorf(DeserializationError, "key") }
func (rejectVisitor) VisitSome(in *Input) error        { return errorf(DeserializationError, "some") }
func (rejectVisitor) VisitSeq(seq SeqAccess) error     { return errorf(DeserializationError, "seq") }
func (rejectVisitor) VisitMap(m MapAccess) error       { return errorf(DeserializationError, "map") }

// sumVisitor adds up integers in arbitrarily nested arrays.
type sumVisitor struct {
	rejectVisitor
	sum   int64
	count int
}

func (vis *sumVisitor) VisitInt(v int64) error {
	vis.sum += v
	return nil
}

func (vis *sumVisitor) VisitSeq(seq SeqAccess) error {
	vis.count += seq.Len()
	for {
		in, ok := seq.Next()
		if !ok {
			return nil
		}
		var err error
		if in.Kind() == ArrayKind {
			err = in.DecodeSeq(vis)
		} else {
			err = in.DecodeInt(64, vis)
		}
		if err != nil {
			return err
		}
	}
}

func TestCustomVisitorSeq(t *testing.T) {
	vis := &sumVisitor{}
	v := Array{IntOf(1), Array{IntOf(2), IntOf(3)}, Array{}}
	if err := NewInput(v).DecodeSeq(vis); err != nil {
		t.Fatalf("** DecodeSeq failed: %v", err)
	}
	eq(t, vis.sum, int64(6))
	eq(t, vis.count, 5)

	err := NewInput(Array{String("x")}).DecodeSeq(&sumVisitor{})
	isErr(t, err, ExpectedType, "integer, got string")
}

// keysVisitor collects property names, requesting only some values.
type keysVisitor struct {
	rejectVisitor
	names  map[string]bool
	values map[string]string
	want   string
}

func (vis *keysVisitor) VisitMap(m MapAccess) error {
	vis.names = make(map[string]bool, m.Len())
	vis.values = make(map[string]string)
	for {
		keyIn, ok := m.NextKey()
		if !ok {
			return nil
		}
		name := string(keyIn.Value().(String))
		vis.names[name] = true
		if name == vis.want {
			s, err := DecodeAs[string](m.NextValue().Value())
			if err != nil {
				return err
			}
			vis.values[name] = s
		}
	}
}

func TestCustomVisitorMap(t *testing.T) {
	e := NewEntity().Set("a", String("A")).Set("b", String("B")).Set("c", String("C"))
	vis := &keysVisitor{want: "b"}
	if err := NewInput(e).DecodeMap(vis); err != nil {
		t.Fatalf("** DecodeMap failed: %v", err)
	}
	deepEqual(t, vis.names, map[string]bool{"a": true, "b": true, "c": true})
	deepEqual(t, vis.values, map[string]string{"b": "B"})
}

type valueFirstVisitor struct {
	rejectVisitor
}

func (valueFirstVisitor) VisitMap(m MapAccess) error {
	m.NextValue()
	return nil
}

type valueTwiceVisitor struct {
	rejectVisitor
}

func (valueTwiceVisitor) VisitMap(m MapAccess) error {
	m.NextKey()
	m.NextValue()
	m.NextValue()
	return nil
}

func TestMapAccessValueBeforeKeyPanics(t *testing.T) {
	e := NewEntity().Set("a", Null{})
	for _, vis := range []Visitor{valueFirstVisitor{}, valueTwiceVisitor{}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("** %T: NextValue without a pending key did not panic", vis)
				}
			}()
			NewInput(e).DecodeMap(vis)
		}()
	}
}

func TestInputOption(t *testing.T) {
	some := &optionVisitor{}
	must(0, NewInput(IntOf(1)).DecodeOption(some))
	eq(t, some.some, true)

	none := &optionVisitor{}
	must(0, NewInput(nil).DecodeOption(none))
	eq(t, none.null, true)
}

type optionVisitor struct {
	rejectVisitor
	some, null bool
}

func (vis *optionVisitor) VisitSome(in *Input) error {
	vis.some = true
	return nil
}

func (vis *optionVisitor) VisitNull() error {
	vis.null = true
	return nil
}

func TestInputTupleAndIgnored(t *testing.T) {
	in := NewInput(Array{IntOf(1)})
	isErr(t, in.DecodeTuple(1, rejectVisitor{}), UnsupportedValueType, "tuple")
	isErr(t, in.DecodeIgnored(rejectVisitor{}), NotYetImplemented, "ignored value")
	isErr(t, in.DecodeVariant(rejectVisitor{}), NotYetImplemented, "interface variant")
}

func TestReflectVisitorIntoInterface(t *testing.T) {
	var u, i any
	ds := &decodeState{maxDepth: DefaultMaxDepth}
	must(0, NewInput(IntOf(200)).DecodeUint(8, &reflectVisitor{ds: ds, rv: reflect.ValueOf(&u).Elem()}))
	eq(t, u, any(uint64(200)))
	must(0, NewInput(IntOf(-3)).DecodeInt(8, &reflectVisitor{ds: ds, rv: reflect.ValueOf(&i).Elem()}))
	eq(t, i, any(int64(-3)))
}
