package dsval

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

type color int

const (
	red color = iota
	green
)

func (c color) MarshalText() ([]byte, error) {
	switch c {
	case red:
		return []byte("Red"), nil
	case green:
		return []byte("Green"), nil
	default:
		return nil, errors.New("unknown color")
	}
}

func (c *color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Red":
		*c = red
	case "Green":
		*c = green
	default:
		return errors.New("unknown color " + string(text))
	}
	return nil
}

// celsius stores itself as a double in tenths of a degree.
type celsius float64

func (c celsius) MarshalValue() (Value, error) {
	if math.IsNaN(float64(c)) {
		return nil, errors.New("not a temperature")
	}
	return IntOf(int64(math.Round(float64(c) * 10))), nil
}

func (c *celsius) UnmarshalValue(v Value) error {
	i, ok := v.(Int)
	if !ok {
		return errors.New("wanted an integer")
	}
	n, err := i.Int64()
	if err != nil {
		return err
	}
	*c = celsius(float64(n) / 10)
	return nil
}

type language struct {
	Name          string `datastore:"name"`
	StronglyTyped bool   `datastore:"strongly_typed"`
}

type withOptions struct {
	Title    string `datastore:"title"`
	Note     string `datastore:"note,omitempty"`
	Skipped  string `datastore:"-"`
	Indexed  int    `datastore:",noindex"`
	internal int
}

type unit struct{}

func TestEncodeScalars(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 5
	tests := []struct {
		input    any
		expected string
	}{
		{nil, `{"nullValue":null}`},
		{true, `{"booleanValue":true}`},
		{uint8(14), `{"integerValue":"14"}`},
		{int8(-128), `{"integerValue":"-128"}`},
		{int64(math.MinInt64), `{"integerValue":"-9223372036854775808"}`},
		{uint64(math.MaxInt64), `{"integerValue":"9223372036854775807"}`},
		{'A', `{"integerValue":"65"}`},
		{float32(0.5), `{"doubleValue":0.5}`},
		{1.25, `{"doubleValue":1.25}`},
		{"Rust", `{"stringValue":"Rust"}`},
		{[]byte("Rust!"), `{"blobValue":"UnVzdCE="}`},
		{Blob("Rust!"), `{"blobValue":"UnVzdCE="}`},
		{&n, `{"integerValue":"5"}`},
		{(*int)(nil), `{"nullValue":null}`},
		{[]int(nil), `{"nullValue":null}`},
		{[]int{}, `{"arrayValue":{"values":[]}}`},
		{[]any{1, "a", nil}, `{"arrayValue":{"values":[{"integerValue":"1"},{"stringValue":"a"},{"nullValue":null}]}}`},
		{map[string]int(nil), `{"nullValue":null}`},
		{map[string]int{"b": 2, "a": 1}, `{"entityValue":{"properties":{"a":{"integerValue":"1"},"b":{"integerValue":"2"}}}}`},
		{unit{}, `{"nullValue":null}`},
		{ts, `{"timestampValue":"2024-05-01T12:00:00Z"}`},
		{&ts, `{"timestampValue":"2024-05-01T12:00:00Z"}`},
		{green, `{"stringValue":"Green"}`},
		{celsius(21.5), `{"integerValue":"215"}`},
		{GeoPoint{1, 2}, `{"geoPointValue":{"latitude":1,"longitude":2}}`},
		{&GeoPoint{1, 2}, `{"geoPointValue":{"latitude":1,"longitude":2}}`},
		{IntOf(3), `{"integerValue":"3"}`},
		{Key{PartitionID: PartitionID{ProjectID: "p"}, Path: []PathElement{NameElement("K", "a")}}, `{"keyValue":{"partitionId":{"projectId":"p"},"path":[{"kind":"K","name":"a"}]}}`},
		{Entity{Properties: map[string]Value{"x": Null{}}}, `{"entityValue":{"properties":{"x":{"nullValue":null}}}}`},
	}
	for _, tt := range tests {
		v, err := Encode(tt.input)
		if err != nil {
			t.Errorf("** Encode(%#v) failed: %v", tt.input, err)
			continue
		}
		if actual := wireJSON(t, v); actual != tt.expected {
			t.Errorf("** Encode(%#v) = %s, wanted %s", tt.input, actual, tt.expected)
		}
	}
}

func TestEncodeBytesAreCopied(t *testing.T) {
	b := []byte("abc")
	v := must(Encode(b))
	b[0] = 'x'
	eq(t, string(v.(Blob)), "abc")
}

func TestEncodeCopiesValueTrees(t *testing.T) {
	src := NewEntity().
		Set("a", String("x")).
		Set("tags", Array{Blob("raw"), NewEntity().Set("n", IntOf(1))}).
		Set("ref", NewKey("p", "", NameElement("K", "k")))
	before := wireJSON(t, src)

	v := must(Encode(src))
	e := v.(*Entity)
	e.Properties["a"] = String("changed")
	tags := e.Properties["tags"].(Array)
	tags[0].(Blob)[0] = 'R'
	tags[1].(*Entity).Properties["n"] = Null{}
	e.Properties["ref"].(*Key).Path[0].Name = "other"
	eq(t, wireJSON(t, src), before)

	byValue := must(Encode(*src))
	byValue.(*Entity).Properties["a"] = Null{}
	eq(t, wireJSON(t, src), before)

	arr := Array{Blob("b")}
	must(Encode(arr)).(Array)[0] = Null{}
	eq(t, arr[0].Kind(), BlobKind)
}

func TestEncodeCyclicEntity(t *testing.T) {
	e := NewEntity()
	e.Set("self", e)
	_, err := Encode(e)
	isErr(t, err, DepthLimitExceeded, "")
}

func TestEncodeStruct(t *testing.T) {
	e := must(EncodeEntity(language{Name: "Rust", StronglyTyped: true}))
	wanted := NewEntity().Set("strongly_typed", Boolean(true)).Set("name", String("Rust"))
	if !Equal(e, wanted) {
		t.Errorf("** EncodeEntity = %s, wanted %s", wireJSON(t, e), wireJSON(t, wanted))
	}

	e = must(EncodeEntity(&withOptions{Title: "t", Skipped: "s", Indexed: 3, internal: 4}))
	eq(t, wireJSON(t, e), `{"entityValue":{"properties":{"Indexed":{"integerValue":"3"},"title":{"stringValue":"t"}}}}`)

	e = must(EncodeEntity(withOptions{Note: "n"}))
	eq(t, e.Len(), 3)
}

func TestEncodeErrors(t *testing.T) {
	ch := make(chan int)
	tests := []struct {
		input  any
		kind   ErrorKind
		detail string
		path   string
	}{
		{[2]int{1, 2}, UnsupportedValueType, "tuple", ""},
		{complex(1, 2), UnsupportedValueType, "complex128", ""},
		{ch, UnsupportedValueType, "chan", ""},
		{func() {}, UnsupportedValueType, "func", ""},
		{uint64(math.MaxUint64), IntegerSizeMismatch, "uint64", ""},
		{map[int]string{1: "a"}, UnsupportedKeyType, "integer", ""},
		{map[bool]string{true: "a"}, UnsupportedKeyType, "boolean", ""},
		{struct{ Tags []any }{[]any{1, ch}}, UnsupportedValueType, "chan", ".Tags[1]"},
		{map[string]any{"c": color(7)}, SerializationError, "", ".c"},
		{celsius(math.NaN()), SerializationError, "dsval.celsius.MarshalValue: not a temperature", ""},
		{struct {
			A int `datastore:"x"`
			B int `datastore:"x"`
		}{}, SerializationError, "", ""},
		{struct {
			A int `datastore:"a,sparkly"`
		}{}, SerializationError, "", ""},
	}
	for _, tt := range tests {
		_, err := Encode(tt.input)
		isErr(t, err, tt.kind, tt.detail)
		var e *Error
		if errors.As(err, &e) && e.Path != tt.path {
			t.Errorf("** Encode(%T) error path = %q, wanted %q", tt.input, e.Path, tt.path)
		}
	}
}

func TestEncodeEntityRejectsScalars(t *testing.T) {
	_, err := EncodeEntity(42)
	isErr(t, err, SerializationError, "")
}

func TestEncodeDepthLimit(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < DefaultMaxDepth+1; i++ {
		v = []any{v}
	}
	_, err := Encode(v)
	isErr(t, err, DepthLimitExceeded, "")

	s := Serializer{MaxDepth: 3}
	_, err = s.Encode([]any{[]any{[]any{[]any{1}}}})
	isErr(t, err, DepthLimitExceeded, "3")
	_, err = s.Encode([]any{[]any{[]any{1}}})
	if err != nil {
		t.Errorf("** Encode within the depth limit failed: %v", err)
	}
}

func TestEncodeCyclicPointer(t *testing.T) {
	type node struct {
		Next *node
	}
	n := &node{}
	n.Next = n
	_, err := Encode(n)
	isErr(t, err, DepthLimitExceeded, "")
	if err != nil && !strings.Contains(err.Error(), ".Next.Next") {
		t.Errorf("** cyclic encode error lacks a path: %v", err)
	}
}
