package dsval

import (
	"math"
	"testing"
)

func TestIntValid(t *testing.T) {
	tests := []struct {
		input Int
		valid bool
	}{
		{"0", true},
		{"14", true},
		{"-14", true},
		{"9223372036854775807", true},
		{"-9223372036854775808", true},
		{"", false},
		{"-", false},
		{"-0", false},
		{"007", false},
		{"+1", false},
		{"1.5", false},
		{" 1", false},
		{"9223372036854775808", false},
	}
	for _, tt := range tests {
		if actual := tt.input.Valid(); actual != tt.valid {
			t.Errorf("** Int(%q).Valid() = %v, wanted %v", tt.input, actual, tt.valid)
		}
	}
}

func TestIntInt64(t *testing.T) {
	eq(t, must(Int("-42").Int64()), int64(-42))

	_, err := Int("12x").Int64()
	isErr(t, err, ParseIntError, `"12x"`)

	_, err = Int("9223372036854775808").Int64()
	isErr(t, err, IntegerSizeMismatch, "int64")
}

func TestEncodeInt(t *testing.T) {
	eq(t, must(EncodeInt(uint8(14))), Int("14"))
	eq(t, must(EncodeInt(int8(-128))), Int("-128"))
	eq(t, must(EncodeInt(int64(math.MinInt64))), Int("-9223372036854775808"))
	eq(t, must(EncodeInt(uint64(math.MaxInt64))), Int("9223372036854775807"))

	_, err := EncodeInt(uint64(math.MaxUint64))
	isErr(t, err, IntegerSizeMismatch, "uint64")
}

func TestDecodeIntOverflow(t *testing.T) {
	const maxText = Int("9223372036854775807")

	_, err := DecodeInt[int8](maxText)
	isErr(t, err, IntegerSizeMismatch, "int8")
	_, err = DecodeInt[int16](maxText)
	isErr(t, err, IntegerSizeMismatch, "int16")
	_, err = DecodeInt[int32](maxText)
	isErr(t, err, IntegerSizeMismatch, "int32")
	_, err = DecodeInt[uint8](maxText)
	isErr(t, err, IntegerSizeMismatch, "uint8")
	_, err = DecodeInt[uint16](maxText)
	isErr(t, err, IntegerSizeMismatch, "uint16")
	_, err = DecodeInt[uint32](maxText)
	isErr(t, err, IntegerSizeMismatch, "uint32")

	eq(t, must(DecodeInt[int64](maxText)), int64(math.MaxInt64))
	eq(t, must(DecodeInt[uint64](maxText)), uint64(math.MaxInt64))
}

func TestDecodeIntBoundaries(t *testing.T) {
	eq(t, must(DecodeInt[int8]("-128")), int8(-128))
	eq(t, must(DecodeInt[int8]("127")), int8(127))
	eq(t, must(DecodeInt[uint8]("255")), uint8(255))
	eq(t, must(DecodeInt[uint32]("4294967295")), uint32(math.MaxUint32))

	_, err := DecodeInt[int8]("-129")
	isErr(t, err, IntegerSizeMismatch, "int8")
	_, err = DecodeInt[uint8]("256")
	isErr(t, err, IntegerSizeMismatch, "uint8")
	_, err = DecodeInt[uint64]("-1")
	isErr(t, err, IntegerSizeMismatch, "uint64")
	_, err = DecodeInt[int]("x")
	isErr(t, err, ParseIntError, "")
}

type level uint8

func TestDecodeIntNamedType(t *testing.T) {
	eq(t, must(DecodeInt[level]("3")), level(3))
	_, err := DecodeInt[level]("300")
	isErr(t, err, IntegerSizeMismatch, "dsval.level")
}

func TestIntJSON(t *testing.T) {
	eq(t, string(must(Int("14").MarshalJSON())), `"14"`)

	var i Int
	if err := i.UnmarshalJSON([]byte(`"-0012"`)); err != nil {
		t.Errorf("** UnmarshalJSON(-0012) failed: %v", err)
	}
	eq(t, i, Int("-12"))
	if err := i.UnmarshalJSON([]byte(`14`)); err == nil {
		t.Errorf("** UnmarshalJSON accepted an unquoted number")
	}
	if err := i.UnmarshalJSON([]byte(`"77"`)); err != nil {
		t.Errorf("** UnmarshalJSON(77) failed: %v", err)
	}
	eq(t, i, Int("77"))
}

func TestBlobJSON(t *testing.T) {
	b := Blob("Rust!")
	eq(t, string(must(b.MarshalJSON())), `"UnVzdCE="`)
	eq(t, b.String(), "UnVzdCE=")

	var out Blob
	if err := out.UnmarshalJSON([]byte(`"UnVzdCE="`)); err != nil {
		t.Fatalf("** UnmarshalJSON failed: %v", err)
	}
	eq(t, string(out), "Rust!")
	if err := out.UnmarshalJSON([]byte(`"***"`)); err == nil {
		t.Errorf("** UnmarshalJSON accepted invalid base64")
	}
}
