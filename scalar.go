package dsval

import (
	"encoding/base64"
	"math"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/goccy/go-json"
)

type (
	Signed interface {
		~int | ~int8 | ~int16 | ~int32 | ~int64
	}
	Unsigned interface {
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
	}
	Integer interface {
		Signed | Unsigned
	}
)

// Int is the Integer variant: a base-10 integer literal holding a signed
// 64-bit value. The wire API transmits integers as JSON strings, and Int
// keeps that text form.
type Int string

// IntOf returns the decimal form of v.
func IntOf(v int64) Int {
	return Int(strconv.FormatInt(v, 10))
}

// Valid reports whether i is a canonical decimal literal: an optional
// leading minus, no leading zeros beyond a bare 0, within the int64 range.
func (i Int) Valid() bool {
	s := string(i)
	if s == "" || s == "-" {
		return false
	}
	digits := s
	if digits[0] == '-' {
		digits = digits[1:]
		if digits == "0" {
			return false
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return false
	}
	for _, c := range []byte(digits) {
		if c < '0' || c > '9' {
			return false
		}
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// Int64 parses i. Malformed text fails with ParseIntError, text outside
// the int64 range with IntegerSizeMismatch.
func (i Int) Int64() (int64, error) {
	v, err := strconv.ParseInt(string(i), 10, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, errorf(IntegerSizeMismatch, "int64")
		}
		return 0, errorf(ParseIntError, "%q", string(i))
	}
	return v, nil
}

func (i Int) String() string { return string(i) }

// MarshalJSON emits i as a JSON string, the way the wire API carries int64.
func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid() {
		return nil, errorf(ParseIntError, "%q", string(i))
	}
	return strconv.AppendQuote(nil, string(i)), nil
}

// UnmarshalJSON accepts a quoted decimal and stores it in canonical form.
func (i *Int) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return customErr(DeserializationError, err, "integer")
	}
	v, err := Int(s).Int64()
	if err != nil {
		return err
	}
	*i = IntOf(v)
	return nil
}

// EncodeInt produces the exact decimal digits of v. Unsigned values above
// math.MaxInt64 do not fit the wire type and fail with IntegerSizeMismatch.
func EncodeInt[T Integer](v T) (Int, error) {
	if isSigned[T]() {
		return IntOf(int64(v)), nil
	}
	u := uint64(v)
	if u > math.MaxInt64 {
		return "", errorf(IntegerSizeMismatch, "%s", reflect.TypeFor[T]())
	}
	return IntOf(int64(u)), nil
}

// DecodeInt parses i and range-checks it against T before narrowing.
func DecodeInt[T Integer](i Int) (T, error) {
	v, err := i.Int64()
	if err != nil {
		return 0, err
	}
	var zero T
	bits := int(unsafe.Sizeof(zero)) * 8
	if isSigned[T]() {
		if !fitsSigned(v, bits) {
			return 0, errorf(IntegerSizeMismatch, "%s", reflect.TypeFor[T]())
		}
	} else if !fitsUnsigned(v, bits) {
		return 0, errorf(IntegerSizeMismatch, "%s", reflect.TypeFor[T]())
	}
	return T(v), nil
}

func isSigned[T Integer]() bool {
	var zero T
	return zero-1 < zero
}

func fitsSigned(v int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	lim := int64(1) << (bits - 1)
	return v >= -lim && v < lim
}

func fitsUnsigned(v int64, bits int) bool {
	if v < 0 {
		return false
	}
	if bits >= 64 {
		return true
	}
	return uint64(v) < uint64(1)<<bits
}

// intBits is the width table used by the reflection walk; it is keyed by
// kind so that named integer types share their underlying width.
var intBits = [...]int{
	reflect.Int:     strconv.IntSize,
	reflect.Int8:    8,
	reflect.Int16:   16,
	reflect.Int32:   32,
	reflect.Int64:   64,
	reflect.Uint:    strconv.IntSize,
	reflect.Uint8:   8,
	reflect.Uint16:  16,
	reflect.Uint32:  32,
	reflect.Uint64:  64,
	reflect.Uintptr: 8 * int(unsafe.Sizeof(uintptr(0))),
}

// Blob is the Blob variant: raw bytes, base64-encoded only in JSON.
type Blob []byte

func (b Blob) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

func (b Blob) MarshalJSON() ([]byte, error) {
	buf := append(make([]byte, 0, base64.StdEncoding.EncodedLen(len(b))+2), '"')
	buf = base64.StdEncoding.AppendEncode(buf, b)
	return append(buf, '"'), nil
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return customErr(DeserializationError, err, "blob")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return customErr(DeserializationError, err, "blob")
	}
	*b = raw
	return nil
}
