package dsval

import "time"

// Visitor receives the data held by an Input. An Input's Decode* method
// inspects the value, checks it against the requested shape and calls
// exactly one Visit method, or returns an error without calling any.
//
// Compound values are not materialized up front: VisitSeq and VisitMap
// receive an accessor that the visitor pulls elements from one at a time.
type Visitor interface {
	VisitNull() error
	VisitBool(v bool) error
	VisitInt(v int64) error
	VisitUint(v uint64) error
	VisitFloat(v float64) error
	VisitString(v string) error
	VisitBytes(v []byte) error
	VisitTimestamp(v time.Time) error
	VisitGeoPoint(v GeoPoint) error
	VisitKey(v *Key) error

	// VisitSome is called by DecodeOption for any non-null value.
	VisitSome(in *Input) error

	VisitSeq(seq SeqAccess) error
	VisitMap(m MapAccess) error
}

// SeqAccess yields array elements in stored order. There is no rewind
// and no random access.
type SeqAccess interface {
	// Len is the total number of elements.
	Len() int
	// Next returns the next element, or false once all have been returned.
	Next() (*Input, bool)
}

// MapAccess yields entity properties in an unspecified order that is stable
// for the lifetime of the accessor.
//
// Each step is NextKey, which yields the property name as a string input,
// then optionally NextValue for the paired value. A value that is not
// requested is skipped by the following NextKey.
type MapAccess interface {
	// Len is the total number of properties.
	Len() int
	NextKey() (*Input, bool)
	// NextValue returns the value paired with the last key. It panics if
	// NextKey has not returned a key since the previous NextValue.
	NextValue() *Input
}
