/*
Package dsval converts between Go values and Datastore value trees, and
between value trees and the Datastore REST JSON form.

A value tree is built from the Value variants: Null, String, Boolean, Int,
Double, Array, GeoPoint, *Entity, *Key, Blob and Timestamp. Int holds the
decimal string form used on the wire; use IntOf and Int64 to convert.

# Go types

Encode and Decode map Go types as follows:

	bool                       Boolean
	intN, uintN                Int (uint64 values above MaxInt64 fail)
	float32, float64           Double
	string                     String
	[]byte                     Blob
	time.Time                  Timestamp
	GeoPoint, Key, Entity      themselves
	slice                      Array
	map[string]T, struct       Entity
	pointer                    the pointee, or Null when nil
	struct{}                   Null
	encoding.TextMarshaler     String

Arrays, complex numbers, channels and functions are unsupported. Struct
fields are named by the `datastore` tag, falling back to the field name;
`datastore:"-"` skips a field and `omitempty` drops zero values.

Types can take over their own conversion with ValueMarshaler and
ValueUnmarshaler.

# Decoding

Decoding is driven by the target: an Input checks that the stored value
has the shape the target asks for and replays it into a Visitor. The
reflection-based Decode is one such visitor; callers can supply their own
through NewInput.

Only an empty interface target lets the stored value pick the Go type.
Null, strings, booleans, integers, doubles, blobs and arrays decode into
nil, string, bool, int64, float64, []byte and []any; the remaining kinds
fail with NonSelfDescribingType.

# Errors

All failures are *Error values. Compare them with errors.Is against the
Err* sentinels, or inspect Kind, Detail and Path via errors.As.

# Wire JSON

MarshalJSON and ParseJSON implement the tagged REST form, e.g.
{"integerValue":"14"} or {"entityValue":{"properties":{...}}}. They limit
nesting to DefaultMaxDepth; WireCodec takes a different limit.
*/
package dsval
