package dsval

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const (
	wireNull      = "nullValue"
	wireString    = "stringValue"
	wireBoolean   = "booleanValue"
	wireInteger   = "integerValue"
	wireDouble    = "doubleValue"
	wireArray     = "arrayValue"
	wireGeoPoint  = "geoPointValue"
	wireEntity    = "entityValue"
	wireKey       = "keyValue"
	wireBlob      = "blobValue"
	wireTimestamp = "timestampValue"

	// sibling fields the service attaches to property values
	wireExcludeFromIndexes = "excludeFromIndexes"
	wireMeaning            = "meaning"
)

// MarshalJSON renders v in the wire representation: a single-key object
// such as {"integerValue":"14"}. Entity properties are emitted in sorted
// order, but readers must not depend on it.
func MarshalJSON(v Value) ([]byte, error) {
	return WireCodec{}.Marshal(v)
}

// WireCodec converts value trees to and from wire JSON. The zero
// WireCodec is what MarshalJSON and ParseJSON use.
type WireCodec struct {
	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

func (c WireCodec) limit() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

// Marshal is MarshalJSON with the codec's depth limit.
func (c WireCodec) Marshal(v Value) ([]byte, error) {
	return c.appendValue(nil, v, 0)
}

// Parse is ParseJSON with the codec's depth limit.
func (c WireCodec) Parse(data []byte) (Value, error) {
	return c.parseValue(data, 0)
}

func (c WireCodec) appendValue(buf []byte, v Value, depth int) ([]byte, error) {
	if depth > c.limit() {
		return nil, errorf(DepthLimitExceeded, "%d", c.limit())
	}
	v = normalize(v)
	buf = append(buf, '{', '"')
	buf = append(buf, wireName(v.Kind())...)
	buf = append(buf, '"', ':')
	var err error
	switch v := v.(type) {
	case Null:
		buf = append(buf, "null"...)
	case String:
		buf, err = appendJSON(buf, string(v))
	case Boolean:
		buf = strconv.AppendBool(buf, bool(v))
	case Int:
		if !v.Valid() {
			return nil, errorf(ParseIntError, "%q", string(v))
		}
		buf = strconv.AppendQuote(buf, string(v))
	case Double:
		buf = appendDouble(buf, float64(v))
	case Array:
		buf = append(buf, `{"values":[`...)
		for i, el := range v {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf, err = c.appendValue(buf, el, depth+1)
			if err != nil {
				return nil, withPath(err, indexSeg(i))
			}
		}
		buf = append(buf, ']', '}')
	case GeoPoint:
		buf, err = appendJSON(buf, v)
	case *Entity:
		buf, err = c.appendEntity(buf, v, depth+1)
	case *Key:
		buf, err = appendJSON(buf, v)
	case Blob:
		raw, _ := v.MarshalJSON()
		buf = append(buf, raw...)
	case Timestamp:
		buf = append(buf, '"')
		buf = v.UTC().AppendFormat(buf, time.RFC3339Nano)
		buf = append(buf, '"')
	default:
		panic(fmt.Errorf("unknown value type %T", v))
	}
	if err != nil {
		return nil, err
	}
	return append(buf, '}'), nil
}

func (c WireCodec) appendEntity(buf []byte, e *Entity, depth int) ([]byte, error) {
	buf = append(buf, `{"properties":{`...)
	for i, name := range slices.Sorted(maps.Keys(e.Properties)) {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = appendJSON(buf, name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, ':')
		buf, err = c.appendValue(buf, e.Properties[name], depth)
		if err != nil {
			return nil, withPath(err, fieldSeg(name))
		}
	}
	return append(buf, '}', '}'), nil
}

// MarshalJSON renders the entity body, {"properties":{...}}.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return WireCodec{}.appendEntity(nil, e, 0)
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	parsed, err := WireCodec{}.parseEntity(data, 0)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

func appendJSON(buf []byte, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, customErr(SerializationError, err, "")
	}
	return append(buf, raw...), nil
}

func appendDouble(buf []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(buf, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(buf, `"Infinity"`...)
	case math.IsInf(f, -1):
		return append(buf, `"-Infinity"`...)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64)
}

func wireName(k Kind) string {
	switch k {
	case NullKind:
		return wireNull
	case StringKind:
		return wireString
	case BooleanKind:
		return wireBoolean
	case IntegerKind:
		return wireInteger
	case DoubleKind:
		return wireDouble
	case ArrayKind:
		return wireArray
	case GeoPointKind:
		return wireGeoPoint
	case EntityKind:
		return wireEntity
	case KeyKind:
		return wireKey
	case BlobKind:
		return wireBlob
	case TimestampKind:
		return wireTimestamp
	default:
		panic(fmt.Errorf("unknown kind %v", k))
	}
}

// ParseJSON reads one wire value. Malformed JSON, base64, integer or
// timestamp text fails with an *Error.
func ParseJSON(data []byte) (Value, error) {
	return WireCodec{}.Parse(data)
}

func (c WireCodec) parseValue(data []byte, depth int) (Value, error) {
	if depth > c.limit() {
		return nil, errorf(DepthLimitExceeded, "%d", c.limit())
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, customErr(DeserializationError, err, "invalid value")
	}
	var name string
	var raw json.RawMessage
	for k, v := range obj {
		if k == wireExcludeFromIndexes || k == wireMeaning {
			continue
		}
		if name != "" {
			return nil, errorf(DeserializationError, "value has both %s and %s", name, k)
		}
		name, raw = k, v
	}

	switch name {
	case "":
		return nil, errorf(DeserializationError, "value has no variant field")
	case wireNull:
		if string(raw) != "null" {
			return nil, errorf(DeserializationError, "nullValue must be null, got %s", raw)
		}
		return Null{}, nil
	case wireString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, customErr(DeserializationError, err, wireString)
		}
		return String(s), nil
	case wireBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, customErr(DeserializationError, err, wireBoolean)
		}
		return Boolean(b), nil
	case wireInteger:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, customErr(DeserializationError, err, wireInteger)
		}
		n, err := Int(s).Int64()
		if err != nil {
			return nil, err
		}
		return IntOf(n), nil
	case wireDouble:
		return parseDouble(raw)
	case wireArray:
		var body struct {
			Values []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, customErr(DeserializationError, err, wireArray)
		}
		arr := make(Array, 0, len(body.Values))
		for i, el := range body.Values {
			v, err := c.parseValue(el, depth+1)
			if err != nil {
				return nil, withPath(err, indexSeg(i))
			}
			arr = append(arr, v)
		}
		return arr, nil
	case wireGeoPoint:
		var gp GeoPoint
		if err := json.Unmarshal(raw, &gp); err != nil {
			return nil, customErr(DeserializationError, err, wireGeoPoint)
		}
		return gp, nil
	case wireEntity:
		return c.parseEntity(raw, depth+1)
	case wireKey:
		key := new(Key)
		if err := json.Unmarshal(raw, key); err != nil {
			return nil, customErr(DeserializationError, err, wireKey)
		}
		return key, nil
	case wireBlob:
		var b Blob
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, customErr(DeserializationError, err, wireBlob)
		}
		return b, nil
	case wireTimestamp:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, customErr(DeserializationError, err, wireTimestamp)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, customErr(DeserializationError, err, wireTimestamp)
		}
		return TimestampOf(t), nil
	default:
		return nil, errorf(DeserializationError, "unknown value field %q", name)
	}
}

func (c WireCodec) parseEntity(data []byte, depth int) (*Entity, error) {
	var body struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, customErr(DeserializationError, err, wireEntity)
	}
	e := &Entity{Properties: make(map[string]Value, len(body.Properties))}
	for name, raw := range body.Properties {
		v, err := c.parseValue(raw, depth)
		if err != nil {
			return nil, withPath(err, fieldSeg(name))
		}
		e.Properties[name] = v
	}
	return e, nil
}

func parseDouble(raw json.RawMessage) (Value, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, customErr(DeserializationError, err, wireDouble)
		}
		switch s {
		case "NaN":
			return Double(math.NaN()), nil
		case "Infinity":
			return Double(math.Inf(1)), nil
		case "-Infinity":
			return Double(math.Inf(-1)), nil
		default:
			return nil, errorf(DeserializationError, "invalid doubleValue %q", s)
		}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, customErr(DeserializationError, err, wireDouble)
	}
	return Double(f), nil
}
