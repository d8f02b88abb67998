package entitystore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/andreyvit/dsval"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how entities are stored. Every stored value starts
// with the encoding tag, so a database may mix encodings.
//
// Stored value: tag:8 checksum:64 payload, where checksum is the
// big-endian xxhash of the payload.
type Encoding byte

const (
	MsgPack Encoding = 'm'
	JSON    Encoding = 'j'

	defaultEncoding = MsgPack
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Encoding(%d)", byte(enc))
	}
}

// ParseEncoding is the inverse of Encoding.String.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "msgpack":
		return MsgPack, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

const valueHeaderLen = 1 + 8

// bytesBuilder is the io.Writer msgpack encodes into.
type bytesBuilder struct {
	Buf []byte
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = append(bb.Buf, b...)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	bb.Buf = append(bb.Buf, v)
	return nil
}

// encodeEntity appends the stored form of e to buf. Nesting deeper than
// maxDepth fails with dsval.DepthLimitExceeded.
func (enc Encoding) encodeEntity(buf []byte, e *dsval.Entity, maxDepth int) ([]byte, error) {
	start := len(buf)
	buf = append(buf, byte(enc), 0, 0, 0, 0, 0, 0, 0, 0)
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		menc := msgpack.GetEncoder()
		menc.Reset(&bb)
		err := encodeMsgpackValue(menc, e, 0, maxDepth)
		msgpack.PutEncoder(menc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entity using MsgPack: %w", err)
		}
		buf = bb.Buf
	case JSON:
		raw, err := dsval.WireCodec{MaxDepth: maxDepth}.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entity to JSON: %w", err)
		}
		buf = append(buf, raw...)
	default:
		panic(fmt.Errorf("unsupported encoding %v", enc))
	}
	return sealValue(buf, start), nil
}

// sealValue fills in the checksum of the value starting at buf[start].
func sealValue(buf []byte, start int) []byte {
	binary.BigEndian.PutUint64(buf[start+1:], xxhash.Sum64(buf[start+valueHeaderLen:]))
	return buf
}

func decodeEntity(data []byte, maxDepth int) (*dsval.Entity, error) {
	if len(data) < valueHeaderLen {
		return nil, dataErrf(data, 0, nil, "value shorter than its header")
	}
	payload := data[valueHeaderLen:]
	if binary.BigEndian.Uint64(data[1:]) != xxhash.Sum64(payload) {
		return nil, dataErrf(data, 1, nil, "checksum mismatch")
	}
	var v dsval.Value
	switch enc := Encoding(data[0]); enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(payload)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		var err error
		v, err = decodeMsgpackValue(dec, 0, maxDepth)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, dataErrf(data, valueHeaderLen, err, "failed to decode msgpack entity")
		}
	case JSON:
		var err error
		v, err = dsval.WireCodec{MaxDepth: maxDepth}.Parse(payload)
		if err != nil {
			return nil, dataErrf(data, valueHeaderLen, err, "failed to decode JSON entity")
		}
	default:
		return nil, dataErrf(data, 0, nil, "unknown encoding tag %v", enc)
	}
	e, ok := v.(*dsval.Entity)
	if !ok {
		return nil, dataErrf(data, 0, nil, "stored %v is not an entity", dsval.KindOf(v))
	}
	return e, nil
}

// A msgpack value is a two-element array: the dsval.Kind, then the payload.
//
//	null       nil
//	string     string
//	boolean    bool
//	integer    int64
//	double     float64
//	array      array of values
//	geo point  [latitude, longitude]
//	entity     map of name to value, names sorted
//	key        [project, namespace, [kind, id, name]...]
//	blob       bin
//	timestamp  msgpack timestamp extension

func depthExceeded(maxDepth int) error {
	return &dsval.Error{Kind: dsval.DepthLimitExceeded, Detail: strconv.Itoa(maxDepth)}
}

func encodeMsgpackValue(enc *msgpack.Encoder, v dsval.Value, depth, maxDepth int) error {
	if depth > maxDepth {
		return depthExceeded(maxDepth)
	}
	switch p := v.(type) {
	case nil:
		v = dsval.Null{}
	case *dsval.Entity:
		if p == nil {
			v = dsval.Null{}
		}
	case *dsval.Key:
		if p == nil {
			v = dsval.Null{}
		}
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(v.Kind())); err != nil {
		return err
	}
	switch v := v.(type) {
	case dsval.Null:
		return enc.EncodeNil()
	case dsval.String:
		return enc.EncodeString(string(v))
	case dsval.Boolean:
		return enc.EncodeBool(bool(v))
	case dsval.Int:
		i, err := v.Int64()
		if err != nil {
			return err
		}
		return enc.EncodeInt(i)
	case dsval.Double:
		return enc.EncodeFloat64(float64(v))
	case dsval.Array:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for _, el := range v {
			if err := encodeMsgpackValue(enc, el, depth+1, maxDepth); err != nil {
				return err
			}
		}
		return nil
	case dsval.GeoPoint:
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeFloat64(v.Latitude); err != nil {
			return err
		}
		return enc.EncodeFloat64(v.Longitude)
	case *dsval.Entity:
		if err := enc.EncodeMapLen(len(v.Properties)); err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(v.Properties)) {
			if err := enc.EncodeString(name); err != nil {
				return err
			}
			if err := encodeMsgpackValue(enc, v.Properties[name], depth+1, maxDepth); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	case *dsval.Key:
		return encodeMsgpackKey(enc, v)
	case dsval.Blob:
		return enc.EncodeBytes(v)
	case dsval.Timestamp:
		return enc.EncodeTime(v.Time)
	default:
		panic(fmt.Errorf("unknown value type %T", v))
	}
}

func encodeMsgpackKey(enc *msgpack.Encoder, k *dsval.Key) error {
	if err := enc.EncodeArrayLen(2 + len(k.Path)); err != nil {
		return err
	}
	if err := enc.EncodeString(k.PartitionID.ProjectID); err != nil {
		return err
	}
	if err := enc.EncodeString(k.PartitionID.NamespaceID); err != nil {
		return err
	}
	for _, el := range k.Path {
		if err := enc.EncodeArrayLen(3); err != nil {
			return err
		}
		if err := enc.EncodeString(el.Kind); err != nil {
			return err
		}
		if err := enc.EncodeInt(el.ID); err != nil {
			return err
		}
		if err := enc.EncodeString(el.Name); err != nil {
			return err
		}
	}
	return nil
}

func decodeMsgpackValue(dec *msgpack.Decoder, depth, maxDepth int) (dsval.Value, error) {
	if depth > maxDepth {
		return nil, depthExceeded(maxDepth)
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("value array has %d elements, wanted 2", n)
	}
	k, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}
	switch dsval.Kind(k) {
	case dsval.NullKind:
		if err := dec.DecodeNil(); err != nil {
			return nil, err
		}
		return dsval.Null{}, nil
	case dsval.StringKind:
		s, err := dec.DecodeString()
		return dsval.String(s), err
	case dsval.BooleanKind:
		b, err := dec.DecodeBool()
		return dsval.Boolean(b), err
	case dsval.IntegerKind:
		i, err := dec.DecodeInt64()
		return dsval.IntOf(i), err
	case dsval.DoubleKind:
		f, err := dec.DecodeFloat64()
		return dsval.Double(f), err
	case dsval.ArrayKind:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make(dsval.Array, 0, max(n, 0))
		for i := 0; i < n; i++ {
			el, err := decodeMsgpackValue(dec, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, el)
		}
		return arr, nil
	case dsval.GeoPointKind:
		if n, err := dec.DecodeArrayLen(); err != nil {
			return nil, err
		} else if n != 2 {
			return nil, fmt.Errorf("geo point has %d elements, wanted 2", n)
		}
		var gp dsval.GeoPoint
		if gp.Latitude, err = dec.DecodeFloat64(); err != nil {
			return nil, err
		}
		if gp.Longitude, err = dec.DecodeFloat64(); err != nil {
			return nil, err
		}
		return gp, nil
	case dsval.EntityKind:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		e := &dsval.Entity{Properties: make(map[string]dsval.Value, max(n, 0))}
		for i := 0; i < n; i++ {
			name, err := dec.DecodeString()
			if err != nil {
				return nil, err
			}
			v, err := decodeMsgpackValue(dec, depth+1, maxDepth)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			e.Properties[name] = v
		}
		return e, nil
	case dsval.KeyKind:
		return decodeMsgpackKey(dec)
	case dsval.BlobKind:
		b, err := dec.DecodeBytes()
		return dsval.Blob(b), err
	case dsval.TimestampKind:
		t, err := dec.DecodeTime()
		return dsval.TimestampOf(t), err
	default:
		return nil, fmt.Errorf("unknown value kind %d", k)
	}
}

func decodeMsgpackKey(dec *msgpack.Decoder) (*dsval.Key, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, fmt.Errorf("key has %d elements, wanted at least 2", n)
	}
	k := &dsval.Key{Path: make([]dsval.PathElement, 0, n-2)}
	if k.PartitionID.ProjectID, err = dec.DecodeString(); err != nil {
		return nil, err
	}
	if k.PartitionID.NamespaceID, err = dec.DecodeString(); err != nil {
		return nil, err
	}
	for i := 2; i < n; i++ {
		if m, err := dec.DecodeArrayLen(); err != nil {
			return nil, err
		} else if m != 3 {
			return nil, fmt.Errorf("key path element has %d fields, wanted 3", m)
		}
		var el dsval.PathElement
		if el.Kind, err = dec.DecodeString(); err != nil {
			return nil, err
		}
		if el.ID, err = dec.DecodeInt64(); err != nil {
			return nil, err
		}
		if el.Name, err = dec.DecodeString(); err != nil {
			return nil, err
		}
		k.Path = append(k.Path, el)
	}
	return k, nil
}
