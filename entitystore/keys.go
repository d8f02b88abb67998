package entitystore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/andreyvit/dsval"
)

// storageKey is the encoded form of a key path within its partition:
//
//	key     = string(last kind) element+
//	element = string(kind) ('i' id:64 | 'n' string(name))
//	string  = uvarint(len) bytes
//
// Leading with the last kind groups every kind into one contiguous key
// range, which kindPrefix addresses. IDs are stored big-endian with the
// sign bit flipped so that byte order matches numeric order, and sort
// before names within a kind.
type storageKey []byte

const (
	idTag   = 'i'
	nameTag = 'n'
)

var errTruncatedKey = errors.New("truncated")

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// kindPrefix is the prefix shared by all keys whose last element has the
// given kind, or nil (matching everything) for an empty kind.
func kindPrefix(kind string) []byte {
	if kind == "" {
		return nil
	}
	return appendString(nil, kind)
}

func encodeKey(buf []byte, key *dsval.Key) storageKey {
	buf = appendString(buf, key.LastKind())
	for _, el := range key.Path {
		buf = appendString(buf, el.Kind)
		if el.Name != "" {
			buf = append(buf, nameTag)
			buf = appendString(buf, el.Name)
		} else {
			buf = append(buf, idTag)
			buf = binary.BigEndian.AppendUint64(buf, uint64(el.ID)^(1<<63))
		}
	}
	return buf
}

// keyReader consumes an encoded key from the left.
type keyReader struct {
	raw []byte
	off int
}

func (r *keyReader) more() bool {
	return r.off < len(r.raw)
}

func (r *keyReader) readByte() (byte, error) {
	if !r.more() {
		return 0, errTruncatedKey
	}
	b := r.raw[r.off]
	r.off++
	return b, nil
}

func (r *keyReader) readString() (string, error) {
	n, size := binary.Uvarint(r.raw[r.off:])
	if size <= 0 || n > uint64(len(r.raw)-r.off-size) {
		return "", errTruncatedKey
	}
	start := r.off + size
	r.off = start + int(n)
	return string(r.raw[start:r.off]), nil
}

func (r *keyReader) readID() (int64, error) {
	if len(r.raw)-r.off < 8 {
		return 0, errTruncatedKey
	}
	v := binary.BigEndian.Uint64(r.raw[r.off:])
	r.off += 8
	return int64(v ^ (1 << 63)), nil
}

func decodeKey(part dsval.PartitionID, raw storageKey) (*dsval.Key, error) {
	r := keyReader{raw: raw}
	fail := func(err error, format string, args ...any) error {
		return dataErrf(raw, r.off, err, "invalid key: "+format, args...)
	}
	lastKind, err := r.readString()
	if err != nil {
		return nil, fail(err, "kind")
	}
	key := &dsval.Key{PartitionID: part}
	for r.more() {
		var el dsval.PathElement
		if el.Kind, err = r.readString(); err != nil {
			return nil, fail(err, "element %d kind", len(key.Path))
		}
		tag, err := r.readByte()
		if err != nil {
			return nil, fail(err, "element %d", len(key.Path))
		}
		switch tag {
		case idTag:
			el.ID, err = r.readID()
		case nameTag:
			el.Name, err = r.readString()
		default:
			return nil, fail(nil, "element %d has identifier tag %q", len(key.Path), tag)
		}
		if err != nil {
			return nil, fail(err, "element %d identifier", len(key.Path))
		}
		key.Path = append(key.Path, el)
	}
	if len(key.Path) == 0 {
		return nil, fail(nil, "empty path")
	}
	if key.LastKind() != lastKind {
		return nil, fail(nil, "leading kind %q does not match %q", lastKind, key.LastKind())
	}
	return key, nil
}

// checkKey rejects keys that cannot be stored.
func checkKey(key *dsval.Key) error {
	if key == nil {
		return fmt.Errorf("nil key")
	}
	if key.PartitionID.ProjectID == "" {
		return fmt.Errorf("key %v has no project", key)
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if key.Incomplete() {
		return fmt.Errorf("key %v is incomplete", key)
	}
	return nil
}
