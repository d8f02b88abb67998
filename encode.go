package dsval

import (
	"encoding"
	"fmt"
	"reflect"
	"time"
)

// encodeState is the per-call traversal state of one Encode call.
type encodeState struct {
	maxDepth int
	depth    int
}

func (es *encodeState) enter() error {
	es.depth++
	if es.depth > es.maxDepth {
		return errorf(DepthLimitExceeded, "%d", es.maxDepth)
	}
	return nil
}

func (es *encodeState) leave() {
	es.depth--
}

func (es *encodeState) encode(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return es.nullValue(), nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return es.nullValue(), nil
		}
		return es.encode(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return es.nullValue(), nil
		}
		if err := es.enter(); err != nil {
			return nil, err
		}
		defer es.leave()
		return es.encode(rv.Elem())
	}

	typ := rv.Type()
	switch {
	case typ.Implements(valueType):
		return es.copyValue(rv.Interface().(Value))
	case typ == entityType:
		e := rv.Interface().(Entity)
		return es.copyValue(&e)
	case typ == keyType:
		k := rv.Interface().(Key)
		return es.copyValue(&k)
	case typ == timeType:
		return TimestampOf(rv.Interface().(time.Time)), nil
	}

	if m, ok := asInterface[ValueMarshaler](rv, valueMarshalerType); ok {
		v, err := m.MarshalValue()
		if err != nil {
			return nil, customErr(SerializationError, err, "%v.MarshalValue", typ)
		}
		return es.copyValue(v)
	}
	if m, ok := asInterface[encoding.TextMarshaler](rv, textMarshalerType); ok {
		text, err := m.MarshalText()
		if err != nil {
			return nil, customErr(SerializationError, err, "%v.MarshalText", typ)
		}
		return es.unitVariant(string(text)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return es.boolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return es.intValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return es.uintValue(rv.Uint(), typ)
	case reflect.Float32, reflect.Float64:
		return es.floatValue(rv.Float()), nil
	case reflect.String:
		return es.stringValue(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return es.nullValue(), nil
		}
		if isBytes(typ) {
			return es.bytesValue(rv.Bytes()), nil
		}
		return es.encodeSlice(rv)
	case reflect.Map:
		if rv.IsNil() {
			return es.nullValue(), nil
		}
		return es.encodeMap(rv)
	case reflect.Struct:
		return es.encodeStruct(rv)
	case reflect.Array:
		return nil, es.unsupported("tuple")
	case reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil, es.unsupported(rv.Kind().String())
	default:
		panic(fmt.Errorf("unhandled kind %v", rv.Kind()))
	}
}

func (es *encodeState) encodeSlice(rv reflect.Value) (Value, error) {
	if err := es.enter(); err != nil {
		return nil, err
	}
	defer es.leave()

	n := rv.Len()
	ab := es.beginArray(n)
	for i := 0; i < n; i++ {
		v, err := es.encode(rv.Index(i))
		if err != nil {
			return nil, withPath(err, indexSeg(i))
		}
		ab.element(v)
	}
	return ab.end(), nil
}

func (es *encodeState) encodeMap(rv reflect.Value) (Value, error) {
	if err := es.enter(); err != nil {
		return nil, err
	}
	defer es.leave()

	eb := es.beginEntity(rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := es.encode(iter.Key())
		if err != nil {
			return nil, err
		}
		if err := eb.setKey(k); err != nil {
			return nil, err
		}
		v, err := es.encode(iter.Value())
		if err != nil {
			return nil, withPath(err, fieldSeg(eb.key))
		}
		if err := eb.setValue(v); err != nil {
			return nil, err
		}
	}
	return eb.end(), nil
}

func (es *encodeState) encodeStruct(rv reflect.Value) (Value, error) {
	info := reflectStruct(rv.Type())
	if info.err != nil {
		return nil, info.err
	}
	if len(info.fields) == 0 {
		return es.nullValue(), nil
	}
	if err := es.enter(); err != nil {
		return nil, err
	}
	defer es.leave()

	eb := es.beginEntity(len(info.fields))
	for _, fi := range info.fields {
		fv := rv.FieldByIndex(fi.Index)
		if fi.OmitEmpty && fv.IsZero() {
			continue
		}
		v, err := es.encode(fv)
		if err != nil {
			return nil, withPath(err, fieldSeg(fi.Name))
		}
		eb.field(fi.Name, v)
	}
	return eb.end(), nil
}

// copyValue deep-copies a value tree found inside the input, so the
// result never shares maps or slices with the caller.
func (es *encodeState) copyValue(v Value) (Value, error) {
	switch v := normalize(v).(type) {
	case Array:
		if err := es.enter(); err != nil {
			return nil, err
		}
		defer es.leave()
		ab := es.beginArray(len(v))
		for i, el := range v {
			c, err := es.copyValue(el)
			if err != nil {
				return nil, withPath(err, indexSeg(i))
			}
			ab.element(c)
		}
		return ab.end(), nil
	case *Entity:
		if err := es.enter(); err != nil {
			return nil, err
		}
		defer es.leave()
		eb := es.beginEntity(len(v.Properties))
		for name, el := range v.Properties {
			c, err := es.copyValue(el)
			if err != nil {
				return nil, withPath(err, fieldSeg(name))
			}
			eb.field(name, c)
		}
		return eb.end(), nil
	case *Key:
		k := *v
		k.Path = append([]PathElement(nil), v.Path...)
		return &k, nil
	case Blob:
		return es.bytesValue(v), nil
	default:
		return v, nil
	}
}

// asInterface returns rv, or its address, as I if either implements it.
func asInterface[I any](rv reflect.Value, ityp reflect.Type) (I, bool) {
	typ := rv.Type()
	if typ.Implements(ityp) {
		return rv.Interface().(I), true
	}
	if rv.CanAddr() && reflect.PointerTo(typ).Implements(ityp) {
		return rv.Addr().Interface().(I), true
	}
	var zero I
	return zero, false
}
