package dsval

import (
	"encoding"
	"reflect"
	"time"
)

// decodeInto picks the Input method matching rv's type and replays the
// input into rv through a reflectVisitor. rv must be settable.
func (ds *decodeState) decodeInto(in *Input, rv reflect.Value) error {
	typ := rv.Type()
	vis := &reflectVisitor{ds: ds, rv: rv}

	if typ.Kind() == reflect.Pointer {
		return in.DecodeOption(vis)
	}
	if typ == valueType {
		if in.Kind() == NullKind {
			rv.SetZero()
		} else {
			rv.Set(reflect.ValueOf(in.Value()))
		}
		return nil
	}
	if u, ok := asInterface[ValueUnmarshaler](rv, valueUnmarshalerType); ok {
		if err := u.UnmarshalValue(in.Value()); err != nil {
			return customErr(DeserializationError, err, "%v.UnmarshalValue", typ)
		}
		return nil
	}
	switch typ {
	case timeType:
		return in.DecodeTimestamp(vis)
	case geoPointType:
		return in.DecodeGeoPoint(vis)
	case keyType:
		return in.DecodeKey(vis)
	case entityType:
		e, ok := in.Value().(*Entity)
		if !ok {
			return in.expected(EntityKind)
		}
		rv.Set(reflect.ValueOf(*e))
		return nil
	}
	if typ.Kind() != reflect.Interface && typ.Implements(valueType) {
		v := in.Value()
		if reflect.TypeOf(v) != typ {
			return in.expected(reflect.Zero(typ).Interface().(Value).Kind())
		}
		rv.Set(reflect.ValueOf(v))
		return nil
	}
	if reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		return in.DecodeString(vis)
	}

	switch typ.Kind() {
	case reflect.Bool:
		return in.DecodeBool(vis)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return in.DecodeInt(intBits[typ.Kind()], vis)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return in.DecodeUint(intBits[typ.Kind()], vis)
	case reflect.Float32:
		return in.DecodeFloat(32, vis)
	case reflect.Float64:
		return in.DecodeFloat(64, vis)
	case reflect.String:
		return in.DecodeString(vis)
	case reflect.Slice:
		if in.Kind() == NullKind {
			return vis.VisitNull()
		}
		if isBytes(typ) {
			return in.DecodeBytes(vis)
		}
		return in.DecodeSeq(vis)
	case reflect.Map:
		if in.Kind() == NullKind {
			return vis.VisitNull()
		}
		return in.DecodeMap(vis)
	case reflect.Struct:
		info := reflectStruct(typ)
		if info.err != nil {
			return info.err
		}
		if len(info.fields) == 0 {
			return in.DecodeUnit(vis)
		}
		return in.DecodeMap(vis)
	case reflect.Interface:
		if typ.NumMethod() == 0 {
			return in.DecodeAny(vis)
		}
		return in.DecodeVariant(vis)
	case reflect.Array:
		return in.DecodeTuple(typ.Len(), vis)
	default:
		return errorf(UnsupportedValueType, "%s", typ.Kind())
	}
}

// reflectVisitor stores visited data into rv.
type reflectVisitor struct {
	ds *decodeState
	rv reflect.Value
}

func (vis *reflectVisitor) set(v any) error {
	vis.rv.Set(reflect.ValueOf(v))
	return nil
}

func (vis *reflectVisitor) VisitNull() error {
	vis.rv.SetZero()
	return nil
}

func (vis *reflectVisitor) VisitBool(v bool) error {
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(v)
	}
	vis.rv.SetBool(v)
	return nil
}

func (vis *reflectVisitor) VisitInt(v int64) error {
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(v)
	}
	vis.rv.SetInt(v)
	return nil
}

func (vis *reflectVisitor) VisitUint(v uint64) error {
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(v)
	}
	vis.rv.SetUint(v)
	return nil
}

func (vis *reflectVisitor) VisitFloat(v float64) error {
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(v)
	}
	vis.rv.SetFloat(v)
	return nil
}

func (vis *reflectVisitor) VisitString(v string) error {
	if u, ok := asInterface[encoding.TextUnmarshaler](vis.rv, textUnmarshalerType); ok {
		if err := u.UnmarshalText([]byte(v)); err != nil {
			return customErr(DeserializationError, err, "%v.UnmarshalText", vis.rv.Type())
		}
		return nil
	}
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(v)
	}
	vis.rv.SetString(v)
	return nil
}

func (vis *reflectVisitor) VisitBytes(v []byte) error {
	b := make([]byte, len(v))
	copy(b, v)
	if vis.rv.Kind() == reflect.Interface {
		return vis.set(b)
	}
	vis.rv.Set(reflect.ValueOf(b).Convert(vis.rv.Type()))
	return nil
}

func (vis *reflectVisitor) VisitTimestamp(v time.Time) error {
	return vis.set(v)
}

func (vis *reflectVisitor) VisitGeoPoint(v GeoPoint) error {
	return vis.set(v)
}

func (vis *reflectVisitor) VisitKey(v *Key) error {
	k := *v
	k.Path = append([]PathElement(nil), v.Path...)
	return vis.set(k)
}

func (vis *reflectVisitor) VisitSome(in *Input) error {
	elem := reflect.New(vis.rv.Type().Elem())
	if err := vis.ds.decodeInto(in, elem.Elem()); err != nil {
		return err
	}
	vis.rv.Set(elem)
	return nil
}

func (vis *reflectVisitor) VisitSeq(seq SeqAccess) error {
	typ := vis.rv.Type()
	if typ.Kind() == reflect.Interface {
		typ = reflect.TypeFor[[]any]()
	}
	slice := reflect.MakeSlice(typ, 0, seq.Len())
	elemType := typ.Elem()
	for i := 0; ; i++ {
		in, ok := seq.Next()
		if !ok {
			break
		}
		elem := reflect.New(elemType).Elem()
		if err := vis.ds.decodeInto(in, elem); err != nil {
			return withPath(err, indexSeg(i))
		}
		slice = reflect.Append(slice, elem)
	}
	vis.rv.Set(slice)
	return nil
}

func (vis *reflectVisitor) VisitMap(m MapAccess) error {
	if vis.rv.Kind() == reflect.Struct {
		return vis.visitStruct(m)
	}
	typ := vis.rv.Type()
	result := reflect.MakeMapWithSize(typ, m.Len())
	for {
		keyIn, ok := m.NextKey()
		if !ok {
			break
		}
		name, _ := keyIn.Value().(String)
		k := reflect.New(typ.Key()).Elem()
		if err := vis.ds.decodeInto(keyIn, k); err != nil {
			return withPath(err, fieldSeg(string(name)))
		}
		v := reflect.New(typ.Elem()).Elem()
		if err := vis.ds.decodeInto(m.NextValue(), v); err != nil {
			return withPath(err, fieldSeg(string(name)))
		}
		result.SetMapIndex(k, v)
	}
	vis.rv.Set(result)
	return nil
}

func (vis *reflectVisitor) visitStruct(m MapAccess) error {
	info := reflectStruct(vis.rv.Type())
	for {
		keyIn, ok := m.NextKey()
		if !ok {
			return nil
		}
		var name string
		if err := vis.ds.decodeInto(keyIn, reflect.ValueOf(&name).Elem()); err != nil {
			return err
		}
		fi := info.byName[name]
		if fi == nil {
			if vis.ds.ignoreUnknown {
				continue
			}
			return withPath(m.NextValue().DecodeIgnored(vis), fieldSeg(name))
		}
		if err := vis.ds.decodeInto(m.NextValue(), vis.rv.FieldByIndex(fi.Index)); err != nil {
			return withPath(err, fieldSeg(name))
		}
	}
}
