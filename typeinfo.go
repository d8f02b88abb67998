package dsval

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// TagName is the struct tag consulted for property names and options:
//
//	Name string `datastore:"name,omitempty"`
//	Skip string `datastore:"-"`
const TagName = "datastore"

var structInfoCache sync.Map

type structInfo struct {
	typ    reflect.Type
	fields []*fieldInfo
	byName map[string]*fieldInfo
	err    error
}

type fieldInfo struct {
	Name      string
	Index     []int
	Type      reflect.Type
	OmitEmpty bool
}

func reflectStruct(typ reflect.Type) *structInfo {
	if v, ok := structInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectStructWithoutCache(typ)
	actual, _ := structInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectStructWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	info := &structInfo{
		typ:    typ,
		byName: make(map[string]*fieldInfo),
	}
	n := typ.NumField()
	for i := 0; i < n; i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get(TagName), ",")
		if name == "-" && opts == "" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		fi := &fieldInfo{
			Name:  name,
			Index: field.Index,
			Type:  field.Type,
		}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "omitempty":
				fi.OmitEmpty = true
			case "", "noindex":
				// noindex is accepted for compatibility with other Datastore libraries
			default:
				info.err = errorf(SerializationError, "%v.%s: unknown %s tag option %q", typ, field.Name, TagName, opt)
			}
		}
		if prev := info.byName[name]; prev != nil {
			info.err = errorf(SerializationError, "%v: fields %s and %s both map to property %q", typ, typ.FieldByIndex(prev.Index).Name, field.Name, name)
			continue
		}
		info.byName[name] = fi
		info.fields = append(info.fields, fi)
	}
	return info
}

var (
	valueType            = reflect.TypeFor[Value]()
	entityType           = reflect.TypeFor[Entity]()
	keyType              = reflect.TypeFor[Key]()
	geoPointType         = reflect.TypeFor[GeoPoint]()
	timeType             = reflect.TypeFor[time.Time]()
	valueMarshalerType   = reflect.TypeFor[ValueMarshaler]()
	valueUnmarshalerType = reflect.TypeFor[ValueUnmarshaler]()
	textMarshalerType    = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType  = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// ValueMarshaler is implemented by types that produce their own value tree.
// A returned error surfaces as a SerializationError.
type ValueMarshaler interface {
	MarshalValue() (Value, error)
}

// ValueUnmarshaler is implemented by types that consume their own value tree.
// A returned error surfaces as a DeserializationError.
type ValueUnmarshaler interface {
	UnmarshalValue(v Value) error
}

func isBytes(typ reflect.Type) bool {
	return typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8
}
