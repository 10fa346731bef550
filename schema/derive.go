package schema

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/oy3o/postcard"
)

// ErrRecursive is returned for types that contain themselves; a schema tree
// cannot describe them.
var ErrRecursive = errors.New("schema: recursive type")

// Schemer is implemented by types that describe their own wire shape, usually
// alongside a custom postcard.Marshaler.
type Schemer interface {
	PostcardSchema() *DataModelType
}

type wrapper interface {
	WrappedType() reflect.Type
}

type fixedWidth interface {
	FixedWidth() int
}

var (
	schemerType    = reflect.TypeFor[Schemer]()
	wrapperType    = reflect.TypeFor[wrapper]()
	fixedWidthType = reflect.TypeFor[fixedWidth]()
	marshalerType  = reflect.TypeFor[postcard.Marshaler]()
	ownedType      = reflect.TypeFor[OwnedDataModelType]()
	uint128Type    = reflect.TypeFor[postcard.Uint128]()
	int128Type     = reflect.TypeFor[postcard.Int128]()
	charType       = reflect.TypeFor[postcard.Char]()
	newtypeMarker  = reflect.TypeFor[postcard.NewtypeVariant]()
	tupleMarker    = reflect.TypeFor[postcard.TupleVariant]()
)

var schemaCache = xsync.NewMap[reflect.Type, *DataModelType]()

// Of returns the schema of T. Results are cached per type.
func Of[T any]() (*DataModelType, error) {
	return For(reflect.TypeFor[T]())
}

// MustOf is Of for package-level variables; it panics on error.
func MustOf[T any]() *DataModelType {
	t, err := Of[T]()
	if err != nil {
		panic(err)
	}
	return t
}

// For returns the schema of t, following the same mapping the reflection
// encoder uses.
func For(t reflect.Type) (*DataModelType, error) {
	if t == nil {
		return nil, &postcard.TypeError{Reason: "nil type"}
	}
	return derive(t, make(map[reflect.Type]bool))
}

func derive(t reflect.Type, visiting map[reflect.Type]bool) (*DataModelType, error) {
	if s, ok := schemaCache.Load(t); ok {
		return s, nil
	}
	if visiting[t] {
		return nil, fmt.Errorf("%w: %s", ErrRecursive, t)
	}
	visiting[t] = true
	s, err := deriveUncached(t, visiting)
	delete(visiting, t)
	if err != nil {
		return nil, err
	}
	s, _ = schemaCache.LoadOrStore(t, s)
	return s, nil
}

func deriveUncached(t reflect.Type, visiting map[reflect.Type]bool) (*DataModelType, error) {
	switch t {
	case ownedType:
		return Prim(Schema), nil
	case uint128Type:
		return Prim(U128), nil
	case int128Type:
		return Prim(I128), nil
	case charType:
		return Prim(Char), nil
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if s, ok, err := deriveCustom(t, visiting); ok {
			return s, err
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return Prim(Bool), nil
	case reflect.Int8:
		return Prim(I8), nil
	case reflect.Uint8:
		return Prim(U8), nil
	case reflect.Int16:
		return Prim(I16), nil
	case reflect.Int32:
		return Prim(I32), nil
	case reflect.Int64:
		return Prim(I64), nil
	case reflect.Int:
		return Prim(Isize), nil
	case reflect.Uint16:
		return Prim(U16), nil
	case reflect.Uint32:
		return Prim(U32), nil
	case reflect.Uint64:
		return Prim(U64), nil
	case reflect.Uint, reflect.Uintptr:
		return Prim(Usize), nil
	case reflect.Float32:
		return Prim(F32), nil
	case reflect.Float64:
		return Prim(F64), nil
	case reflect.String:
		return Prim(String), nil
	case reflect.Pointer:
		elem, err := derive(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return OptionOf(elem), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(marshalerType) {
			return Prim(ByteArray), nil
		}
		elem, err := derive(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return SeqOf(elem), nil
	case reflect.Array:
		elem, err := derive(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		elems := make([]*DataModelType, t.Len())
		for i := range elems {
			elems[i] = elem
		}
		return TupleOf(elems...), nil
	case reflect.Map:
		key, err := derive(t.Key(), visiting)
		if err != nil {
			return nil, err
		}
		val, err := derive(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return MapOf(key, val), nil
	case reflect.Struct:
		if t.Name() == "" {
			return deriveAnonymous(t, visiting)
		}
		data, err := deriveData(t, structKind(t), visiting)
		if err != nil {
			return nil, err
		}
		return StructOf(t.Name(), data), nil
	case reflect.Interface:
		return deriveEnum(t, visiting)
	}
	return nil, &postcard.TypeError{Type: t}
}

// deriveCustom handles types that encode themselves.
func deriveCustom(t reflect.Type, visiting map[reflect.Type]bool) (*DataModelType, bool, error) {
	pt := reflect.PointerTo(t)
	switch {
	case t.Implements(schemerType):
		return reflect.Zero(t).Interface().(Schemer).PostcardSchema(), true, nil
	case pt.Implements(schemerType):
		return reflect.New(t).Interface().(Schemer).PostcardSchema(), true, nil
	case t.Implements(wrapperType):
		s, err := derive(reflect.Zero(t).Interface().(wrapper).WrappedType(), visiting)
		return s, true, err
	case t.Implements(fixedWidthType):
		n := reflect.Zero(t).Interface().(fixedWidth).FixedWidth()
		elems := make([]*DataModelType, n)
		for i := range elems {
			elems[i] = Prim(U8)
		}
		return TupleOf(elems...), true, nil
	case t.Implements(marshalerType), pt.Implements(marshalerType):
		return nil, true, &postcard.TypeError{Type: t, Reason: "custom marshaler without PostcardSchema"}
	}
	return nil, false, nil
}

func structKind(t reflect.Type) postcard.VariantKind {
	switch {
	case t.Implements(newtypeMarker):
		return postcard.VariantNewtype
	case t.Implements(tupleMarker):
		return postcard.VariantTuple
	case len(postcard.StructFields(t)) == 0:
		return postcard.VariantUnit
	}
	return postcard.VariantStruct
}

// deriveData describes the fields of struct t, or t itself for a
// non-struct newtype payload.
func deriveData(t reflect.Type, kind postcard.VariantKind, visiting map[reflect.Type]bool) (Data, error) {
	if kind == postcard.VariantUnit {
		return UnitData(), nil
	}
	if t.Kind() != reflect.Struct {
		inner, err := derive(t, visiting)
		if err != nil {
			return Data{}, err
		}
		return NewtypeData(inner), nil
	}
	fs := postcard.StructFields(t)
	types := make([]*DataModelType, len(fs))
	for i, f := range fs {
		ft, err := derive(f.Type, visiting)
		if err != nil {
			return Data{}, err
		}
		types[i] = ft
	}
	switch kind {
	case postcard.VariantNewtype:
		if len(types) != 1 {
			return Data{}, &postcard.TypeError{Type: t, Reason: "newtype must have exactly one encoded field"}
		}
		return NewtypeData(types[0]), nil
	case postcard.VariantTuple:
		return TupleData(types...), nil
	}
	fields := make([]NamedField, len(fs))
	for i := range fs {
		fields[i] = Field(fs[i].Name, types[i])
	}
	return StructData(fields...), nil
}

// deriveAnonymous maps anonymous struct types to tuples of their fields.
func deriveAnonymous(t reflect.Type, visiting map[reflect.Type]bool) (*DataModelType, error) {
	fs := postcard.StructFields(t)
	if len(fs) == 0 {
		return Prim(Unit), nil
	}
	elems := make([]*DataModelType, len(fs))
	for i, f := range fs {
		ft, err := derive(f.Type, visiting)
		if err != nil {
			return nil, err
		}
		elems[i] = ft
	}
	return TupleOf(elems...), nil
}

func deriveEnum(t reflect.Type, visiting map[reflect.Type]bool) (*DataModelType, error) {
	info, ok := postcard.LookupEnum(t)
	if !ok {
		return nil, &postcard.TypeError{Type: t, Reason: "interface is not a registered enum"}
	}
	variants := make([]Variant, len(info.Variants))
	for i, v := range info.Variants {
		data, err := deriveData(v.Type, v.Kind, visiting)
		if err != nil {
			return nil, err
		}
		variants[i] = Variant{Name: v.Name, Data: data}
	}
	return EnumOf(info.Name, variants...), nil
}
