package postcard

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// VariantKind describes the payload shape of an enum variant.
type VariantKind uint8

const (
	VariantUnit VariantKind = iota
	VariantNewtype
	VariantTuple
	VariantStruct
)

func (k VariantKind) String() string {
	switch k {
	case VariantUnit:
		return "unit"
	case VariantNewtype:
		return "newtype"
	case VariantTuple:
		return "tuple"
	case VariantStruct:
		return "struct"
	}
	return fmt.Sprintf("VariantKind(%d)", uint8(k))
}

// TupleVariant marks a struct variant type whose fields are positional.
type TupleVariant interface {
	PostcardTuple()
}

// NewtypeVariant marks a single-field struct variant type that wraps its field.
type NewtypeVariant interface {
	PostcardNewtype()
}

// Variant describes one registered variant.
type Variant struct {
	Name  string
	Index uint32
	Type  reflect.Type
	Kind  VariantKind
}

// EnumInfo describes an interface type registered as an enum.
type EnumInfo struct {
	Name     string
	Type     reflect.Type
	Variants []Variant
	byType   map[reflect.Type]uint32
}

// VariantOf returns the variant matching the dynamic type t.
func (e *EnumInfo) VariantOf(t reflect.Type) (Variant, bool) {
	i, ok := e.byType[t]
	if !ok {
		return Variant{}, false
	}
	return e.Variants[i], true
}

var enumRegistry = xsync.NewMap[reflect.Type, *EnumInfo]()

var (
	tupleVariantType   = reflect.TypeFor[TupleVariant]()
	newtypeVariantType = reflect.TypeFor[NewtypeVariant]()
)

// RegisterEnum registers the interface type I as an enum whose variants are
// the dynamic types of variants, in discriminant order. Variant names are the
// Go type names.
//
// A variant type's shape decides its encoding: an empty struct is a unit
// variant, a non-struct type a newtype variant, a struct implementing
// NewtypeVariant wraps its only field, a struct implementing TupleVariant is
// a tuple variant, and any other struct is a struct variant.
//
// RegisterEnum panics on invalid registrations; it is meant to be called from
// package init.
func RegisterEnum[I any](name string, variants ...I) *EnumInfo {
	it := reflect.TypeFor[I]()
	if it.Kind() != reflect.Interface {
		panic(fmt.Sprintf("postcard: RegisterEnum on non-interface type %s", it))
	}
	info := &EnumInfo{Name: name, Type: it, byType: make(map[reflect.Type]uint32, len(variants))}
	for i, v := range variants {
		vt := reflect.TypeOf(v)
		if vt == nil {
			panic(fmt.Sprintf("postcard: enum %s variant %d is nil", name, i))
		}
		if vt.Kind() == reflect.Pointer {
			panic(fmt.Sprintf("postcard: enum %s variant %s must not be a pointer", name, vt))
		}
		if _, dup := info.byType[vt]; dup {
			panic(fmt.Sprintf("postcard: enum %s registers %s twice", name, vt))
		}
		kind, err := variantKind(vt)
		if err != nil {
			panic(err.Error())
		}
		info.byType[vt] = uint32(i)
		info.Variants = append(info.Variants, Variant{Name: vt.Name(), Index: uint32(i), Type: vt, Kind: kind})
	}
	enumRegistry.Store(it, info)
	return info
}

// LookupEnum returns the registration for interface type t.
func LookupEnum(t reflect.Type) (*EnumInfo, bool) {
	return enumRegistry.Load(t)
}

func variantKind(t reflect.Type) (VariantKind, error) {
	if t.Kind() != reflect.Struct {
		return VariantNewtype, nil
	}
	switch {
	case t.Implements(newtypeVariantType):
		if t.NumField() != 1 {
			return 0, &TypeError{Type: t, Reason: "newtype variant must have exactly one field"}
		}
		return VariantNewtype, nil
	case t.Implements(tupleVariantType):
		return VariantTuple, nil
	case t.NumField() == 0:
		return VariantUnit, nil
	}
	return VariantStruct, nil
}
