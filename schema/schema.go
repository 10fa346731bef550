// Package schema describes the shape of postcard-encoded values.
//
// A DataModelType is an immutable tree, typically derived once per Go type
// with Of and shared from then on. OwnedDataModelType is its deep,
// exclusively-owned mirror, used when a schema is built, received, or
// stored at runtime.
package schema

import (
	"fmt"
	"slices"
)

// Kind identifies a node of the data model. The numeric value is also the
// variant index used when a schema is itself postcard-encoded.
type Kind uint8

const (
	Bool Kind = iota
	I8
	U8
	I16
	I32
	I64
	I128
	U16
	U32
	U64
	U128
	Usize
	Isize
	F32
	F64
	Char
	String
	ByteArray
	Option
	Unit
	UnitStruct
	Seq
	Tuple
	Map
	Struct
	Enum
	Schema

	kindCount
)

var kindNames = [kindCount]string{
	"Bool", "I8", "U8", "I16", "I32", "I64", "I128", "U16", "U32", "U64", "U128",
	"Usize", "Isize", "F32", "F64", "Char", "String", "ByteArray", "Option", "Unit",
	"UnitStruct", "Seq", "Tuple", "Map", "Struct", "Enum", "Schema",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	i := slices.Index(kindNames[:], name)
	if i < 0 {
		return 0, false
	}
	return Kind(i), true
}

// IsLeaf reports whether k carries no children.
func (k Kind) IsLeaf() bool {
	switch k {
	case Option, Seq, Tuple, Map, Struct, Enum:
		return false
	}
	return true
}

// DataKind identifies the payload shape of a struct or enum variant.
type DataKind uint8

const (
	DataUnit DataKind = iota
	DataNewtype
	DataTuple
	DataStruct

	dataKindCount
)

var dataKindNames = [dataKindCount]string{"Unit", "Newtype", "Tuple", "Struct"}

func (k DataKind) String() string {
	if k < dataKindCount {
		return dataKindNames[k]
	}
	return fmt.Sprintf("DataKind(%d)", uint8(k))
}

// DataModelType describes the shape of a value. Which fields are meaningful
// depends on Kind:
//
//	Option, Seq   Elem
//	Tuple         Elems
//	Map           Key, Val
//	Struct        Name, Data
//	Enum          Name, Variants
type DataModelType struct {
	Kind     Kind
	Elem     *DataModelType
	Elems    []*DataModelType
	Key, Val *DataModelType
	Name     string
	Data     Data
	Variants []Variant
}

// Data is the payload of a struct or an enum variant.
type Data struct {
	Kind    DataKind
	Newtype *DataModelType
	Tuple   []*DataModelType
	Fields  []NamedField
}

// NamedField is a field of a struct-shaped payload.
type NamedField struct {
	Name string
	Type *DataModelType
}

// Variant is one enum variant.
type Variant struct {
	Name string
	Data Data
}

var prims [kindCount]*DataModelType

func init() {
	for k := Kind(0); k < kindCount; k++ {
		if k.IsLeaf() {
			prims[k] = &DataModelType{Kind: k}
		}
	}
}

// Prim returns the shared node for a leaf kind. It panics for composite kinds.
func Prim(k Kind) *DataModelType {
	if k >= kindCount || prims[k] == nil {
		panic(fmt.Sprintf("schema: %s is not a leaf kind", k))
	}
	return prims[k]
}

func OptionOf(t *DataModelType) *DataModelType { return &DataModelType{Kind: Option, Elem: t} }
func SeqOf(t *DataModelType) *DataModelType    { return &DataModelType{Kind: Seq, Elem: t} }

func TupleOf(ts ...*DataModelType) *DataModelType {
	return &DataModelType{Kind: Tuple, Elems: ts}
}

func MapOf(key, val *DataModelType) *DataModelType {
	return &DataModelType{Kind: Map, Key: key, Val: val}
}

func StructOf(name string, data Data) *DataModelType {
	return &DataModelType{Kind: Struct, Name: name, Data: data}
}

func EnumOf(name string, variants ...Variant) *DataModelType {
	return &DataModelType{Kind: Enum, Name: name, Variants: variants}
}

func UnitData() Data                                 { return Data{Kind: DataUnit} }
func NewtypeData(t *DataModelType) Data              { return Data{Kind: DataNewtype, Newtype: t} }
func TupleData(ts ...*DataModelType) Data            { return Data{Kind: DataTuple, Tuple: ts} }
func StructData(fields ...NamedField) Data           { return Data{Kind: DataStruct, Fields: fields} }
func Field(name string, t *DataModelType) NamedField { return NamedField{Name: name, Type: t} }

// Equal reports whether a and b describe the same shape, names included.
// Kinds are compared first so mismatches stop early.
func Equal(a, b *DataModelType) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Option, Seq:
		return Equal(a.Elem, b.Elem)
	case Tuple:
		return equalList(a.Elems, b.Elems)
	case Map:
		return Equal(a.Key, b.Key) && Equal(a.Val, b.Val)
	case Struct:
		return a.Name == b.Name && equalData(&a.Data, &b.Data)
	case Enum:
		if a.Name != b.Name || len(a.Variants) != len(b.Variants) {
			return false
		}
		for i := range a.Variants {
			if a.Variants[i].Name != b.Variants[i].Name || !equalData(&a.Variants[i].Data, &b.Variants[i].Data) {
				return false
			}
		}
	}
	return true
}

func equalList(a, b []*DataModelType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalData(a, b *Data) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case DataNewtype:
		return Equal(a.Newtype, b.Newtype)
	case DataTuple:
		return equalList(a.Tuple, b.Tuple)
	case DataStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// String renders t as top-level pseudocode.
func (t *DataModelType) String() string {
	o := t.ToOwned()
	return o.String()
}
