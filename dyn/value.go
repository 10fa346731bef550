package dyn

import (
	"reflect"
	"slices"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Map is a map in wire order. Keys may be values Go maps cannot hold.
type Map []Entry

// Get returns the value of the first entry whose key equals key.
func (m Map) Get(key any) (any, bool) {
	for _, e := range m {
		if reflect.DeepEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Field is one named field of a Struct.
type Field struct {
	Name  string
	Value any
}

// Struct is a named struct with its fields in declaration order.
type Struct struct {
	Name   string
	Fields []Field
}

// Get returns the value of the named field.
func (s *Struct) Get(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// TupleStruct is a named struct with positional fields.
type TupleStruct struct {
	Name  string
	Elems []any
}

// Newtype is a named single-field wrapper.
type Newtype struct {
	Name  string
	Value any
}

// UnitStruct is a named struct with no fields.
type UnitStruct struct {
	Name string
}

// Variant is one enum value. Value is nil for unit variants, the payload for
// newtype variants, []any for tuple variants and []Field for struct variants.
type Variant struct {
	Enum  string
	Index uint32
	Name  string
	Kind  schema.DataKind
	Value any
}

type valueFrameKind uint8

const (
	vfSome valueFrameKind = iota
	vfNewtype
	vfNewtypeVariant
	vfList
	vfMap
	vfStruct
	vfTupleStruct
	vfTupleVariant
	vfStructVariant
)

type valueFrame struct {
	kind     valueFrameKind
	name     string
	enum     string
	index    uint32
	elems    []any
	entries  Map
	key      any
	hasKey   bool
	fields   []Field
	field    string
	hasField bool
}

// ValueTarget builds plain Go values:
//
//	bool, integers, floats    as the matching Go type
//	i128, u128                postcard.Int128, postcard.Uint128
//	char                      postcard.Char
//	string, bytes             string, []byte (copied)
//	unit, none                nil
//	some                      the inner value
//	seq, tuple                []any
//	map                       Map
//	structs and variants      Struct, TupleStruct, Newtype, UnitStruct, Variant
//
// With the Lossy strategy only the first rows occur.
type ValueTarget struct {
	stack []valueFrame
	out   any
	done  bool
}

// NewValueTarget returns an empty ValueTarget.
func NewValueTarget() *ValueTarget { return &ValueTarget{} }

// Value returns the completed value.
func (t *ValueTarget) Value() (any, error) {
	if !t.done || len(t.stack) > 0 {
		return nil, ErrUnbalanced
	}
	return t.out, nil
}

// Reset discards any partial or completed value.
func (t *ValueTarget) Reset() {
	t.stack = t.stack[:0]
	t.out, t.done = nil, false
}

func (t *ValueTarget) push(f valueFrame) error {
	if len(t.stack) == 0 && t.done {
		return ErrUnbalanced
	}
	if err := t.checkSlot(); err != nil {
		return err
	}
	t.stack = append(t.stack, f)
	return nil
}

// checkSlot reports whether the top frame can take a value now.
func (t *ValueTarget) checkSlot() error {
	if len(t.stack) == 0 {
		return nil
	}
	f := &t.stack[len(t.stack)-1]
	if (f.kind == vfStruct || f.kind == vfStructVariant) && !f.hasField {
		return ErrUnbalanced
	}
	return nil
}

// put hands a complete value to the innermost open frame.
func (t *ValueTarget) put(v any) error {
	for {
		if len(t.stack) == 0 {
			if t.done {
				return ErrUnbalanced
			}
			t.out, t.done = v, true
			return nil
		}
		f := &t.stack[len(t.stack)-1]
		switch f.kind {
		case vfSome:
			t.stack = t.stack[:len(t.stack)-1]
			continue
		case vfNewtype:
			v = &Newtype{Name: f.name, Value: v}
			t.stack = t.stack[:len(t.stack)-1]
			continue
		case vfNewtypeVariant:
			v = &Variant{Enum: f.enum, Index: f.index, Name: f.name, Kind: schema.DataNewtype, Value: v}
			t.stack = t.stack[:len(t.stack)-1]
			continue
		case vfList, vfTupleStruct, vfTupleVariant:
			f.elems = append(f.elems, v)
		case vfMap:
			if f.hasKey {
				f.entries = append(f.entries, Entry{Key: f.key, Value: v})
				f.key, f.hasKey = nil, false
			} else {
				f.key, f.hasKey = v, true
			}
		case vfStruct, vfStructVariant:
			if !f.hasField {
				return ErrUnbalanced
			}
			f.fields = append(f.fields, Field{Name: f.field, Value: v})
			f.hasField = false
		}
		return nil
	}
}

func (t *ValueTarget) Bool(v bool) error               { return t.put(v) }
func (t *ValueTarget) I8(v int8) error                 { return t.put(v) }
func (t *ValueTarget) I16(v int16) error               { return t.put(v) }
func (t *ValueTarget) I32(v int32) error               { return t.put(v) }
func (t *ValueTarget) I64(v int64) error               { return t.put(v) }
func (t *ValueTarget) I128(v postcard.Int128) error    { return t.put(v) }
func (t *ValueTarget) U8(v uint8) error                { return t.put(v) }
func (t *ValueTarget) U16(v uint16) error              { return t.put(v) }
func (t *ValueTarget) U32(v uint32) error              { return t.put(v) }
func (t *ValueTarget) U64(v uint64) error              { return t.put(v) }
func (t *ValueTarget) U128(v postcard.Uint128) error   { return t.put(v) }
func (t *ValueTarget) F32(v float32) error             { return t.put(v) }
func (t *ValueTarget) F64(v float64) error             { return t.put(v) }
func (t *ValueTarget) Char(v rune) error               { return t.put(postcard.Char(v)) }
func (t *ValueTarget) Str(v string) error              { return t.put(v) }
func (t *ValueTarget) Bytes(v []byte) error            { return t.put(slices.Clone(v)) }
func (t *ValueTarget) None() error                     { return t.put(nil) }
func (t *ValueTarget) Unit() error                     { return t.put(nil) }
func (t *ValueTarget) UnitStruct(name string) error    { return t.put(&UnitStruct{Name: name}) }
func (t *ValueTarget) Some() error                     { return t.push(valueFrame{kind: vfSome}) }
func (t *ValueTarget) NewtypeStruct(name string) error { return t.push(valueFrame{kind: vfNewtype, name: name}) }

func (t *ValueTarget) BeginTupleStruct(name string, n int) error {
	return t.push(valueFrame{kind: vfTupleStruct, name: name, elems: make([]any, 0, n)})
}

func (t *ValueTarget) BeginStruct(name string, fields []string) error {
	return t.push(valueFrame{kind: vfStruct, name: name, fields: make([]Field, 0, len(fields))})
}

func (t *ValueTarget) Field(name string) error {
	if len(t.stack) == 0 {
		return ErrUnbalanced
	}
	f := &t.stack[len(t.stack)-1]
	if (f.kind != vfStruct && f.kind != vfStructVariant) || f.hasField {
		return ErrUnbalanced
	}
	f.field, f.hasField = name, true
	return nil
}

func (t *ValueTarget) UnitVariant(enum string, index uint32, variant string) error {
	return t.put(&Variant{Enum: enum, Index: index, Name: variant, Kind: schema.DataUnit})
}

func (t *ValueTarget) NewtypeVariant(enum string, index uint32, variant string) error {
	return t.push(valueFrame{kind: vfNewtypeVariant, enum: enum, index: index, name: variant})
}

func (t *ValueTarget) BeginTupleVariant(enum string, index uint32, variant string, n int) error {
	return t.push(valueFrame{kind: vfTupleVariant, enum: enum, index: index, name: variant, elems: make([]any, 0, n)})
}

func (t *ValueTarget) BeginStructVariant(enum string, index uint32, variant string, fields []string) error {
	return t.push(valueFrame{kind: vfStructVariant, enum: enum, index: index, name: variant, fields: make([]Field, 0, len(fields))})
}

func (t *ValueTarget) BeginSeq(n int) error   { return t.push(valueFrame{kind: vfList, elems: make([]any, 0, min(n, 256))}) }
func (t *ValueTarget) BeginTuple(n int) error { return t.push(valueFrame{kind: vfList, elems: make([]any, 0, n)}) }
func (t *ValueTarget) BeginMap(n int) error   { return t.push(valueFrame{kind: vfMap, entries: make(Map, 0, min(n, 256))}) }

func (t *ValueTarget) End() error {
	if len(t.stack) == 0 {
		return ErrUnbalanced
	}
	f := t.stack[len(t.stack)-1]
	var v any
	switch f.kind {
	case vfList:
		v = f.elems
	case vfMap:
		if f.hasKey {
			return ErrUnbalanced
		}
		v = f.entries
	case vfStruct:
		v = &Struct{Name: f.name, Fields: f.fields}
	case vfTupleStruct:
		v = &TupleStruct{Name: f.name, Elems: f.elems}
	case vfTupleVariant:
		v = &Variant{Enum: f.enum, Index: f.index, Name: f.name, Kind: schema.DataTuple, Value: f.elems}
	case vfStructVariant:
		v = &Variant{Enum: f.enum, Index: f.index, Name: f.name, Kind: schema.DataStruct, Value: f.fields}
	default:
		return ErrUnbalanced
	}
	if f.hasField {
		return ErrUnbalanced
	}
	t.stack = t.stack[:len(t.stack)-1]
	return t.put(v)
}

// ToValue decodes one value shaped like s from b into plain Go values and
// returns it with the unread remainder of b.
func ToValue(s *schema.OwnedDataModelType, b []byte, opts Options) (any, []byte, error) {
	d := postcard.NewDeserializer(postcard.NewSliceSource(b))
	t := NewValueTarget()
	if err := Reserialize(s, d, t, opts); err != nil {
		return nil, nil, err
	}
	v, err := t.Value()
	if err != nil {
		return nil, nil, targetErr(err)
	}
	return v, b[d.Offset():], nil
}

// Schema takes an embedded schema as a *schema.OwnedDataModelType.
func (t *ValueTarget) Schema(s *schema.OwnedDataModelType) error { return t.put(s) }
