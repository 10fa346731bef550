package schema

import (
	"strconv"
	"strings"
)

// IsPrimitive reports whether o prints without referring to a named type.
func (o *OwnedDataModelType) IsPrimitive() bool {
	switch o.Kind {
	case Option:
		return o.Elem.IsPrimitive()
	case Map:
		return o.Key.IsPrimitive() && o.Val.IsPrimitive()
	case Seq, Tuple, Struct, Enum:
		return false
	}
	return true
}

// String renders o as top-level pseudocode.
func (o *OwnedDataModelType) String() string { return o.Pseudocode(true) }

// Pseudocode renders o in a Rust-like notation. At top level, structs and
// enums print their full definition; nested, they print only their name.
func (o *OwnedDataModelType) Pseudocode(topLevel bool) string {
	var b strings.Builder
	o.format(&b, topLevel)
	return b.String()
}

var primNames = map[Kind]string{
	Bool: "bool", I8: "i8", U8: "u8", I16: "i16", I32: "i32", I64: "i64", I128: "i128",
	U16: "u16", U32: "u32", U64: "u64", U128: "u128", Usize: "usize", Isize: "isize",
	F32: "f32", F64: "f64", Char: "char", String: "String", ByteArray: "[u8]",
	Unit: "()", UnitStruct: "()", Schema: "Schema",
}

func (o *OwnedDataModelType) format(b *strings.Builder, topLevel bool) {
	if name, ok := primNames[o.Kind]; ok {
		b.WriteString(name)
		return
	}
	switch o.Kind {
	case Option:
		b.WriteString("Option<")
		o.Elem.format(b, false)
		b.WriteByte('>')
	case Seq:
		b.WriteByte('[')
		o.Elem.format(b, false)
		b.WriteByte(']')
	case Tuple:
		formatTuple(b, o.Elems)
	case Map:
		b.WriteString("Map<")
		o.Key.format(b, false)
		b.WriteString(", ")
		o.Val.format(b, false)
		b.WriteByte('>')
	case Struct:
		if !topLevel {
			b.WriteString(o.Name)
			return
		}
		b.WriteString("struct ")
		b.WriteString(o.Name)
		o.Data.format(b)
	case Enum:
		if !topLevel {
			b.WriteString(o.Name)
			return
		}
		b.WriteString("enum ")
		b.WriteString(o.Name)
		b.WriteString(" { ")
		for i := range o.Variants {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Variants[i].Name)
			o.Variants[i].Data.format(b)
		}
		b.WriteString(" }")
	default:
		b.WriteString(o.Kind.String())
	}
}

// formatTuple prints homogeneous tuples as arrays.
func formatTuple(b *strings.Builder, elems []OwnedDataModelType) {
	if len(elems) == 0 {
		b.WriteString("()")
		return
	}
	same := true
	for i := 1; i < len(elems) && same; i++ {
		same = elems[0].Equal(&elems[i])
	}
	if same {
		b.WriteByte('[')
		elems[0].format(b, false)
		b.WriteString("; ")
		b.WriteString(strconv.Itoa(len(elems)))
		b.WriteByte(']')
		return
	}
	formatList(b, elems)
}

func formatList(b *strings.Builder, elems []OwnedDataModelType) {
	b.WriteByte('(')
	for i := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		elems[i].format(b, false)
	}
	b.WriteByte(')')
}

func (d *OwnedData) format(b *strings.Builder) {
	switch d.Kind {
	case DataNewtype:
		b.WriteByte('(')
		d.Newtype.format(b, false)
		b.WriteByte(')')
	case DataTuple:
		formatList(b, d.Tuple)
	case DataStruct:
		b.WriteString(" { ")
		for i := range d.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Fields[i].Name)
			b.WriteString(": ")
			d.Fields[i].Type.format(b, false)
		}
		b.WriteString(" }")
	}
}

// AllUsedTypes returns o and every type reachable from it, each once, in
// depth-first discovery order.
func (o *OwnedDataModelType) AllUsedTypes() []*OwnedDataModelType {
	seen := make(map[string]struct{})
	var out []*OwnedDataModelType
	o.discover(seen, &out)
	return out
}

func (o *OwnedDataModelType) discover(seen map[string]struct{}, out *[]*OwnedDataModelType) {
	key, err := o.Canonical()
	if err != nil {
		return
	}
	if _, ok := seen[string(key)]; ok {
		return
	}
	seen[string(key)] = struct{}{}
	*out = append(*out, o)

	switch o.Kind {
	case Option, Seq:
		o.Elem.discover(seen, out)
	case Tuple:
		for i := range o.Elems {
			o.Elems[i].discover(seen, out)
		}
	case Map:
		o.Key.discover(seen, out)
		o.Val.discover(seen, out)
	case Struct:
		o.Data.discover(seen, out)
	case Enum:
		for i := range o.Variants {
			o.Variants[i].Data.discover(seen, out)
		}
	}
}

func (d *OwnedData) discover(seen map[string]struct{}, out *[]*OwnedDataModelType) {
	switch d.Kind {
	case DataNewtype:
		d.Newtype.discover(seen, out)
	case DataTuple:
		for i := range d.Tuple {
			d.Tuple[i].discover(seen, out)
		}
	case DataStruct:
		for i := range d.Fields {
			d.Fields[i].Type.discover(seen, out)
		}
	}
}
