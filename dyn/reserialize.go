package dyn

import (
	"maps"
	"slices"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

// Strategy selects how structs and enums reach the target.
type Strategy uint8

const (
	// Lossless presents structs and enum variants as such, names and
	// variant indexes included.
	Lossless Strategy = iota
	// Lossy presents structs as maps from field name to value, unit variants
	// as their name, and other variants as a one-entry map from name to
	// payload.
	Lossy
)

func (s Strategy) String() string {
	if s == Lossy {
		return "lossy"
	}
	return "lossless"
}

// Options configures a reserialization.
type Options struct {
	Strategy Strategy
	// Interner holds the names handed to the target. A fresh one is used
	// per call when nil.
	Interner *Interner
}

// Reserialize decodes one value shaped like s from d and replays it into t.
// Failures are *Error values tagged with the side that failed.
func Reserialize(s *schema.OwnedDataModelType, d *postcard.Deserializer, t Target, opts Options) error {
	r := reserializer{d: d, t: t, lossy: opts.Strategy == Lossy, names: opts.Interner}
	if r.names == nil {
		r.names = NewInterner()
	}
	return r.value(s)
}

// ReserializeLossless is Reserialize with the Lossless strategy.
func ReserializeLossless(s *schema.OwnedDataModelType, d *postcard.Deserializer, t Target, in *Interner) error {
	return Reserialize(s, d, t, Options{Strategy: Lossless, Interner: in})
}

// ReserializeLossy is Reserialize with the Lossy strategy.
func ReserializeLossy(s *schema.OwnedDataModelType, d *postcard.Deserializer, t Target) error {
	return Reserialize(s, d, t, Options{Strategy: Lossy})
}

// SchemaTarget is implemented by targets that take embedded schemas whole.
// Other targets receive the tagged form used by the schema interchange
// encodings.
type SchemaTarget interface {
	Schema(s *schema.OwnedDataModelType) error
}

type reserializer struct {
	d     *postcard.Deserializer
	t     Target
	lossy bool
	names *Interner
}

func (r *reserializer) value(s *schema.OwnedDataModelType) error {
	switch s.Kind {
	case schema.Bool:
		return emit(r.d.DeserializeBool, r.t.Bool)
	case schema.I8:
		return emit(r.d.DeserializeI8, r.t.I8)
	case schema.I16:
		return emit(r.d.DeserializeI16, r.t.I16)
	case schema.I32:
		return emit(r.d.DeserializeI32, r.t.I32)
	case schema.I64:
		return emit(r.d.DeserializeI64, r.t.I64)
	case schema.I128:
		return emit(r.d.DeserializeI128, r.t.I128)
	case schema.Isize:
		v, err := r.d.DeserializeIsize()
		if err != nil {
			return sourceErr(err)
		}
		return targetErr(r.t.I64(int64(v)))
	case schema.U8:
		return emit(r.d.DeserializeU8, r.t.U8)
	case schema.U16:
		return emit(r.d.DeserializeU16, r.t.U16)
	case schema.U32:
		return emit(r.d.DeserializeU32, r.t.U32)
	case schema.U64:
		return emit(r.d.DeserializeU64, r.t.U64)
	case schema.U128:
		return emit(r.d.DeserializeU128, r.t.U128)
	case schema.Usize:
		v, err := r.d.DeserializeUsize()
		if err != nil {
			return sourceErr(err)
		}
		return targetErr(r.t.U64(uint64(v)))
	case schema.F32:
		return emit(r.d.DeserializeF32, r.t.F32)
	case schema.F64:
		return emit(r.d.DeserializeF64, r.t.F64)
	case schema.Char:
		return emit(r.d.DeserializeChar, r.t.Char)
	case schema.String:
		return emit(r.d.DeserializeStr, r.t.Str)
	case schema.ByteArray:
		return emit(r.d.DeserializeBytes, r.t.Bytes)
	case schema.Unit:
		return targetErr(r.t.Unit())
	case schema.UnitStruct:
		if r.lossy {
			return targetErr(r.t.Unit())
		}
		return targetErr(r.t.UnitStruct(""))
	case schema.Option:
		some, err := r.d.DeserializeOption()
		if err != nil {
			return sourceErr(err)
		}
		if !some {
			return targetErr(r.t.None())
		}
		if err := r.t.Some(); err != nil {
			return targetErr(err)
		}
		return r.value(s.Elem)
	case schema.Seq:
		n, err := r.d.DeserializeSeqLen()
		if err != nil {
			return sourceErr(err)
		}
		if s.Elem.ZeroWidth() {
			if err := r.d.CheckZeroWidthLen(n); err != nil {
				return sourceErr(err)
			}
		}
		if err := r.t.BeginSeq(n); err != nil {
			return targetErr(err)
		}
		for range n {
			if err := r.value(s.Elem); err != nil {
				return err
			}
		}
		return targetErr(r.t.End())
	case schema.Tuple:
		return r.tuple(s.Elems)
	case schema.Map:
		n, err := r.d.DeserializeMapLen()
		if err != nil {
			return sourceErr(err)
		}
		if s.Key.ZeroWidth() && s.Val.ZeroWidth() {
			if err := r.d.CheckZeroWidthLen(n); err != nil {
				return sourceErr(err)
			}
		}
		if err := r.t.BeginMap(n); err != nil {
			return targetErr(err)
		}
		for range n {
			if err := r.value(s.Key); err != nil {
				return err
			}
			if err := r.value(s.Val); err != nil {
				return err
			}
		}
		return targetErr(r.t.End())
	case schema.Struct:
		return r.structure(s.Name, &s.Data)
	case schema.Enum:
		return r.enum(s)
	case schema.Schema:
		var inner schema.OwnedDataModelType
		if err := inner.UnmarshalPostcard(r.d); err != nil {
			return sourceErr(err)
		}
		if st, ok := r.t.(SchemaTarget); ok {
			return targetErr(st.Schema(&inner))
		}
		return targetErr(emitTagged(r.t, inner.Tagged()))
	}
	return sourceErr(postcard.Custom("unknown schema kind %s", s.Kind))
}

func emit[T any](read func() (T, error), write func(T) error) error {
	v, err := read()
	if err != nil {
		return sourceErr(err)
	}
	return targetErr(write(v))
}

func (r *reserializer) tuple(elems []schema.OwnedDataModelType) error {
	if err := r.t.BeginTuple(len(elems)); err != nil {
		return targetErr(err)
	}
	if err := r.elems(elems); err != nil {
		return err
	}
	return targetErr(r.t.End())
}

func (r *reserializer) elems(elems []schema.OwnedDataModelType) error {
	for i := range elems {
		if err := r.value(&elems[i]); err != nil {
			return err
		}
	}
	return nil
}

// fields replays struct fields, either as named fields or as map entries.
func (r *reserializer) fields(fields []schema.OwnedNamedField) error {
	for i := range fields {
		name := r.names.String(fields[i].Name)
		var err error
		if r.lossy {
			err = r.t.Str(name)
		} else {
			err = r.t.Field(name)
		}
		if err != nil {
			return targetErr(err)
		}
		if err := r.value(&fields[i].Type); err != nil {
			return err
		}
	}
	return nil
}

func (r *reserializer) fieldNames(fields []schema.OwnedNamedField) []string {
	names := make([]string, len(fields))
	for i := range fields {
		names[i] = fields[i].Name
	}
	return r.names.Strings(names)
}

func (r *reserializer) structure(name string, data *schema.OwnedData) error {
	name = r.names.String(name)
	switch data.Kind {
	case schema.DataUnit:
		if r.lossy {
			return targetErr(r.t.Unit())
		}
		return targetErr(r.t.UnitStruct(name))
	case schema.DataNewtype:
		if !r.lossy {
			if err := r.t.NewtypeStruct(name); err != nil {
				return targetErr(err)
			}
		}
		return r.value(data.Newtype)
	case schema.DataTuple:
		if r.lossy {
			return r.tuple(data.Tuple)
		}
		if err := r.t.BeginTupleStruct(name, len(data.Tuple)); err != nil {
			return targetErr(err)
		}
	case schema.DataStruct:
		var err error
		if r.lossy {
			err = r.t.BeginMap(len(data.Fields))
		} else {
			err = r.t.BeginStruct(name, r.fieldNames(data.Fields))
		}
		if err != nil {
			return targetErr(err)
		}
	}
	if err := r.payload(data); err != nil {
		return err
	}
	return targetErr(r.t.End())
}

func (r *reserializer) payload(data *schema.OwnedData) error {
	if data.Kind == schema.DataTuple {
		return r.elems(data.Tuple)
	}
	return r.fields(data.Fields)
}

func (r *reserializer) enum(s *schema.OwnedDataModelType) error {
	idx, err := r.d.DeserializeVariantIndex()
	if err != nil {
		return sourceErr(err)
	}
	if int(idx) >= len(s.Variants) {
		return sourceErr(&postcard.UnknownVariantError{Enum: s.Name, Index: idx, Count: len(s.Variants)})
	}
	v := &s.Variants[idx]
	enum, name := r.names.String(s.Name), r.names.String(v.Name)

	if r.lossy {
		if v.Data.Kind == schema.DataUnit {
			return targetErr(r.t.Str(name))
		}
		if err := r.t.BeginMap(1); err != nil {
			return targetErr(err)
		}
		if err := r.t.Str(name); err != nil {
			return targetErr(err)
		}
		switch v.Data.Kind {
		case schema.DataNewtype:
			if err := r.value(v.Data.Newtype); err != nil {
				return err
			}
		case schema.DataTuple:
			if err := r.tuple(v.Data.Tuple); err != nil {
				return err
			}
		case schema.DataStruct:
			if err := r.t.BeginMap(len(v.Data.Fields)); err != nil {
				return targetErr(err)
			}
			if err := r.fields(v.Data.Fields); err != nil {
				return err
			}
			if err := r.t.End(); err != nil {
				return targetErr(err)
			}
		}
		return targetErr(r.t.End())
	}

	switch v.Data.Kind {
	case schema.DataUnit:
		return targetErr(r.t.UnitVariant(enum, idx, name))
	case schema.DataNewtype:
		if err := r.t.NewtypeVariant(enum, idx, name); err != nil {
			return targetErr(err)
		}
		return r.value(v.Data.Newtype)
	case schema.DataTuple:
		err = r.t.BeginTupleVariant(enum, idx, name, len(v.Data.Tuple))
	case schema.DataStruct:
		err = r.t.BeginStructVariant(enum, idx, name, r.fieldNames(v.Data.Fields))
	}
	if err != nil {
		return targetErr(err)
	}
	if err := r.payload(&v.Data); err != nil {
		return err
	}
	return targetErr(r.t.End())
}

// emitTagged replays a tagged schema form. Map keys are sorted so output is
// stable.
func emitTagged(t Target, v any) error {
	switch v := v.(type) {
	case string:
		return t.Str(v)
	case []any:
		if err := t.BeginSeq(len(v)); err != nil {
			return err
		}
		for _, e := range v {
			if err := emitTagged(t, e); err != nil {
				return err
			}
		}
		return t.End()
	case map[string]any:
		if err := t.BeginMap(len(v)); err != nil {
			return err
		}
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if err := t.Str(k); err != nil {
				return err
			}
			if err := emitTagged(t, v[k]); err != nil {
				return err
			}
		}
		return t.End()
	}
	return postcard.Custom("unexpected tagged schema value %T", v)
}
