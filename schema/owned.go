package schema

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/oy3o/postcard"
)

// ErrTooDeep is returned when decoding a schema nested deeper than MaxDepth.
var ErrTooDeep = errors.New("schema: nesting too deep")

// MaxDepth bounds the nesting accepted when decoding an owned schema.
const MaxDepth = 128

// OwnedDataModelType is the heap-backed mirror of DataModelType. Its subtrees
// are never shared, so it may be mutated, stored or sent freely.
type OwnedDataModelType struct {
	Kind     Kind
	Elem     *OwnedDataModelType
	Elems    []OwnedDataModelType
	Key, Val *OwnedDataModelType
	Name     string
	Data     OwnedData
	Variants []OwnedVariant
}

type OwnedData struct {
	Kind    DataKind
	Newtype *OwnedDataModelType
	Tuple   []OwnedDataModelType
	Fields  []OwnedNamedField
}

type OwnedNamedField struct {
	Name string
	Type OwnedDataModelType
}

type OwnedVariant struct {
	Name string
	Data OwnedData
}

// ToOwned deep-copies t.
func (t *DataModelType) ToOwned() *OwnedDataModelType {
	o := new(OwnedDataModelType)
	t.toOwned(o)
	return o
}

func (t *DataModelType) toOwned(o *OwnedDataModelType) {
	o.Kind = t.Kind
	switch t.Kind {
	case Option, Seq:
		o.Elem = t.Elem.ToOwned()
	case Tuple:
		o.Elems = ownedList(t.Elems)
	case Map:
		o.Key, o.Val = t.Key.ToOwned(), t.Val.ToOwned()
	case Struct:
		o.Name = t.Name
		o.Data = t.Data.toOwned()
	case Enum:
		o.Name = t.Name
		o.Variants = make([]OwnedVariant, len(t.Variants))
		for i, v := range t.Variants {
			o.Variants[i] = OwnedVariant{Name: v.Name, Data: v.Data.toOwned()}
		}
	}
}

func ownedList(ts []*DataModelType) []OwnedDataModelType {
	if len(ts) == 0 {
		return nil
	}
	out := make([]OwnedDataModelType, len(ts))
	for i, t := range ts {
		t.toOwned(&out[i])
	}
	return out
}

func (d *Data) toOwned() OwnedData {
	od := OwnedData{Kind: d.Kind}
	switch d.Kind {
	case DataNewtype:
		od.Newtype = d.Newtype.ToOwned()
	case DataTuple:
		od.Tuple = ownedList(d.Tuple)
	case DataStruct:
		od.Fields = make([]OwnedNamedField, len(d.Fields))
		for i, f := range d.Fields {
			od.Fields[i].Name = f.Name
			f.Type.toOwned(&od.Fields[i].Type)
		}
	}
	return od
}

// Borrow converts o back into an immutable tree. Leaf kinds share the
// package-level nodes.
func (o *OwnedDataModelType) Borrow() *DataModelType {
	if o.Kind.IsLeaf() && o.Kind < kindCount {
		return prims[o.Kind]
	}
	t := &DataModelType{Kind: o.Kind, Name: o.Name}
	switch o.Kind {
	case Option, Seq:
		t.Elem = o.Elem.Borrow()
	case Tuple:
		t.Elems = borrowList(o.Elems)
	case Map:
		t.Key, t.Val = o.Key.Borrow(), o.Val.Borrow()
	case Struct:
		t.Data = o.Data.borrow()
	case Enum:
		t.Variants = make([]Variant, len(o.Variants))
		for i := range o.Variants {
			t.Variants[i] = Variant{Name: o.Variants[i].Name, Data: o.Variants[i].Data.borrow()}
		}
	}
	return t
}

func borrowList(os []OwnedDataModelType) []*DataModelType {
	if len(os) == 0 {
		return nil
	}
	out := make([]*DataModelType, len(os))
	for i := range os {
		out[i] = os[i].Borrow()
	}
	return out
}

func (d *OwnedData) borrow() Data {
	bd := Data{Kind: d.Kind}
	switch d.Kind {
	case DataNewtype:
		bd.Newtype = d.Newtype.Borrow()
	case DataTuple:
		bd.Tuple = borrowList(d.Tuple)
	case DataStruct:
		bd.Fields = make([]NamedField, len(d.Fields))
		for i := range d.Fields {
			bd.Fields[i] = NamedField{Name: d.Fields[i].Name, Type: d.Fields[i].Type.Borrow()}
		}
	}
	return bd
}

// Clone returns a deep copy of o.
func (o *OwnedDataModelType) Clone() *OwnedDataModelType {
	c := *o
	switch o.Kind {
	case Option, Seq:
		c.Elem = o.Elem.Clone()
	case Tuple:
		c.Elems = cloneList(o.Elems)
	case Map:
		c.Key, c.Val = o.Key.Clone(), o.Val.Clone()
	case Struct:
		c.Data = o.Data.clone()
	case Enum:
		c.Variants = make([]OwnedVariant, len(o.Variants))
		for i, v := range o.Variants {
			c.Variants[i] = OwnedVariant{Name: v.Name, Data: v.Data.clone()}
		}
	}
	return &c
}

func cloneList(os []OwnedDataModelType) []OwnedDataModelType {
	if os == nil {
		return nil
	}
	out := make([]OwnedDataModelType, len(os))
	for i := range os {
		out[i] = *os[i].Clone()
	}
	return out
}

func (d *OwnedData) clone() OwnedData {
	c := OwnedData{Kind: d.Kind}
	switch d.Kind {
	case DataNewtype:
		c.Newtype = d.Newtype.Clone()
	case DataTuple:
		c.Tuple = cloneList(d.Tuple)
	case DataStruct:
		c.Fields = make([]OwnedNamedField, len(d.Fields))
		for i, f := range d.Fields {
			c.Fields[i] = OwnedNamedField{Name: f.Name, Type: *f.Type.Clone()}
		}
	}
	return c
}

// Equal reports whether o and other describe the same shape.
func (o *OwnedDataModelType) Equal(other *OwnedDataModelType) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil || o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case Option, Seq:
		return o.Elem.Equal(other.Elem)
	case Tuple:
		return equalOwnedList(o.Elems, other.Elems)
	case Map:
		return o.Key.Equal(other.Key) && o.Val.Equal(other.Val)
	case Struct:
		return o.Name == other.Name && o.Data.equal(&other.Data)
	case Enum:
		if o.Name != other.Name || len(o.Variants) != len(other.Variants) {
			return false
		}
		for i := range o.Variants {
			if o.Variants[i].Name != other.Variants[i].Name || !o.Variants[i].Data.equal(&other.Variants[i].Data) {
				return false
			}
		}
	}
	return true
}

func equalOwnedList(a, b []OwnedDataModelType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

func (d *OwnedData) equal(other *OwnedData) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case DataNewtype:
		return d.Newtype.Equal(other.Newtype)
	case DataTuple:
		return equalOwnedList(d.Tuple, other.Tuple)
	case DataStruct:
		if len(d.Fields) != len(other.Fields) {
			return false
		}
		for i := range d.Fields {
			if d.Fields[i].Name != other.Fields[i].Name || !d.Fields[i].Type.Equal(&other.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// Canonical returns the postcard encoding of o. Equal schemas have equal
// canonical encodings.
func (o *OwnedDataModelType) Canonical() ([]byte, error) {
	return postcard.ToBytes(*o)
}

type digestSink struct{ d *xxhash.Digest }

func (s digestSink) TryPush(c byte) error {
	_, err := s.d.Write([]byte{c})
	return err
}

func (s digestSink) TryExtend(p []byte) error {
	_, err := s.d.Write(p)
	return err
}

// Hash is a 64-bit digest of the canonical encoding, suitable for map keys
// and deduplication.
func (o *OwnedDataModelType) Hash() uint64 {
	d := xxhash.New()
	_ = o.MarshalPostcard(postcard.NewSerializer(digestSink{d}))
	return d.Sum64()
}

// MarshalPostcard encodes o as a tagged union, kind first.
func (o *OwnedDataModelType) MarshalPostcard(s *postcard.Serializer) error {
	if o.Kind >= kindCount {
		return fmt.Errorf("%w: %s", postcard.ErrUnsupported, o.Kind)
	}
	if err := s.SerializeVariantIndex(uint32(o.Kind)); err != nil {
		return err
	}
	switch o.Kind {
	case Option, Seq:
		return o.Elem.MarshalPostcard(s)
	case Tuple:
		return marshalList(s, o.Elems)
	case Map:
		if err := o.Key.MarshalPostcard(s); err != nil {
			return err
		}
		return o.Val.MarshalPostcard(s)
	case Struct:
		if err := s.SerializeStr(o.Name); err != nil {
			return err
		}
		return o.Data.marshal(s)
	case Enum:
		if err := s.SerializeStr(o.Name); err != nil {
			return err
		}
		if err := s.SerializeSeqLen(len(o.Variants)); err != nil {
			return err
		}
		for i := range o.Variants {
			if err := s.SerializeStr(o.Variants[i].Name); err != nil {
				return err
			}
			if err := o.Variants[i].Data.marshal(s); err != nil {
				return err
			}
		}
	}
	return nil
}

func marshalList(s *postcard.Serializer, ts []OwnedDataModelType) error {
	if err := s.SerializeSeqLen(len(ts)); err != nil {
		return err
	}
	for i := range ts {
		if err := ts[i].MarshalPostcard(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *OwnedData) marshal(s *postcard.Serializer) error {
	if err := s.SerializeVariantIndex(uint32(d.Kind)); err != nil {
		return err
	}
	switch d.Kind {
	case DataNewtype:
		return d.Newtype.MarshalPostcard(s)
	case DataTuple:
		return marshalList(s, d.Tuple)
	case DataStruct:
		if err := s.SerializeSeqLen(len(d.Fields)); err != nil {
			return err
		}
		for i := range d.Fields {
			if err := s.SerializeStr(d.Fields[i].Name); err != nil {
				return err
			}
			if err := d.Fields[i].Type.MarshalPostcard(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnmarshalPostcard decodes o, rejecting nesting deeper than MaxDepth.
func (o *OwnedDataModelType) UnmarshalPostcard(d *postcard.Deserializer) error {
	return o.unmarshal(d, 0)
}

func (o *OwnedDataModelType) unmarshal(d *postcard.Deserializer, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	idx, err := d.DeserializeVariantIndex()
	if err != nil {
		return err
	}
	if idx >= uint32(kindCount) {
		return &postcard.UnknownVariantError{Enum: "DataModelType", Index: idx, Count: int(kindCount)}
	}
	*o = OwnedDataModelType{Kind: Kind(idx)}
	switch o.Kind {
	case Option, Seq:
		o.Elem = new(OwnedDataModelType)
		return o.Elem.unmarshal(d, depth+1)
	case Tuple:
		o.Elems, err = unmarshalList(d, depth+1)
		return err
	case Map:
		o.Key, o.Val = new(OwnedDataModelType), new(OwnedDataModelType)
		if err := o.Key.unmarshal(d, depth+1); err != nil {
			return err
		}
		return o.Val.unmarshal(d, depth+1)
	case Struct:
		if o.Name, err = d.DeserializeStr(); err != nil {
			return err
		}
		return o.Data.unmarshal(d, depth+1)
	case Enum:
		if o.Name, err = d.DeserializeStr(); err != nil {
			return err
		}
		n, err := d.DeserializeSeqLen()
		if err != nil {
			return err
		}
		if n > 0 {
			o.Variants = make([]OwnedVariant, 0, min(n, 256))
		}
		for range n {
			var v OwnedVariant
			if v.Name, err = d.DeserializeStr(); err != nil {
				return err
			}
			if err := v.Data.unmarshal(d, depth+1); err != nil {
				return err
			}
			o.Variants = append(o.Variants, v)
		}
	}
	return nil
}

func unmarshalList(d *postcard.Deserializer, depth int) ([]OwnedDataModelType, error) {
	n, err := d.DeserializeSeqLen()
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]OwnedDataModelType, 0, min(n, 256))
	for range n {
		var t OwnedDataModelType
		if err := t.unmarshal(d, depth); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (od *OwnedData) unmarshal(d *postcard.Deserializer, depth int) error {
	idx, err := d.DeserializeVariantIndex()
	if err != nil {
		return err
	}
	if idx >= uint32(dataKindCount) {
		return &postcard.UnknownVariantError{Enum: "Data", Index: idx, Count: int(dataKindCount)}
	}
	*od = OwnedData{Kind: DataKind(idx)}
	switch od.Kind {
	case DataNewtype:
		od.Newtype = new(OwnedDataModelType)
		return od.Newtype.unmarshal(d, depth)
	case DataTuple:
		od.Tuple, err = unmarshalList(d, depth)
		return err
	case DataStruct:
		n, err := d.DeserializeSeqLen()
		if err != nil {
			return err
		}
		if n > 0 {
			od.Fields = make([]OwnedNamedField, 0, min(n, 256))
		}
		for range n {
			var f OwnedNamedField
			if f.Name, err = d.DeserializeStr(); err != nil {
				return err
			}
			if err := f.Type.unmarshal(d, depth); err != nil {
				return err
			}
			od.Fields = append(od.Fields, f)
		}
	}
	return nil
}
