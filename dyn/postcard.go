package dyn

import (
	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

// PostcardTarget re-encodes values as postcard. Reserialized losslessly, the
// output is byte-identical to the input. Lossy input cannot be re-encoded
// faithfully since struct and variant shapes are gone.
type PostcardTarget struct {
	s *postcard.Serializer
}

// NewPostcardTarget returns a target writing through s.
func NewPostcardTarget(s *postcard.Serializer) *PostcardTarget {
	return &PostcardTarget{s: s}
}

func (t *PostcardTarget) Bool(v bool) error                  { return t.s.SerializeBool(v) }
func (t *PostcardTarget) I8(v int8) error                    { return t.s.SerializeI8(v) }
func (t *PostcardTarget) I16(v int16) error                  { return t.s.SerializeI16(v) }
func (t *PostcardTarget) I32(v int32) error                  { return t.s.SerializeI32(v) }
func (t *PostcardTarget) I64(v int64) error                  { return t.s.SerializeI64(v) }
func (t *PostcardTarget) I128(v postcard.Int128) error       { return t.s.SerializeI128(v) }
func (t *PostcardTarget) U8(v uint8) error                   { return t.s.SerializeU8(v) }
func (t *PostcardTarget) U16(v uint16) error                 { return t.s.SerializeU16(v) }
func (t *PostcardTarget) U32(v uint32) error                 { return t.s.SerializeU32(v) }
func (t *PostcardTarget) U64(v uint64) error                 { return t.s.SerializeU64(v) }
func (t *PostcardTarget) U128(v postcard.Uint128) error      { return t.s.SerializeU128(v) }
func (t *PostcardTarget) F32(v float32) error                { return t.s.SerializeF32(v) }
func (t *PostcardTarget) F64(v float64) error                { return t.s.SerializeF64(v) }
func (t *PostcardTarget) Char(v rune) error                  { return t.s.SerializeChar(v) }
func (t *PostcardTarget) Str(v string) error                 { return t.s.SerializeStr(v) }
func (t *PostcardTarget) Bytes(v []byte) error               { return t.s.SerializeBytes(v) }
func (t *PostcardTarget) None() error                        { return t.s.SerializeNone() }
func (t *PostcardTarget) Some() error                        { return t.s.SerializeSome() }
func (t *PostcardTarget) Unit() error                        { return nil }
func (t *PostcardTarget) UnitStruct(string) error            { return nil }
func (t *PostcardTarget) NewtypeStruct(string) error         { return nil }
func (t *PostcardTarget) BeginTupleStruct(string, int) error { return nil }
func (t *PostcardTarget) BeginStruct(string, []string) error { return nil }
func (t *PostcardTarget) Field(string) error                 { return nil }
func (t *PostcardTarget) BeginSeq(n int) error               { return t.s.SerializeSeqLen(n) }
func (t *PostcardTarget) BeginTuple(int) error               { return nil }
func (t *PostcardTarget) BeginMap(n int) error               { return t.s.SerializeMapLen(n) }
func (t *PostcardTarget) End() error                         { return nil }

func (t *PostcardTarget) UnitVariant(_ string, index uint32, _ string) error {
	return t.s.SerializeVariantIndex(index)
}

func (t *PostcardTarget) NewtypeVariant(_ string, index uint32, _ string) error {
	return t.s.SerializeVariantIndex(index)
}

func (t *PostcardTarget) BeginTupleVariant(_ string, index uint32, _ string, _ int) error {
	return t.s.SerializeVariantIndex(index)
}

func (t *PostcardTarget) BeginStructVariant(_ string, index uint32, _ string, _ []string) error {
	return t.s.SerializeVariantIndex(index)
}

func (t *PostcardTarget) Schema(s *schema.OwnedDataModelType) error {
	return s.MarshalPostcard(t.s)
}

// Transcode decodes one value shaped like s from b and encodes it again,
// returning the encoding and the unread remainder of b. It checks that b is
// well formed for s.
func Transcode(s *schema.OwnedDataModelType, b []byte) ([]byte, []byte, error) {
	d := postcard.NewDeserializer(postcard.NewSliceSource(b))
	f := postcard.NewBufferFlavor(nil)
	if err := ReserializeLossless(s, d, NewPostcardTarget(postcard.NewSerializer(f)), nil); err != nil {
		return nil, nil, err
	}
	return f.B, b[d.Offset():], nil
}
