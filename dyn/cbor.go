package dyn

import (
	"bytes"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

var cborEnc, _ = cbor.EncOptions{
	ShortestFloat: cbor.ShortestFloat16,
	NaNConvert:    cbor.NaNConvert7e00,
	InfConvert:    cbor.InfConvertFloat16,
	IndefLength:   cbor.IndefLengthAllowed,
}.EncMode()

type cborFrame struct {
	// wrap is set for a newtype variant, closed after one value.
	wrap bool
	// closeOuter is set when a variant opened a map around the container.
	closeOuter bool
}

// CBORTarget streams values as CBOR. Containers are written with indefinite
// lengths. Structs become maps keyed by field name, unit and none become
// null, and 128-bit integers use the shortest of integer or bignum. Variants
// follow the JSON layout: the name for unit variants, a one-entry map from
// name to payload for the rest.
type CBORTarget struct {
	enc   *cbor.Encoder
	stack []cborFrame
}

// NewCBORTarget returns a target writing through enc.
func NewCBORTarget(enc *cbor.Encoder) *CBORTarget {
	return &CBORTarget{enc: enc}
}

func (t *CBORTarget) encode(v any) error {
	if err := t.enc.Encode(v); err != nil {
		return err
	}
	return t.after()
}

func (t *CBORTarget) after() error {
	for len(t.stack) > 0 && t.stack[len(t.stack)-1].wrap {
		t.stack = t.stack[:len(t.stack)-1]
		if err := t.enc.EndIndefinite(); err != nil {
			return err
		}
	}
	return nil
}

func (t *CBORTarget) Bool(v bool) error             { return t.encode(v) }
func (t *CBORTarget) I8(v int8) error               { return t.encode(v) }
func (t *CBORTarget) I16(v int16) error             { return t.encode(v) }
func (t *CBORTarget) I32(v int32) error             { return t.encode(v) }
func (t *CBORTarget) I64(v int64) error             { return t.encode(v) }
func (t *CBORTarget) I128(v postcard.Int128) error  { return t.encode(v.Big()) }
func (t *CBORTarget) U8(v uint8) error              { return t.encode(v) }
func (t *CBORTarget) U16(v uint16) error            { return t.encode(v) }
func (t *CBORTarget) U32(v uint32) error            { return t.encode(v) }
func (t *CBORTarget) U64(v uint64) error            { return t.encode(v) }
func (t *CBORTarget) U128(v postcard.Uint128) error { return t.encode(v.Big()) }
func (t *CBORTarget) F32(v float32) error           { return t.encode(v) }
func (t *CBORTarget) F64(v float64) error           { return t.encode(v) }
func (t *CBORTarget) Char(v rune) error             { return t.encode(string(v)) }
func (t *CBORTarget) Str(v string) error            { return t.encode(v) }
func (t *CBORTarget) Bytes(v []byte) error          { return t.encode(v) }
func (t *CBORTarget) None() error                   { return t.encode(nil) }
func (t *CBORTarget) Unit() error                   { return t.encode(nil) }
func (t *CBORTarget) UnitStruct(string) error       { return t.encode(nil) }
func (t *CBORTarget) Some() error                   { return nil }
func (t *CBORTarget) NewtypeStruct(string) error    { return nil }
func (t *CBORTarget) Field(name string) error       { return t.enc.Encode(name) }

func (t *CBORTarget) array(closeOuter bool) error {
	t.stack = append(t.stack, cborFrame{closeOuter: closeOuter})
	return t.enc.StartIndefiniteArray()
}

func (t *CBORTarget) object(closeOuter bool) error {
	t.stack = append(t.stack, cborFrame{closeOuter: closeOuter})
	return t.enc.StartIndefiniteMap()
}

func (t *CBORTarget) BeginSeq(int) error                 { return t.array(false) }
func (t *CBORTarget) BeginTuple(int) error               { return t.array(false) }
func (t *CBORTarget) BeginTupleStruct(string, int) error { return t.array(false) }
func (t *CBORTarget) BeginStruct(string, []string) error { return t.object(false) }
func (t *CBORTarget) BeginMap(int) error                 { return t.object(false) }

func (t *CBORTarget) variant(name string) error {
	if err := t.enc.StartIndefiniteMap(); err != nil {
		return err
	}
	return t.enc.Encode(name)
}

func (t *CBORTarget) UnitVariant(_ string, _ uint32, variant string) error {
	return t.encode(variant)
}

func (t *CBORTarget) NewtypeVariant(_ string, _ uint32, variant string) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	t.stack = append(t.stack, cborFrame{wrap: true})
	return nil
}

func (t *CBORTarget) BeginTupleVariant(_ string, _ uint32, variant string, _ int) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	return t.array(true)
}

func (t *CBORTarget) BeginStructVariant(_ string, _ uint32, variant string, _ []string) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	return t.object(true)
}

func (t *CBORTarget) End() error {
	if len(t.stack) == 0 || t.stack[len(t.stack)-1].wrap {
		return ErrUnbalanced
	}
	f := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	if err := t.enc.EndIndefinite(); err != nil {
		return err
	}
	if f.closeOuter {
		if err := t.enc.EndIndefinite(); err != nil {
			return err
		}
	}
	return t.after()
}

// ToCBOR decodes one value shaped like s from b and returns it as CBOR.
func ToCBOR(s *schema.OwnedDataModelType, b []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	d := postcard.NewDeserializer(postcard.NewSliceSource(b))
	if err := Reserialize(s, d, NewCBORTarget(cborEnc.NewEncoder(&buf)), opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromCBOR encodes a CBOR item as a value shaped like s.
func FromCBOR(s *schema.OwnedDataModelType, doc []byte) ([]byte, error) {
	var v any
	if err := cbor.Unmarshal(doc, &v); err != nil {
		return nil, err
	}
	return EncodeToBytes(s, v)
}

// NewCBORWriter returns a target streaming CBOR to w.
func NewCBORWriter(w io.Writer) *CBORTarget {
	return NewCBORTarget(cborEnc.NewEncoder(w))
}
