package dyn

import (
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonFrameKind uint8

const (
	jfArray jsonFrameKind = iota
	jfObject
	jfMap
	jfVariant
)

type jsonFrame struct {
	kind jsonFrameKind
	n    int
	// wantKey is set while a map waits for its next key.
	wantKey bool
	// closeObject is set when a variant opened an extra object around the
	// container.
	closeObject bool
}

// JSONTarget writes values as JSON to a jsoniter stream.
//
// Structs become objects, sequences, tuples and tuple structs become arrays,
// and unit, none and unit structs become null. Unit variants are written as
// their name; other variants as a one-key object from name to payload. Map
// keys must be strings, integers, bools, chars or unit variants. Non-finite
// floats are written as null.
type JSONTarget struct {
	s     *jsoniter.Stream
	stack []jsonFrame
}

// NewJSONTarget returns a target writing to s.
func NewJSONTarget(s *jsoniter.Stream) *JSONTarget {
	return &JSONTarget{s: s}
}

func (t *JSONTarget) top() *jsonFrame {
	if len(t.stack) == 0 {
		return nil
	}
	return &t.stack[len(t.stack)-1]
}

func (t *JSONTarget) wantKey() bool {
	f := t.top()
	return f != nil && f.kind == jfMap && f.wantKey
}

// before places the separator ahead of a value.
func (t *JSONTarget) before() error {
	if t.wantKey() {
		return ErrKeyType
	}
	if f := t.top(); f != nil && f.kind == jfArray {
		if f.n > 0 {
			t.s.WriteMore()
		}
		f.n++
	}
	return nil
}

// after marks a value complete and closes finished newtype variants.
func (t *JSONTarget) after() error {
	for {
		f := t.top()
		if f == nil {
			break
		}
		if f.kind == jfMap {
			f.wantKey = true
			break
		}
		if f.kind != jfVariant {
			break
		}
		t.s.WriteObjectEnd()
		t.stack = t.stack[:len(t.stack)-1]
	}
	return t.s.Error
}

func (t *JSONTarget) leaf(key string, keyOK bool, write func()) error {
	if t.wantKey() {
		if !keyOK {
			return ErrKeyType
		}
		f := t.top()
		if f.n > 0 {
			t.s.WriteMore()
		}
		f.n++
		f.wantKey = false
		t.s.WriteObjectField(key)
		return t.s.Error
	}
	if err := t.before(); err != nil {
		return err
	}
	write()
	return t.after()
}

func (t *JSONTarget) open(kind jsonFrameKind, closeObject bool) {
	if kind == jfArray {
		t.s.WriteArrayStart()
	} else {
		t.s.WriteObjectStart()
	}
	t.stack = append(t.stack, jsonFrame{kind: kind, wantKey: kind == jfMap, closeObject: closeObject})
}

// variant opens the one-key object naming a variant.
func (t *JSONTarget) variant(name string) error {
	if err := t.before(); err != nil {
		return err
	}
	t.s.WriteObjectStart()
	t.s.WriteObjectField(name)
	return nil
}

func (t *JSONTarget) Bool(v bool) error {
	return t.leaf(strconv.FormatBool(v), true, func() { t.s.WriteBool(v) })
}

func (t *JSONTarget) I8(v int8) error    { return t.I64(int64(v)) }
func (t *JSONTarget) I16(v int16) error  { return t.I64(int64(v)) }
func (t *JSONTarget) I32(v int32) error  { return t.I64(int64(v)) }
func (t *JSONTarget) U8(v uint8) error   { return t.U64(uint64(v)) }
func (t *JSONTarget) U16(v uint16) error { return t.U64(uint64(v)) }
func (t *JSONTarget) U32(v uint32) error { return t.U64(uint64(v)) }

func (t *JSONTarget) I64(v int64) error {
	return t.leaf(strconv.FormatInt(v, 10), true, func() { t.s.WriteInt64(v) })
}

func (t *JSONTarget) U64(v uint64) error {
	return t.leaf(strconv.FormatUint(v, 10), true, func() { t.s.WriteUint64(v) })
}

func (t *JSONTarget) I128(v postcard.Int128) error {
	s := v.String()
	return t.leaf(s, true, func() { t.s.WriteRaw(s) })
}

func (t *JSONTarget) U128(v postcard.Uint128) error {
	s := v.String()
	return t.leaf(s, true, func() { t.s.WriteRaw(s) })
}

func (t *JSONTarget) F32(v float32) error {
	return t.leaf("", false, func() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.s.WriteNil()
			return
		}
		t.s.WriteFloat32(v)
	})
}

func (t *JSONTarget) F64(v float64) error {
	return t.leaf("", false, func() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.s.WriteNil()
			return
		}
		t.s.WriteFloat64(v)
	})
}

func (t *JSONTarget) Char(v rune) error {
	s := string(v)
	return t.leaf(s, true, func() { t.s.WriteString(s) })
}

func (t *JSONTarget) Str(v string) error {
	return t.leaf(v, true, func() { t.s.WriteString(v) })
}

func (t *JSONTarget) Bytes(v []byte) error {
	return t.leaf("", false, func() {
		t.s.WriteArrayStart()
		for i, b := range v {
			if i > 0 {
				t.s.WriteMore()
			}
			t.s.WriteUint8(b)
		}
		t.s.WriteArrayEnd()
	})
}

func (t *JSONTarget) None() error                        { return t.leaf("", false, t.s.WriteNil) }
func (t *JSONTarget) Unit() error                        { return t.leaf("", false, t.s.WriteNil) }
func (t *JSONTarget) UnitStruct(string) error            { return t.leaf("", false, t.s.WriteNil) }
func (t *JSONTarget) Some() error                        { return nil }
func (t *JSONTarget) NewtypeStruct(string) error         { return nil }
func (t *JSONTarget) BeginSeq(int) error                 { return t.begin(jfArray) }
func (t *JSONTarget) BeginTuple(int) error               { return t.begin(jfArray) }
func (t *JSONTarget) BeginTupleStruct(string, int) error { return t.begin(jfArray) }
func (t *JSONTarget) BeginStruct(string, []string) error { return t.begin(jfObject) }
func (t *JSONTarget) BeginMap(int) error                 { return t.begin(jfMap) }

func (t *JSONTarget) begin(kind jsonFrameKind) error {
	if err := t.before(); err != nil {
		return err
	}
	t.open(kind, false)
	return t.s.Error
}

func (t *JSONTarget) Field(name string) error {
	f := t.top()
	if f == nil || f.kind != jfObject {
		return ErrUnbalanced
	}
	if f.n > 0 {
		t.s.WriteMore()
	}
	f.n++
	t.s.WriteObjectField(name)
	return t.s.Error
}

func (t *JSONTarget) UnitVariant(_ string, _ uint32, variant string) error {
	return t.Str(variant)
}

func (t *JSONTarget) NewtypeVariant(_ string, _ uint32, variant string) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	t.stack = append(t.stack, jsonFrame{kind: jfVariant})
	return t.s.Error
}

func (t *JSONTarget) BeginTupleVariant(_ string, _ uint32, variant string, _ int) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	t.open(jfArray, true)
	return t.s.Error
}

func (t *JSONTarget) BeginStructVariant(_ string, _ uint32, variant string, _ []string) error {
	if err := t.variant(variant); err != nil {
		return err
	}
	t.open(jfObject, true)
	return t.s.Error
}

func (t *JSONTarget) End() error {
	f := t.top()
	if f == nil || f.kind == jfVariant || (f.kind == jfMap && !f.wantKey) {
		return ErrUnbalanced
	}
	if f.kind == jfArray {
		t.s.WriteArrayEnd()
	} else {
		t.s.WriteObjectEnd()
	}
	if f.closeObject {
		t.s.WriteObjectEnd()
	}
	t.stack = t.stack[:len(t.stack)-1]
	return t.after()
}

// ToJSON decodes one value shaped like s from b and returns it as JSON.
func ToJSON(s *schema.OwnedDataModelType, b []byte, opts Options) ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	d := postcard.NewDeserializer(postcard.NewSliceSource(b))
	if err := Reserialize(s, d, NewJSONTarget(stream), opts); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, targetErr(stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}
