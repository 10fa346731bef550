package postcard

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"reflect"
	"unicode/utf8"
)

// Unmarshaler is implemented by types that decode their own postcard encoding.
type Unmarshaler interface {
	UnmarshalPostcard(d *Deserializer) error
}

// Deserializer reads postcard values from a Source and tracks how many bytes
// it has consumed.
type Deserializer struct {
	in     Source
	offset int
}

// NewDeserializer creates a Deserializer reading from in.
func NewDeserializer(in Source) *Deserializer {
	return &Deserializer{in: in}
}

// Offset returns the number of bytes consumed so far.
func (d *Deserializer) Offset() int { return d.offset }

// Source returns the underlying source.
func (d *Deserializer) Source() Source { return d.in }

func (d *Deserializer) pop() (byte, error) {
	b, err := d.in.Pop()
	if err == nil {
		d.offset++
	}
	return b, err
}

func (d *Deserializer) take(n int) ([]byte, error) {
	b, err := d.in.TryTakeN(n)
	if err == nil {
		d.offset += n
	}
	return b, err
}

func (d *Deserializer) takeTemp(n int) ([]byte, error) {
	b, err := d.in.TryTakeNTemp(n)
	if err == nil {
		d.offset += n
	}
	return b, err
}

// varint reads an unsigned varint no wider than width bits.
func (d *Deserializer) varint(width int) (uint64, error) {
	max := (width + 6) / 7
	var out uint64
	for i := 0; i < max; i++ {
		b, err := d.pop()
		if err != nil {
			return 0, err
		}
		out |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			if i == max-1 && b > maxOfLastByte(width) {
				return 0, ErrBadVarint
			}
			return out, nil
		}
	}
	return 0, ErrBadVarint
}

func (d *Deserializer) DeserializeBool() (bool, error) {
	b, err := d.pop()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %d", ErrBadBool, b)
}

func (d *Deserializer) DeserializeU8() (uint8, error) { return d.pop() }

func (d *Deserializer) DeserializeU16() (uint16, error) {
	v, err := d.varint(16)
	return uint16(v), err
}

func (d *Deserializer) DeserializeU32() (uint32, error) {
	v, err := d.varint(32)
	return uint32(v), err
}

func (d *Deserializer) DeserializeU64() (uint64, error) { return d.varint(64) }

// DeserializeUsize reads a platform-width unsigned integer.
func (d *Deserializer) DeserializeUsize() (uint, error) {
	v, err := d.varint(bits.UintSize)
	return uint(v), err
}

func (d *Deserializer) DeserializeU128() (Uint128, error) {
	var out Uint128
	for i := 0; i < VarintMax128; i++ {
		b, err := d.pop()
		if err != nil {
			return Uint128{}, err
		}
		done, err := out.addGroup(i, b)
		if err != nil || done {
			return out, err
		}
	}
	return Uint128{}, ErrBadVarint
}

func (d *Deserializer) DeserializeI8() (int8, error) {
	b, err := d.pop()
	return int8(b), err
}

func (d *Deserializer) DeserializeI16() (int16, error) {
	v, err := d.varint(16)
	return UnZigZag[int16](v), err
}

func (d *Deserializer) DeserializeI32() (int32, error) {
	v, err := d.varint(32)
	return UnZigZag[int32](v), err
}

func (d *Deserializer) DeserializeI64() (int64, error) {
	v, err := d.varint(64)
	return UnZigZag[int64](v), err
}

// DeserializeIsize reads a platform-width signed integer.
func (d *Deserializer) DeserializeIsize() (int, error) {
	v, err := d.varint(bits.UintSize)
	return UnZigZag[int](v), err
}

func (d *Deserializer) DeserializeI128() (Int128, error) {
	u, err := d.DeserializeU128()
	return u.UnZigZag(), err
}

func (d *Deserializer) DeserializeF32() (float32, error) {
	b, err := d.takeTemp(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (d *Deserializer) DeserializeF64() (float64, error) {
	b, err := d.takeTemp(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// DeserializeChar reads a length-prefixed UTF-8 scalar value.
func (d *Deserializer) DeserializeChar() (rune, error) {
	n, err := d.varint(bits.UintSize)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > utf8.UTFMax {
		return 0, fmt.Errorf("%w: length %d", ErrBadChar, n)
	}
	b, err := d.takeTemp(int(n))
	if err != nil {
		return 0, err
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 || size != len(b) {
		return 0, fmt.Errorf("%w: % x", ErrBadChar, b)
	}
	return r, nil
}

// length reads a varint length prefix.
func (d *Deserializer) length() (int, error) {
	n, err := d.varint(bits.UintSize)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt {
		return 0, ErrBadVarint
	}
	return int(n), nil
}

// DeserializeBytes reads a length-prefixed byte array. The result borrows
// from the source and must not be retained past its validity.
func (d *Deserializer) DeserializeBytes() ([]byte, error) {
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

// DeserializeStr reads a length-prefixed UTF-8 string.
func (d *Deserializer) DeserializeStr() (string, error) {
	n, err := d.length()
	if err != nil {
		return "", err
	}
	b, err := d.takeTemp(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrBadUTF8
	}
	return string(b), nil
}

// DeserializeOption reads an option tag and reports whether a value follows.
func (d *Deserializer) DeserializeOption() (bool, error) {
	b, err := d.pop()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %d", ErrBadOption, b)
}

// DeserializeSeqLen reads the element count of a sequence.
func (d *Deserializer) DeserializeSeqLen() (int, error) { return d.length() }

// DeserializeMapLen reads the entry count of a map.
func (d *Deserializer) DeserializeMapLen() (int, error) { return d.length() }

// maxZeroWidthLen is how many zero-width elements a count may claim beyond
// the bytes still unread.
const maxZeroWidthLen = 1 << 16

// CheckZeroWidthLen rejects a count of elements that encode to zero bytes
// when it exceeds maxZeroWidthLen plus the unread input. Decoding such
// elements consumes nothing, so the count alone would bound the loop.
func (d *Deserializer) CheckZeroWidthLen(n int) error {
	limit := maxZeroWidthLen
	if a, ok := d.in.(interface{ Available() int }); ok {
		limit += a.Available()
	}
	if n > limit {
		return fmt.Errorf("%w: %d zero-width elements", ErrBadLength, n)
	}
	return nil
}

// DeserializeVariantIndex reads an enum discriminant.
func (d *Deserializer) DeserializeVariantIndex() (uint32, error) {
	v, err := d.varint(32)
	return uint32(v), err
}

// TakeRaw reads n bytes without framing. The result borrows from the source.
func (d *Deserializer) TakeRaw(n int) ([]byte, error) { return d.take(n) }

// Spanned records where a value started and ended in the input.
type Spanned[T any] struct {
	Start int
	End   int
	Value T
}

func (s *Spanned[T]) UnmarshalPostcard(d *Deserializer) error {
	s.Start = d.Offset()
	if err := d.Deserialize(&s.Value); err != nil {
		return err
	}
	s.End = d.Offset()
	return nil
}

func (s Spanned[T]) MarshalPostcard(ser *Serializer) error {
	return ser.Serialize(s.Value)
}

// WrappedType reports the type Spanned carries. Spanned adds nothing on the wire.
func (Spanned[T]) WrappedType() reflect.Type { return reflect.TypeFor[T]() }
