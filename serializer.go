package postcard

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Marshaler is implemented by types that write their own postcard encoding.
type Marshaler interface {
	MarshalPostcard(s *Serializer) error
}

// Serializer turns values into postcard bytes and pushes them into a Flavor.
// Errors from the flavor are returned unchanged.
type Serializer struct {
	out Flavor
	buf [VarintMax128]byte
}

// NewSerializer creates a Serializer writing to out.
func NewSerializer(out Flavor) *Serializer {
	return &Serializer{out: out}
}

// Flavor returns the sink the Serializer writes into.
func (s *Serializer) Flavor() Flavor { return s.out }

// WriteRaw pushes p without any framing.
func (s *Serializer) WriteRaw(p []byte) error { return s.out.TryExtend(p) }

func (s *Serializer) varint(v uint64) error {
	return s.out.TryExtend(EncodeVarint(v, s.buf[:]))
}

func (s *Serializer) SerializeBool(v bool) error {
	if v {
		return s.out.TryPush(1)
	}
	return s.out.TryPush(0)
}

func (s *Serializer) SerializeU8(v uint8) error   { return s.out.TryPush(v) }
func (s *Serializer) SerializeU16(v uint16) error { return s.varint(uint64(v)) }
func (s *Serializer) SerializeU32(v uint32) error { return s.varint(uint64(v)) }
func (s *Serializer) SerializeU64(v uint64) error { return s.varint(v) }

// SerializeUsize writes a platform-width unsigned integer.
func (s *Serializer) SerializeUsize(v uint) error { return s.varint(uint64(v)) }

func (s *Serializer) SerializeU128(v Uint128) error {
	return s.out.TryExtend(EncodeVarint128(v, s.buf[:]))
}

func (s *Serializer) SerializeI8(v int8) error   { return s.out.TryPush(byte(v)) }
func (s *Serializer) SerializeI16(v int16) error { return s.varint(ZigZag(v)) }
func (s *Serializer) SerializeI32(v int32) error { return s.varint(ZigZag(v)) }
func (s *Serializer) SerializeI64(v int64) error { return s.varint(ZigZag(v)) }

// SerializeIsize writes a platform-width signed integer.
func (s *Serializer) SerializeIsize(v int) error { return s.varint(ZigZag(int64(v))) }

func (s *Serializer) SerializeI128(v Int128) error { return s.SerializeU128(v.ZigZag()) }

func (s *Serializer) SerializeF32(v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return s.out.TryExtend(b[:])
}

func (s *Serializer) SerializeF64(v float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return s.out.TryExtend(b[:])
}

// SerializeChar writes a length-prefixed UTF-8 scalar value.
func (s *Serializer) SerializeChar(v rune) error {
	if !utf8.ValidRune(v) {
		return fmt.Errorf("%w: %U is not a unicode scalar value", ErrBadChar, v)
	}
	var b [utf8.UTFMax]byte
	n := utf8.EncodeRune(b[:], v)
	if err := s.out.TryPush(byte(n)); err != nil {
		return err
	}
	return s.out.TryExtend(b[:n])
}

func (s *Serializer) SerializeStr(v string) error {
	if err := s.varint(uint64(len(v))); err != nil {
		return err
	}
	return s.out.TryExtend([]byte(v))
}

func (s *Serializer) SerializeBytes(v []byte) error {
	if err := s.varint(uint64(len(v))); err != nil {
		return err
	}
	return s.out.TryExtend(v)
}

// SerializeNone writes an absent option.
func (s *Serializer) SerializeNone() error { return s.out.TryPush(0) }

// SerializeSome writes the tag of a present option; the value follows.
func (s *Serializer) SerializeSome() error { return s.out.TryPush(1) }

// SerializeUnit writes nothing.
func (s *Serializer) SerializeUnit() error { return nil }

// SerializeSeqLen writes the element count that prefixes a sequence.
// A negative length means the count is unknown, which the format cannot express.
func (s *Serializer) SerializeSeqLen(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: sequence of unknown length", ErrUnsupported)
	}
	return s.varint(uint64(n))
}

// SerializeMapLen writes the entry count that prefixes a map.
func (s *Serializer) SerializeMapLen(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: map of unknown length", ErrUnsupported)
	}
	return s.varint(uint64(n))
}

// SerializeVariantIndex writes an enum discriminant; the payload follows.
func (s *Serializer) SerializeVariantIndex(idx uint32) error { return s.varint(uint64(idx)) }
