package postcard

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

// FixedLE encodes an integer as its raw little-endian bytes instead of a varint.
type FixedLE[T constraints.Integer] struct {
	V T
}

// FixedBE encodes an integer as its raw big-endian bytes instead of a varint.
type FixedBE[T constraints.Integer] struct {
	V T
}

func (f FixedLE[T]) MarshalPostcard(s *Serializer) error {
	var b [8]byte
	return s.WriteRaw(putFixed(LE, f.V, b[:]))
}

func (f *FixedLE[T]) UnmarshalPostcard(d *Deserializer) error {
	b, err := d.takeTemp(bitsOf[T]() / 8)
	if err != nil {
		return err
	}
	f.V = getFixed[T](LE, b)
	return nil
}

// FixedWidth returns the number of bytes the value occupies on the wire.
func (FixedLE[T]) FixedWidth() int { return bitsOf[T]() / 8 }

func (f FixedBE[T]) MarshalPostcard(s *Serializer) error {
	var b [8]byte
	return s.WriteRaw(putFixed(BE, f.V, b[:]))
}

func (f *FixedBE[T]) UnmarshalPostcard(d *Deserializer) error {
	b, err := d.takeTemp(bitsOf[T]() / 8)
	if err != nil {
		return err
	}
	f.V = getFixed[T](BE, b)
	return nil
}

// FixedWidth returns the number of bytes the value occupies on the wire.
func (FixedBE[T]) FixedWidth() int { return bitsOf[T]() / 8 }

func putFixed[T constraints.Integer](order binary.ByteOrder, v T, b []byte) []byte {
	n := bitsOf[T]() / 8
	switch n {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, uint64(v))
	}
	return b[:n]
}

func getFixed[T constraints.Integer](order binary.ByteOrder, b []byte) T {
	switch len(b) {
	case 1:
		return T(b[0])
	case 2:
		return T(order.Uint16(b))
	case 4:
		return T(order.Uint32(b))
	}
	return T(order.Uint64(b))
}
