package postcard

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// VarintMax128 is the longest varint encoding of a 128-bit integer.
const VarintMax128 = 19

func bitsOf[T constraints.Integer]() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

// VarintMax returns the longest varint encoding of T, ceil(bits/7).
func VarintMax[T constraints.Integer]() int {
	return (bitsOf[T]() + 6) / 7
}

// maxOfLastByte is the largest value the final group may hold for a given width.
func maxOfLastByte(bits int) byte {
	rem := bits % 7
	if rem == 0 {
		return 0x7F
	}
	return byte(1<<rem - 1)
}

// EncodeVarint writes v into out, which must hold at least VarintMax[T]() bytes,
// and returns the used prefix.
func EncodeVarint[T constraints.Unsigned](v T, out []byte) []byte {
	u := uint64(v)
	i := 0
	for u >= 0x80 {
		out[i] = byte(u) | 0x80
		u >>= 7
		i++
	}
	out[i] = byte(u)
	return out[:i+1]
}

// AppendVarint appends the varint encoding of v to dst.
func AppendVarint[T constraints.Unsigned](dst []byte, v T) []byte {
	var buf [10]byte
	return append(dst, EncodeVarint(v, buf[:])...)
}

// VarintSize returns the encoded length of v.
func VarintSize[T constraints.Unsigned](v T) int {
	u := uint64(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// DecodeVarint reads a varint of width T from the front of b and returns the value
// with the number of bytes consumed.
func DecodeVarint[T constraints.Unsigned](b []byte) (T, int, error) {
	bits := bitsOf[T]()
	max := (bits + 6) / 7
	var out uint64
	for i := 0; i < max; i++ {
		if i >= len(b) {
			return 0, i, ErrUnexpectedEnd
		}
		c := b[i]
		out |= uint64(c&0x7F) << (7 * i)
		if c&0x80 == 0 {
			if i == max-1 && c > maxOfLastByte(bits) {
				return 0, i + 1, ErrBadVarint
			}
			return T(out), i + 1, nil
		}
	}
	return 0, max, ErrBadVarint
}

// ZigZag maps signed integers onto unsigned ones so small magnitudes stay small:
// 0, -1, 1, -2 become 0, 1, 2, 3.
func ZigZag[T constraints.Signed](n T) uint64 {
	bits := bitsOf[T]()
	u := uint64((n << 1) ^ (n >> (bits - 1)))
	if bits < 64 {
		u &= 1<<bits - 1
	}
	return u
}

// UnZigZag reverses ZigZag.
func UnZigZag[T constraints.Signed](u uint64) T {
	return T(u>>1) ^ -T(u&1)
}
