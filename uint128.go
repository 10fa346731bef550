package postcard

import (
	"fmt"
	"math/big"
)

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi, Lo uint64
}

// Int128 is a signed 128-bit integer in two's complement.
type Int128 struct {
	Hi, Lo uint64
}

// U128 widens v.
func U128(v uint64) Uint128 { return Uint128{Lo: v} }

// I128 sign-extends v.
func I128(v int64) Int128 { return Int128{Hi: uint64(v >> 63), Lo: uint64(v)} }

var (
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	mask64     = new(big.Int).SetUint64(^uint64(0))
)

// Uint128FromBig converts b, failing if it does not fit.
func Uint128FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("%w: %s out of range for u128", ErrBadVarint, b)
	}
	lo := new(big.Int).And(b, mask64)
	hi := new(big.Int).Rsh(b, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// Int128FromBig converts b, failing if it does not fit.
func Int128FromBig(b *big.Int) (Int128, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, fmt.Errorf("%w: %s out of range for i128", ErrBadVarint, b)
	}
	if b.Sign() >= 0 {
		u, _ := Uint128FromBig(b)
		return Int128(u), nil
	}
	u, _ := Uint128FromBig(new(big.Int).Neg(b))
	return Int128(u.neg()), nil
}

func (u Uint128) neg() Uint128 {
	lo := ^u.Lo + 1
	hi := ^u.Hi
	if lo == 0 {
		hi++
	}
	return Uint128{Hi: hi, Lo: lo}
}

func (u Uint128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

// Negative reports whether i is below zero.
func (i Int128) Negative() bool { return i.Hi>>63 == 1 }

// Big returns i as a big.Int.
func (i Int128) Big() *big.Int {
	if !i.Negative() {
		return Uint128(i).Big()
	}
	b := Uint128(i).neg().Big()
	return b.Neg(b)
}

func (i Int128) String() string { return i.Big().String() }

// ZigZag maps i onto an unsigned value the same way ZigZag does for narrower widths.
func (i Int128) ZigZag() Uint128 {
	hi := i.Hi<<1 | i.Lo>>63
	lo := i.Lo << 1
	var sign uint64
	if i.Negative() {
		sign = ^uint64(0)
	}
	return Uint128{Hi: hi ^ sign, Lo: lo ^ sign}
}

// UnZigZag reverses Int128.ZigZag.
func (u Uint128) UnZigZag() Int128 {
	lo := u.Lo>>1 | u.Hi<<63
	hi := u.Hi >> 1
	mask := -(u.Lo & 1)
	return Int128{Hi: hi ^ mask, Lo: lo ^ mask}
}

// EncodeVarint128 writes u into out, which must hold VarintMax128 bytes.
func EncodeVarint128(u Uint128, out []byte) []byte {
	i := 0
	for u.Hi != 0 || u.Lo >= 0x80 {
		out[i] = byte(u.Lo) | 0x80
		u.Lo = u.Lo>>7 | u.Hi<<57
		u.Hi >>= 7
		i++
	}
	out[i] = byte(u.Lo)
	return out[:i+1]
}

// DecodeVarint128 reads a 128-bit varint from the front of b.
func DecodeVarint128(b []byte) (Uint128, int, error) {
	var out Uint128
	for i := 0; i < VarintMax128; i++ {
		if i >= len(b) {
			return Uint128{}, i, ErrUnexpectedEnd
		}
		done, err := out.addGroup(i, b[i])
		if err != nil || done {
			return out, i + 1, err
		}
	}
	return Uint128{}, VarintMax128, ErrBadVarint
}

// addGroup folds the i-th varint group into u and reports whether it was the last.
func (u *Uint128) addGroup(i int, c byte) (bool, error) {
	g := uint64(c & 0x7F)
	pos := 7 * i
	switch {
	case pos >= 64:
		u.Hi |= g << (pos - 64)
	case pos > 57:
		u.Lo |= g << pos
		u.Hi |= g >> (64 - pos)
	default:
		u.Lo |= g << pos
	}
	if c&0x80 != 0 {
		return false, nil
	}
	if i == VarintMax128-1 && c > maxOfLastByte(128) {
		*u = Uint128{}
		return true, ErrBadVarint
	}
	return true, nil
}
