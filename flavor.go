package postcard

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"

	"github.com/oy3o/postcard/internal/cobs"
)

// Flavor is the byte sink a Serializer writes into.
type Flavor interface {
	// TryPush appends one byte.
	TryPush(b byte) error
	// TryExtend appends all of p, or fails.
	TryExtend(p []byte) error
}

// Finalizer is a Flavor that produces an output once serialization is complete.
type Finalizer[O any] interface {
	Flavor
	Finalize() (O, error)
}

var (
	_ Finalizer[[]byte] = (*SliceFlavor)(nil)
	_ Finalizer[[]byte] = (*BufferFlavor)(nil)
	_ Finalizer[int]    = (*SizeFlavor)(nil)
	_ Finalizer[[]byte] = (*CrcFlavor[[]byte])(nil)
	_ Finalizer[[]byte] = (*CobsFlavor[[]byte])(nil)
)

// SliceFlavor writes into a caller-provided buffer and never grows it.
// Finalize returns the written prefix.
type SliceFlavor struct {
	B []byte // destination slice
	N int    // current write position
}

// NewSliceFlavor creates a SliceFlavor over the full capacity of p.
func NewSliceFlavor(p []byte) *SliceFlavor {
	return &SliceFlavor{B: p[:cap(p)]}
}

func (f *SliceFlavor) TryPush(b byte) error {
	if f.N >= len(f.B) {
		return ErrBufferFull
	}
	f.B[f.N] = b
	f.N++
	return nil
}

func (f *SliceFlavor) TryExtend(p []byte) error {
	if len(f.B)-f.N < len(p) {
		return ErrBufferFull
	}
	f.N += copy(f.B[f.N:], p)
	return nil
}

func (f *SliceFlavor) Finalize() ([]byte, error) { return f.B[:f.N], nil }

// Available returns the number of bytes still free.
func (f *SliceFlavor) Available() int { return len(f.B) - f.N }

// BufferFlavor appends to a growable slice. Finalize returns the whole slice,
// including anything it held before serialization started.
type BufferFlavor struct {
	B []byte
}

// NewBufferFlavor creates a BufferFlavor appending to dst, which may be nil.
func NewBufferFlavor(dst []byte) *BufferFlavor { return &BufferFlavor{B: dst} }

func (f *BufferFlavor) TryPush(b byte) error     { f.B = append(f.B, b); return nil }
func (f *BufferFlavor) TryExtend(p []byte) error { f.B = append(f.B, p...); return nil }
func (f *BufferFlavor) Finalize() ([]byte, error) { return f.B, nil }

// SizeFlavor counts bytes without storing them.
type SizeFlavor struct {
	N int
}

func (f *SizeFlavor) TryPush(byte) error       { f.N++; return nil }
func (f *SizeFlavor) TryExtend(p []byte) error { f.N += len(p); return nil }
func (f *SizeFlavor) Finalize() (int, error)   { return f.N, nil }

// Digest is a running checksum used by the CRC flavors. Size reports how many
// little-endian bytes of Sum64 make up the trailer (1, 2, 4 or 8).
//
// Any hash.Hash64 satisfies Digest directly.
type Digest interface {
	Write(p []byte) (int, error)
	Reset()
	Size() int
	Sum64() uint64
}

// Hash32 adapts a 32-bit hash such as hash/crc32 to a Digest.
func Hash32(h hash.Hash32) Digest { return hash32{h} }

type hash32 struct{ hash.Hash32 }

func (h hash32) Sum64() uint64 { return uint64(h.Sum32()) }

// XXHash64 returns a 64-bit xxHash digest.
func XXHash64() Digest { return xxhash.New() }

// digestTrailer encodes the current digest value as its little-endian trailer.
func digestTrailer(d Digest, buf *[8]byte) ([]byte, error) {
	n := d.Size()
	switch n {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: digest width %d", ErrUnsupported, n)
	}
	binary.LittleEndian.PutUint64(buf[:], d.Sum64())
	return buf[:n], nil
}

// CrcFlavor feeds every byte into a digest and appends the digest as a
// fixed-width little-endian trailer when finalized.
type CrcFlavor[O any] struct {
	inner  Finalizer[O]
	digest Digest
	one    [1]byte
}

// NewCrcFlavor wraps inner. The digest is reset first.
func NewCrcFlavor[O any](inner Finalizer[O], d Digest) *CrcFlavor[O] {
	d.Reset()
	return &CrcFlavor[O]{inner: inner, digest: d}
}

func (f *CrcFlavor[O]) TryPush(b byte) error {
	f.one[0] = b
	_, _ = f.digest.Write(f.one[:])
	return f.inner.TryPush(b)
}

func (f *CrcFlavor[O]) TryExtend(p []byte) error {
	_, _ = f.digest.Write(p)
	return f.inner.TryExtend(p)
}

func (f *CrcFlavor[O]) Finalize() (O, error) {
	var buf [8]byte
	trailer, err := digestTrailer(f.digest, &buf)
	if err == nil {
		err = f.inner.TryExtend(trailer)
	}
	if err != nil {
		var zero O
		return zero, err
	}
	return f.inner.Finalize()
}

// CobsFlavor COBS-encodes everything it receives and terminates the frame
// with 0x00 when finalized.
type CobsFlavor[O any] struct {
	inner Finalizer[O]
	enc   cobs.Encoder
}

// NewCobsFlavor wraps inner.
func NewCobsFlavor[O any](inner Finalizer[O]) *CobsFlavor[O] {
	return &CobsFlavor[O]{inner: inner}
}

func (f *CobsFlavor[O]) TryPush(b byte) error     { return f.enc.Push(b, f.inner) }
func (f *CobsFlavor[O]) TryExtend(p []byte) error { return f.enc.Extend(p, f.inner) }

func (f *CobsFlavor[O]) Finalize() (O, error) {
	if err := f.enc.Finish(f.inner); err != nil {
		var zero O
		return zero, err
	}
	return f.inner.Finalize()
}
