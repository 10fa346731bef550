package postcard

import (
	"encoding/binary"
	"fmt"
)

// Source is the byte source a Deserializer reads from.
type Source interface {
	// Pop takes one byte.
	Pop() (byte, error)
	// TryTakeN takes n bytes. The result stays valid for the life of the source.
	TryTakeN(n int) ([]byte, error)
	// TryTakeNTemp takes n bytes. The result is only valid until the next call.
	TryTakeNTemp(n int) ([]byte, error)
}

// Finisher is a Source that yields a remainder once decoding is complete.
type Finisher[R any] interface {
	Source
	Finalize() (R, error)
}

var (
	_ Finisher[[]byte] = (*SliceSource)(nil)
	_ Finisher[[]byte] = (*CrcSource[[]byte])(nil)
)

// SliceSource reads from a byte slice without copying. Finalize returns the
// unread tail.
type SliceSource struct {
	B []byte // source slice
	N int    // current read position
}

// NewSliceSource creates a SliceSource.
func NewSliceSource(b []byte) *SliceSource {
	return &SliceSource{B: b}
}

func (s *SliceSource) Pop() (byte, error) {
	if s.N >= len(s.B) {
		return 0, ErrUnexpectedEnd
	}
	b := s.B[s.N]
	s.N++
	return b, nil
}

func (s *SliceSource) TryTakeN(n int) ([]byte, error) {
	if n < 0 || len(s.B)-s.N < n {
		return nil, ErrUnexpectedEnd
	}
	b := s.B[s.N : s.N+n : s.N+n]
	s.N += n
	return b, nil
}

func (s *SliceSource) TryTakeNTemp(n int) ([]byte, error) { return s.TryTakeN(n) }

func (s *SliceSource) Finalize() ([]byte, error) { return s.B[s.N:], nil }

// Available returns the number of unread bytes.
func (s *SliceSource) Available() int { return len(s.B) - s.N }

// CrcSource feeds every byte it hands out into a digest. Finalize reads the
// little-endian trailer from the inner source and compares it with the digest.
type CrcSource[R any] struct {
	inner  Finisher[R]
	digest Digest
	one    [1]byte
}

// NewCrcSource wraps inner. The digest is reset first.
func NewCrcSource[R any](inner Finisher[R], d Digest) *CrcSource[R] {
	d.Reset()
	return &CrcSource[R]{inner: inner, digest: d}
}

func (s *CrcSource[R]) Pop() (byte, error) {
	b, err := s.inner.Pop()
	if err != nil {
		return 0, err
	}
	s.one[0] = b
	_, _ = s.digest.Write(s.one[:])
	return b, nil
}

func (s *CrcSource[R]) TryTakeN(n int) ([]byte, error) {
	b, err := s.inner.TryTakeN(n)
	if err != nil {
		return nil, err
	}
	_, _ = s.digest.Write(b)
	return b, nil
}

func (s *CrcSource[R]) TryTakeNTemp(n int) ([]byte, error) {
	b, err := s.inner.TryTakeNTemp(n)
	if err != nil {
		return nil, err
	}
	_, _ = s.digest.Write(b)
	return b, nil
}

// Available reports the inner source's unread bytes, trailer included, or
// zero when the inner source cannot tell.
func (s *CrcSource[R]) Available() int {
	if a, ok := s.inner.(interface{ Available() int }); ok {
		return a.Available()
	}
	return 0
}

func (s *CrcSource[R]) Finalize() (R, error) {
	var zero R
	var buf [8]byte
	trailer, err := digestTrailer(s.digest, &buf)
	if err != nil {
		return zero, err
	}
	want := s.digest.Sum64() & widthMask(len(trailer))
	got, err := s.inner.TryTakeNTemp(len(trailer))
	if err != nil {
		return zero, err
	}
	var gb [8]byte
	copy(gb[:], got)
	if sum := binary.LittleEndian.Uint64(gb[:]); sum != want {
		return zero, fmt.Errorf("%w: got %#x, want %#x", ErrBadChecksum, sum, want)
	}
	return s.inner.Finalize()
}

func widthMask(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*n) - 1
}
