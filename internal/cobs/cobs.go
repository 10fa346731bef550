// Package cobs implements Consistent Overhead Byte Stuffing, the framing
// transform that removes every 0x00 from a payload so a single 0x00 can
// mark the end of a frame.
package cobs

import "errors"

// ErrInvalid is returned when a frame is not a valid COBS encoding.
var ErrInvalid = errors.New("cobs: invalid encoding")

// maxRun is the longest run of non-zero bytes one code byte can describe.
const maxRun = 254

// MaxEncodedLen returns the worst-case encoded size of n payload bytes,
// excluding the trailing frame delimiter.
func MaxEncodedLen(n int) int {
	return n + n/maxRun + 1
}

// Sink receives encoded bytes.
type Sink interface {
	TryPush(b byte) error
	TryExtend(p []byte) error
}

// Encoder is a streaming encoder. It buffers the current run of non-zero
// bytes and hands each completed block to the sink.
type Encoder struct {
	run  [maxRun]byte
	n    int
	full bool // last emitted block was a full run with no implied zero
}

// Push encodes a single payload byte.
func (e *Encoder) Push(b byte, out Sink) error {
	if b == 0 {
		return e.emit(out)
	}
	e.run[e.n] = b
	e.n++
	if e.n == maxRun {
		return e.emit(out)
	}
	return nil
}

// Extend encodes every byte of p.
func (e *Encoder) Extend(p []byte, out Sink) error {
	for _, b := range p {
		if err := e.Push(b, out); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes the final block and writes the 0x00 frame delimiter.
func (e *Encoder) Finish(out Sink) error {
	if !e.full || e.n > 0 {
		if err := e.emit(out); err != nil {
			return err
		}
	}
	e.full = false
	return out.TryPush(0)
}

func (e *Encoder) emit(out Sink) error {
	if err := out.TryPush(byte(e.n + 1)); err != nil {
		return err
	}
	if e.n > 0 {
		if err := out.TryExtend(e.run[:e.n]); err != nil {
			return err
		}
	}
	e.full = e.n == maxRun
	e.n = 0
	return nil
}

// Decode decodes a single frame from src into dst and returns the decoded
// length together with the number of src bytes consumed, including the
// delimiter when one was found. dst may alias src: the write position
// never passes the read position.
//
// Decoding stops at the first 0x00 in src or at the end of src.
func Decode(dst, src []byte) (n, used int, err error) {
	r := 0
	for r < len(src) {
		code := src[r]
		if code == 0 {
			return n, r + 1, nil
		}
		r++
		run := int(code) - 1
		if r+run > len(src) {
			return 0, 0, ErrInvalid
		}
		for _, b := range src[r : r+run] {
			if b == 0 {
				return 0, 0, ErrInvalid
			}
		}
		if n+run > len(dst) {
			return 0, 0, ErrInvalid
		}
		copy(dst[n:], src[r:r+run])
		n += run
		r += run
		if code != 0xFF && r < len(src) && src[r] != 0 {
			if n >= len(dst) {
				return 0, 0, ErrInvalid
			}
			dst[n] = 0
			n++
		}
	}
	return n, r, nil
}

// Encode encodes src into a new slice terminated by the frame delimiter.
func Encode(src []byte) []byte {
	out := &appendSink{b: make([]byte, 0, MaxEncodedLen(len(src))+1)}
	var e Encoder
	_ = e.Extend(src, out)
	_ = e.Finish(out)
	return out.b
}

type appendSink struct{ b []byte }

func (s *appendSink) TryPush(b byte) error     { s.b = append(s.b, b); return nil }
func (s *appendSink) TryExtend(p []byte) error { s.b = append(s.b, p...); return nil }
