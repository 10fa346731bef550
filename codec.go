package postcard

import (
	"encoding"
	"fmt"
	"io"
)

// Sizer is an interface for types that can report their binary size.
// This is useful for pre-allocating buffers before encoding.
type Sizer interface {
	// Size returns the size of the type in bytes when binary encoded.
	Size() int
}

// Codec aggregates the standard library's binary serialization interfaces.
// A type implementing Codec can be handed to any API that speaks
// encoding.BinaryMarshaler, io.WriterTo and their decoding counterparts.
type Codec interface {
	Sizer
	encoding.BinaryMarshaler // Method: MarshalBinary() ([]byte, error)
	io.WriterTo              // Method: WriteTo(w io.Writer) (int64, error)

	// MarshalTo encodes into a pre-allocated buffer, returning an error
	// (ErrBufferFull) if the buffer is too small.
	MarshalTo(buf []byte) (int, error)

	encoding.BinaryUnmarshaler // Method: UnmarshalBinary(data []byte) error
	io.ReaderFrom              // Method: ReadFrom(r io.Reader) (int64, error)
}

// Message provides a Codec implementation for any value, using the postcard
// encoding of Value.
type Message[T any] struct {
	Value T
}

// Statically assert that Message implements Codec.
var _ Codec = (*Message[struct{}])(nil)

// Size returns the encoded size of Value, or -1 if it cannot be encoded.
func (m *Message[T]) Size() int {
	n, err := SerializedSize(m.Value)
	if err != nil {
		return -1
	}
	return n
}

// MarshalBinary implements the standard `encoding.BinaryMarshaler` interface.
// Note: This method allocates a new byte slice. For performance-critical paths,
// use `MarshalTo` or `WriteTo` instead.
func (m *Message[T]) MarshalBinary() ([]byte, error) {
	return ToBytes(m.Value)
}

// MarshalTo marshals Value into the provided slice `p`.
func (m *Message[T]) MarshalTo(p []byte) (int, error) {
	out, err := ToSlice(m.Value, p)
	return len(out), err
}

// WriteTo implements `io.WriterTo`.
func (m *Message[T]) WriteTo(w io.Writer) (int64, error) {
	return ToWriter(m.Value, w)
}

// UnmarshalBinary implements the standard `encoding.BinaryUnmarshaler` interface.
// Unlike FromBytes it rejects trailing data, to catch truncated or oversized payloads.
func (m *Message[T]) UnmarshalBinary(data []byte) error {
	v, rest, err := TakeFromBytes[T](data)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest))
	}
	m.Value = v
	return nil
}

// ReadFrom implements `io.ReaderFrom`, decoding one value from the stream.
// Readers without io.ByteReader are buffered, so bytes past the value may be consumed.
func (m *Message[T]) ReadFrom(r io.Reader) (int64, error) {
	scratch := scratchPool.Get().(*[]byte)
	defer scratchPool.Put(scratch)

	src, err := NewReaderSource(r, *scratch)
	if err != nil {
		return 0, err
	}
	var v T
	if err := NewDeserializer(src).Deserialize(&v); err != nil {
		return src.Count(), err
	}
	m.Value = v
	return src.Count(), nil
}
