package postcard

import (
	"io"
)

// SerializeWithFlavor writes v through f and returns the flavor's output.
func SerializeWithFlavor[O any](v any, f Finalizer[O]) (O, error) {
	if err := NewSerializer(f).Serialize(v); err != nil {
		var zero O
		return zero, err
	}
	return f.Finalize()
}

// ToSlice encodes v into buf and returns the used prefix. It fails with
// ErrBufferFull when buf is too small.
func ToSlice(v any, buf []byte) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewSliceFlavor(buf))
}

// ToBytes encodes v into a new slice.
func ToBytes(v any) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewBufferFlavor(make([]byte, 0)))
}

// Append encodes v onto the end of dst.
func Append(dst []byte, v any) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewBufferFlavor(dst))
}

// ToSliceCobs encodes v as a COBS frame, including its 0x00 delimiter, into buf.
func ToSliceCobs(v any, buf []byte) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewCobsFlavor[[]byte](NewSliceFlavor(buf)))
}

// ToBytesCobs encodes v as a COBS frame into a new slice.
func ToBytesCobs(v any) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewCobsFlavor[[]byte](NewBufferFlavor(nil)))
}

// ToSliceCrc encodes v into buf followed by the digest of the encoding.
func ToSliceCrc(v any, buf []byte, d Digest) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewCrcFlavor[[]byte](NewSliceFlavor(buf), d))
}

// ToBytesCrc encodes v into a new slice followed by the digest of the encoding.
func ToBytesCrc(v any, d Digest) ([]byte, error) {
	return SerializeWithFlavor[[]byte](v, NewCrcFlavor[[]byte](NewBufferFlavor(nil), d))
}

// ToWriter encodes v to w and returns the number of bytes written.
func ToWriter(v any, w io.Writer) (int64, error) {
	f, err := NewWriterFlavor(w)
	if err != nil {
		return 0, err
	}
	return SerializeWithFlavor[int64](v, f)
}

// SerializedSize returns the encoded length of v without storing it.
func SerializedSize(v any) (int, error) {
	return SerializeWithFlavor[int](v, &SizeFlavor{})
}

// DeserializeWithFlavor decodes a T from f and returns it with the flavor's remainder.
func DeserializeWithFlavor[T any, R any](f Finisher[R]) (T, R, error) {
	var v T
	var zero R
	if err := NewDeserializer(f).Deserialize(&v); err != nil {
		return v, zero, err
	}
	rest, err := f.Finalize()
	return v, rest, err
}

// FromBytes decodes a T from the front of b. Trailing bytes are ignored.
func FromBytes[T any](b []byte) (T, error) {
	v, _, err := TakeFromBytes[T](b)
	return v, err
}

// TakeFromBytes decodes a T from the front of b and returns the unread tail.
func TakeFromBytes[T any](b []byte) (T, []byte, error) {
	return DeserializeWithFlavor[T, []byte](NewSliceSource(b))
}

// FromBytesCobs decodes a COBS frame in place and then decodes a T from it.
// b is overwritten by the decoded frame.
func FromBytesCobs[T any](b []byte) (T, error) {
	v, _, err := TakeFromBytesCobs[T](b)
	return v, err
}

// TakeFromBytesCobs is FromBytesCobs returning the bytes after the frame delimiter.
func TakeFromBytesCobs[T any](b []byte) (T, []byte, error) {
	var zero T
	n, used, err := cobsDecode(b)
	if err != nil {
		return zero, nil, err
	}
	v, err := FromBytes[T](b[:n])
	return v, b[used:], err
}

// FromBytesCrc decodes a T followed by its digest trailer.
func FromBytesCrc[T any](b []byte, d Digest) (T, error) {
	v, _, err := TakeFromBytesCrc[T](b, d)
	return v, err
}

// TakeFromBytesCrc is FromBytesCrc returning the bytes after the trailer.
func TakeFromBytesCrc[T any](b []byte, d Digest) (T, []byte, error) {
	return DeserializeWithFlavor[T, []byte](NewCrcSource[[]byte](NewSliceSource(b), d))
}

// FromReader decodes a T from r. Borrowed bytes are staged in scratch.
func FromReader[T any](r io.Reader, scratch []byte) (T, ReaderRemainder, error) {
	src, err := NewReaderSource(r, scratch)
	if err != nil {
		var zero T
		return zero, ReaderRemainder{}, err
	}
	return DeserializeWithFlavor[T, ReaderRemainder](src)
}
