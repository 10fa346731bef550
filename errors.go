package postcard

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnexpectedEnd indicates the input ended before a value was complete.
	ErrUnexpectedEnd = errors.New("postcard: unexpected end of input")

	// ErrBufferFull indicates the serialization sink has no room left.
	ErrBufferFull = errors.New("postcard: serialize buffer full")

	// ErrBadVarint indicates a varint that overflows its target width.
	ErrBadVarint = errors.New("postcard: varint overflows target width")

	// ErrBadBool indicates a boolean byte other than 0 or 1.
	ErrBadBool = errors.New("postcard: invalid boolean value")

	// ErrBadChar indicates a char with a bad length prefix or an invalid scalar value.
	ErrBadChar = errors.New("postcard: invalid char value")

	// ErrBadUTF8 indicates string bytes that are not valid UTF-8.
	ErrBadUTF8 = errors.New("postcard: invalid utf-8 in string")

	// ErrBadOption indicates an option tag other than 0 or 1.
	ErrBadOption = errors.New("postcard: invalid option tag")

	// ErrBadEncoding indicates a malformed COBS frame.
	ErrBadEncoding = errors.New("postcard: invalid cobs encoding")

	// ErrBadChecksum indicates the trailing checksum did not match the payload.
	ErrBadChecksum = errors.New("postcard: checksum mismatch")

	// ErrUnknownVariant indicates an enum index with no matching variant.
	ErrUnknownVariant = errors.New("postcard: unknown enum variant")

	// ErrLengthMismatch indicates a sequence whose length differs from the expected shape.
	ErrLengthMismatch = errors.New("postcard: length mismatch")

	// ErrBadLength indicates a count of zero-width elements larger than the input can justify.
	ErrBadLength = errors.New("postcard: length prefix exceeds input")

	// ErrUnsupported indicates a construct the format cannot represent,
	// such as a sequence of unknown length or a Go type with no mapping.
	ErrUnsupported = errors.New("postcard: unsupported construct")

	// ErrCustom carries a free-form message raised by a value's own encoding logic.
	ErrCustom = errors.New("postcard: custom error")

	// ErrNilIO indicates that a reader or writer flavor was built on a nil io.Reader/io.Writer.
	ErrNilIO = errors.New("postcard: flavor built with a nil io.Reader/io.Writer")

	// ErrAlreadyBuffered indicates that a writer flavor was built on an already-buffered
	// writer with a smaller buffer, which would lead to unpredictable flushing.
	ErrAlreadyBuffered = errors.New("postcard: writer is already buffered")

	// ErrTrailingData is returned by strict decoders when bytes remain after the value.
	ErrTrailingData = errors.New("postcard: trailing data found after decoding")
)

// Custom builds an error wrapping ErrCustom with a formatted message.
func Custom(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCustom, fmt.Sprintf(format, args...))
}

// UnknownVariantError reports an enum discriminant outside the known variants.
type UnknownVariantError struct {
	Enum  string
	Index uint32
	Count int
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("postcard: unknown variant index %d for enum %s, expected variant index 0 <= i < %d",
		e.Index, e.Enum, e.Count)
}

func (e *UnknownVariantError) Is(target error) bool { return target == ErrUnknownVariant }

// TypeError reports a Go type that has no postcard mapping.
type TypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("postcard: unsupported type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("postcard: unsupported type %s", e.Type)
}

func (e *TypeError) Is(target error) bool { return target == ErrUnsupported }
