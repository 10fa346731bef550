package dyn

import (
	"errors"
	"fmt"

	"github.com/oy3o/postcard"
)

var (
	// ErrMissingField is returned by Encode when a struct value lacks a field.
	ErrMissingField = errors.New("dyn: missing field")

	// ErrInvalidValue is returned by Encode when a value does not fit its schema.
	ErrInvalidValue = errors.New("dyn: invalid value")

	// ErrKeyType is returned by targets whose maps only accept certain key kinds.
	ErrKeyType = errors.New("dyn: unsupported map key")

	// ErrUnbalanced is returned when target events do not nest.
	ErrUnbalanced = errors.New("dyn: unbalanced End")
)

// Origin tells which side of a reserialization failed.
type Origin uint8

const (
	// OriginDeserialize means the input bytes were malformed for the schema.
	OriginDeserialize Origin = iota + 1
	// OriginSerialize means the target rejected a value.
	OriginSerialize
)

func (o Origin) String() string {
	switch o {
	case OriginDeserialize:
		return "deserialize"
	case OriginSerialize:
		return "serialize"
	}
	return fmt.Sprintf("Origin(%d)", uint8(o))
}

// Error tags a reserialization failure with its origin.
type Error struct {
	Origin Origin
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// OriginOf reports the origin of err, or zero if it did not come from a
// reserialization.
func OriginOf(err error) Origin {
	var e *Error
	if errors.As(err, &e) {
		return e.Origin
	}
	return 0
}

func sourceErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Origin: OriginDeserialize, Err: err}
}

func targetErr(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Origin: OriginSerialize, Err: err}
}

// missingElements reports a container with fewer elements than its shape
// requires, for example "invalid length 1, expected tuple variant E::V with
// 2 elements".
func missingElements(have int, expected string, want int) error {
	plural := "s"
	if want == 1 {
		plural = ""
	}
	return fmt.Errorf("%w: invalid length %d, expected %s with %d element%s",
		postcard.ErrLengthMismatch, have, expected, want, plural)
}

func expectTuple() string                  { return "a tuple" }
func expectTupleStruct(name string) string { return "tuple struct " + name }
func expectStruct(name string) string      { return "struct " + name }
func expectEnum(name string) string        { return "enum " + name }

func expectTupleVariant(enum, variant string) string {
	return "tuple variant " + enum + "::" + variant
}

func expectStructVariant(enum, variant string) string {
	return "struct variant " + enum + "::" + variant
}
