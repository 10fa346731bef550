// Package dyn reserializes postcard bytes using only a runtime schema.
//
// A reserializer decodes one value at a time from a postcard.Deserializer and
// replays it into a Target, a generic sink modeled on the serialization data
// model. Targets are provided for plain Go values, JSON, YAML, CBOR and
// postcard itself; Encode goes the other way, from generic values back to
// postcard bytes.
package dyn

import "github.com/oy3o/postcard"

// Target receives a value as a stream of data-model events.
//
// Containers opened with a Begin method, and tuple and struct variants, are
// closed with End. Some, NewtypeStruct and NewtypeVariant wrap exactly the
// next complete value. Inside a struct, Field names the value that follows.
// Inside a map, keys and values alternate.
//
// Byte slices passed to Bytes may alias the source buffer; targets that
// retain them must copy.
type Target interface {
	Bool(v bool) error
	I8(v int8) error
	I16(v int16) error
	I32(v int32) error
	I64(v int64) error
	I128(v postcard.Int128) error
	U8(v uint8) error
	U16(v uint16) error
	U32(v uint32) error
	U64(v uint64) error
	U128(v postcard.Uint128) error
	F32(v float32) error
	F64(v float64) error
	Char(v rune) error
	Str(v string) error
	Bytes(v []byte) error

	None() error
	Some() error
	Unit() error

	UnitStruct(name string) error
	NewtypeStruct(name string) error
	BeginTupleStruct(name string, n int) error
	BeginStruct(name string, fields []string) error
	Field(name string) error

	UnitVariant(enum string, index uint32, variant string) error
	NewtypeVariant(enum string, index uint32, variant string) error
	BeginTupleVariant(enum string, index uint32, variant string, n int) error
	BeginStructVariant(enum string, index uint32, variant string, fields []string) error

	BeginSeq(n int) error
	BeginTuple(n int) error
	BeginMap(n int) error

	End() error
}
