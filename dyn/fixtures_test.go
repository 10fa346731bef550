package dyn_test

import (
	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

// Enum has one variant of each kind.
type Enum interface{ isEnum() }

type (
	Struct struct {
		A uint8 `postcard:"a"`
		B uint8 `postcard:"b"`
	}
	Tuple struct {
		Flag  bool
		Count uint8
	}
	Newtype uint32
	Unit    struct{}
)

func (Struct) isEnum()       {}
func (Tuple) isEnum()        {}
func (Tuple) PostcardTuple() {}
func (Newtype) isEnum()      {}
func (Unit) isEnum()         {}

type Record struct {
	A *uint8 `postcard:"a"`
	B Enum   `postcard:"b"`
	C uint8  `postcard:"c"`
}

type Point struct {
	X int32
	Y int32
}

type Sample struct {
	Flag   bool
	Small  int8
	Wide   int64
	Count  uint16
	Index  uint
	Offset int
	Ratio  float32
	Exact  float64
	Letter postcard.Char
	Name   string
	Blob   []byte
	Maybe  *Point
	Never  *Point
	Path   []Point
	Fixed  [2]uint16
	Lookup map[uint16]string
	Big    postcard.Uint128
	Neg    postcard.Int128
	Kind   Enum
}

func init() {
	postcard.RegisterEnum[Enum]("Enum", Struct{}, Tuple{}, Newtype(0), Unit{})
}

func ownedOf[T any]() *schema.OwnedDataModelType {
	return schema.MustOf[T]().ToOwned()
}

func mustBytes(v any) []byte {
	b, err := postcard.ToBytes(v)
	if err != nil {
		panic(err)
	}
	return b
}

// enumBytes encodes e as an Enum. A single-field struct adds nothing on the
// wire, and keeps the interface type that a bare any would lose.
func enumBytes(e Enum) []byte {
	return mustBytes(struct{ V Enum }{e})
}
