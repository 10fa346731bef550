package schema

import "github.com/oy3o/postcard"

type Foo struct {
	A uint32 `postcard:"a"`
	B string `postcard:"b"`
}

// Bar is an enum with a unit variant A and a newtype variant B(Foo).
type Bar interface{ isBar() }

type (
	A struct{}
	B struct{ Foo Foo }
)

func (A) isBar()          {}
func (B) isBar()          {}
func (B) PostcardNewtype() {}

type Point struct {
	X int32
	Y int32
}

type Pair struct {
	Left  uint8
	Right string
}

func (Pair) PostcardTuple() {}

type Meters float64

type Wrapper struct {
	Inner Point
}

func (Wrapper) PostcardNewtype() {}

type Marker struct{}

type Kitchen struct {
	Flag    bool
	Small   int8
	Tiny    uint8
	Count   uint16
	Total   uint64
	Signed  int64
	Ratio   float32
	Letter  postcard.Char
	Name    string
	Blob    []byte
	Maybe   *uint32
	List    []Point
	Fixed   [3]uint8
	Lookup  map[string]int32
	Big     postcard.Uint128
	Shadow  string `postcard:"-"`
	private int
}

// Shape is an enum with every variant kind.
type Shape interface{ isShape() }

type (
	Empty   struct{}
	Radius  float32
	Segment struct {
		From Point
		To   Point
	}
	Span struct {
		Lo uint16
		Hi uint16
	}
)

func (Empty) isShape()   {}
func (Radius) isShape()  {}
func (Segment) isShape() {}
func (Span) isShape()    {}

func (Span) PostcardTuple() {}

type Node struct {
	Value uint8
	Next  *Node
}

type Custom struct{ raw uint16 }

func (c Custom) MarshalPostcard(s *postcard.Serializer) error { return s.SerializeU16(c.raw) }

type Described struct{ raw uint16 }

func (d Described) MarshalPostcard(s *postcard.Serializer) error { return s.SerializeU16(d.raw) }
func (Described) PostcardSchema() *DataModelType                 { return Prim(U16) }

func init() {
	postcard.RegisterEnum[Bar]("Bar", A{}, B{})
	postcard.RegisterEnum[Shape]("Shape", Empty{}, Radius(0), Segment{}, Span{})
}
