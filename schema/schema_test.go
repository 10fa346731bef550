package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oy3o/postcard"
)

// --- Derivation ---

type DeriveTestSuite struct {
	suite.Suite
}

func (s *DeriveTestSuite) TestPrimitives() {
	cases := []struct {
		name string
		typ  reflect.Type
		want Kind
	}{
		{"Bool", reflect.TypeFor[bool](), Bool},
		{"I8", reflect.TypeFor[int8](), I8},
		{"U8", reflect.TypeFor[uint8](), U8},
		{"I16", reflect.TypeFor[int16](), I16},
		{"I32", reflect.TypeFor[int32](), I32},
		{"I64", reflect.TypeFor[int64](), I64},
		{"Int", reflect.TypeFor[int](), Isize},
		{"U16", reflect.TypeFor[uint16](), U16},
		{"U32", reflect.TypeFor[uint32](), U32},
		{"U64", reflect.TypeFor[uint64](), U64},
		{"Uint", reflect.TypeFor[uint](), Usize},
		{"U128", reflect.TypeFor[postcard.Uint128](), U128},
		{"I128", reflect.TypeFor[postcard.Int128](), I128},
		{"F32", reflect.TypeFor[float32](), F32},
		{"F64", reflect.TypeFor[float64](), F64},
		{"NamedFloat", reflect.TypeFor[Meters](), F64},
		{"Char", reflect.TypeFor[postcard.Char](), Char},
		{"String", reflect.TypeFor[string](), String},
		{"Bytes", reflect.TypeFor[[]byte](), ByteArray},
		{"Unit", reflect.TypeFor[struct{}](), Unit},
		{"Schema", reflect.TypeFor[OwnedDataModelType](), Schema},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := For(tc.typ)
			s.Require().NoError(err)
			s.Equal(tc.want, got.Kind)
			s.Same(Prim(tc.want), got)
		})
	}
}

func (s *DeriveTestSuite) TestComposites() {
	got := MustOf[map[string]*[]int16]()
	s.True(Equal(MapOf(Prim(String), OptionOf(SeqOf(Prim(I16)))), got))

	arr := MustOf[[3]uint32]()
	s.True(Equal(TupleOf(Prim(U32), Prim(U32), Prim(U32)), arr))

	anon := MustOf[struct {
		A uint8
		B string
	}]()
	s.True(Equal(TupleOf(Prim(U8), Prim(String)), anon))
}

func (s *DeriveTestSuite) TestStructShapes() {
	point := StructOf("Point", StructData(Field("X", Prim(I32)), Field("Y", Prim(I32))))
	s.True(Equal(point, MustOf[Point]()))
	s.True(Equal(StructOf("Pair", TupleData(Prim(U8), Prim(String))), MustOf[Pair]()))
	s.True(Equal(StructOf("Wrapper", NewtypeData(point)), MustOf[Wrapper]()))
	s.True(Equal(StructOf("Marker", UnitData()), MustOf[Marker]()))
}

func (s *DeriveTestSuite) TestKitchenSink() {
	got, err := Of[Kitchen]()
	s.Require().NoError(err)
	s.Require().Equal(Struct, got.Kind)

	var names []string
	for _, f := range got.Data.Fields {
		names = append(names, f.Name)
	}
	s.Equal([]string{"Flag", "Small", "Tiny", "Count", "Total", "Signed", "Ratio", "Letter",
		"Name", "Blob", "Maybe", "List", "Fixed", "Lookup", "Big"}, names)
	s.Equal(Char, got.Data.Fields[7].Type.Kind)
	s.Equal(ByteArray, got.Data.Fields[9].Type.Kind)
	s.Equal(Option, got.Data.Fields[10].Type.Kind)
	s.Equal("struct Kitchen { Flag: bool, Small: i8, Tiny: u8, Count: u16, Total: u64, Signed: i64, "+
		"Ratio: f32, Letter: char, Name: String, Blob: [u8], Maybe: Option<u32>, List: [Point], "+
		"Fixed: [u8; 3], Lookup: Map<String, i32>, Big: u128 }", got.String())
}

func (s *DeriveTestSuite) TestEnum() {
	got := MustOf[Shape]()
	point := MustOf[Point]()
	want := EnumOf("Shape",
		Variant{Name: "Empty", Data: UnitData()},
		Variant{Name: "Radius", Data: NewtypeData(Prim(F32))},
		Variant{Name: "Segment", Data: StructData(Field("From", point), Field("To", point))},
		Variant{Name: "Span", Data: TupleData(Prim(U16), Prim(U16))},
	)
	s.True(Equal(want, got))
	s.Equal("enum Shape { Empty, Radius(f32), Segment { From: Point, To: Point }, Span(u16, u16) }", got.String())
}

func (s *DeriveTestSuite) TestWrappers() {
	s.True(Equal(MustOf[uint64](), MustOf[postcard.Spanned[uint64]]()))
	s.True(Equal(TupleOf(Prim(U8), Prim(U8), Prim(U8), Prim(U8)), MustOf[postcard.FixedLE[uint32]]()))
	s.True(Equal(TupleOf(Prim(U8), Prim(U8)), MustOf[postcard.FixedBE[int16]]()))
	s.Same(Prim(U16), MustOf[Described]())
}

func (s *DeriveTestSuite) TestErrors() {
	_, err := Of[Node]()
	s.ErrorIs(err, ErrRecursive)

	_, err = Of[Custom]()
	s.ErrorIs(err, postcard.ErrUnsupported)

	_, err = Of[chan int]()
	s.ErrorIs(err, postcard.ErrUnsupported)

	_, err = Of[interface{ Unregistered() }]()
	s.ErrorIs(err, postcard.ErrUnsupported)

	s.Panics(func() { MustOf[Node]() })
}

func (s *DeriveTestSuite) TestCached() {
	a, err := Of[Segment]()
	s.Require().NoError(err)
	b, err := For(reflect.TypeFor[Segment]())
	s.Require().NoError(err)
	s.Same(a, b)
}

func TestDeriveSuite(t *testing.T) {
	suite.Run(t, new(DeriveTestSuite))
}

// --- Model ---

func TestEqual(t *testing.T) {
	a := StructOf("Foo", StructData(Field("a", Prim(U32)), Field("b", Prim(String))))
	b := StructOf("Foo", StructData(Field("a", Prim(U32)), Field("b", Prim(String))))
	assert.True(t, Equal(a, b))

	renamed := StructOf("Foo", StructData(Field("a", Prim(U32)), Field("c", Prim(String))))
	assert.False(t, Equal(a, renamed))

	retyped := StructOf("Foo", StructData(Field("a", Prim(U64)), Field("b", Prim(String))))
	assert.False(t, Equal(a, retyped))

	assert.False(t, Equal(SeqOf(Prim(U8)), Prim(ByteArray)))
	assert.False(t, Equal(TupleOf(Prim(U8)), TupleOf(Prim(U8), Prim(U8))))
	assert.False(t, Equal(EnumOf("E", Variant{Name: "A"}), EnumOf("E", Variant{Name: "B"})))
	assert.False(t, Equal(nil, a))
	assert.True(t, Equal(nil, nil))
}

func TestOwned(t *testing.T) {
	shape := MustOf[Shape]()
	o := shape.ToOwned()
	assert.True(t, o.Equal(MustOf[Shape]().ToOwned()))
	assert.True(t, Equal(shape, o.Borrow()))

	c := o.Clone()
	require.True(t, o.Equal(c))
	c.Variants[1].Data.Newtype.Kind = F64
	assert.False(t, o.Equal(c))
	assert.Equal(t, F32, o.Variants[1].Data.Newtype.Kind)

	assert.Equal(t, o.Hash(), MustOf[Shape]().ToOwned().Hash())
	assert.NotEqual(t, o.Hash(), c.Hash())
}

func TestPseudocode(t *testing.T) {
	cases := []struct {
		name string
		typ  *DataModelType
		top  bool
		want string
	}{
		{"Prim", Prim(U8), true, "u8"},
		{"Bytes", Prim(ByteArray), true, "[u8]"},
		{"Unit", Prim(Unit), true, "()"},
		{"Option", OptionOf(Prim(String)), true, "Option<String>"},
		{"Seq", SeqOf(Prim(I64)), true, "[i64]"},
		{"Array", TupleOf(Prim(U8), Prim(U8)), true, "[u8; 2]"},
		{"Tuple", TupleOf(Prim(U8), Prim(Bool)), true, "(u8, bool)"},
		{"EmptyTuple", TupleOf(), true, "()"},
		{"Map", MapOf(Prim(Char), Prim(F64)), true, "Map<char, f64>"},
		{"Struct", MustOf[Foo](), true, "struct Foo { a: u32, b: String }"},
		{"NestedStruct", MustOf[Foo](), false, "Foo"},
		{"UnitStruct", MustOf[Marker](), true, "struct Marker"},
		{"TupleStruct", MustOf[Pair](), true, "struct Pair(u8, String)"},
		{"Newtype", MustOf[Wrapper](), true, "struct Wrapper(Point)"},
		{"Enum", MustOf[Bar](), true, "enum Bar { A, B(Foo) }"},
		{"NestedEnum", SeqOf(MustOf[Bar]()), true, "[Bar]"},
		{"Schema", Prim(Schema), true, "Schema"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.typ.ToOwned().Pseudocode(tc.top))
		})
	}
}

func TestIsPrimitive(t *testing.T) {
	assert.True(t, Prim(String).ToOwned().IsPrimitive())
	assert.True(t, OptionOf(Prim(U8)).ToOwned().IsPrimitive())
	assert.True(t, MapOf(Prim(U8), Prim(String)).ToOwned().IsPrimitive())
	assert.False(t, OptionOf(MustOf[Foo]()).ToOwned().IsPrimitive())
	assert.False(t, SeqOf(Prim(U8)).ToOwned().IsPrimitive())
	assert.False(t, MustOf[Bar]().ToOwned().IsPrimitive())
}

func TestAllUsedTypes(t *testing.T) {
	used := MustOf[Shape]().ToOwned().AllUsedTypes()
	var got []string
	for _, u := range used {
		got = append(got, u.Pseudocode(false))
	}
	assert.Equal(t, []string{"Shape", "f32", "Point", "i32", "u16"}, got)
}

func TestMaxSize(t *testing.T) {
	cases := []struct {
		name string
		typ  *DataModelType
		want int
		ok   bool
	}{
		{"U8", Prim(U8), 1, true},
		{"U16", Prim(U16), 3, true},
		{"I32", Prim(I32), 5, true},
		{"U64", Prim(U64), 10, true},
		{"U128", Prim(U128), 19, true},
		{"Char", Prim(Char), 5, true},
		{"Usize", Prim(Usize), 0, false},
		{"String", Prim(String), 0, false},
		{"Seq", SeqOf(Prim(U8)), 0, false},
		{"Option", OptionOf(Prim(U32)), 6, true},
		{"Point", MustOf[Point](), 10, true},
		{"Array", MustOf[[4]uint16](), 12, true},
		{"Shape", MustOf[Shape](), 21, true},
		{"Bar", MustOf[Bar](), 0, false},
		{"EmptyEnum", EnumOf("Never"), 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, ok := MaxSize(tc.typ)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestZeroWidth(t *testing.T) {
	empty := StructOf("Empty", StructData(Field("u", Prim(Unit))))
	assert.True(t, Prim(Unit).ToOwned().ZeroWidth())
	assert.True(t, Prim(UnitStruct).ToOwned().ZeroWidth())
	assert.True(t, TupleOf().ToOwned().ZeroWidth())
	assert.True(t, TupleOf(Prim(Unit), empty).ToOwned().ZeroWidth())
	assert.True(t, StructOf("Wrap", NewtypeData(empty)).ToOwned().ZeroWidth())
	assert.True(t, StructOf("Marker", UnitData()).ToOwned().ZeroWidth())

	assert.False(t, Prim(U8).ToOwned().ZeroWidth())
	assert.False(t, OptionOf(Prim(Unit)).ToOwned().ZeroWidth())
	assert.False(t, SeqOf(Prim(Unit)).ToOwned().ZeroWidth())
	assert.False(t, EnumOf("E", Variant{Name: "A", Data: UnitData()}).ToOwned().ZeroWidth())
	assert.False(t, TupleOf(Prim(Unit), Prim(Bool)).ToOwned().ZeroWidth())
}

func TestMaxSizeBoundsEncoding(t *testing.T) {
	n, ok := MaxSize(MustOf[Point]())
	require.True(t, ok)
	b, err := postcard.ToBytes(Point{X: -1 << 31, Y: 1<<31 - 1})
	require.NoError(t, err)
	assert.Len(t, b, n)
}

// --- Key ---

func TestKeyStability(t *testing.T) {
	k, err := ForPath[Bar]("test_path")
	require.NoError(t, err)
	assert.Equal(t, Key{139, 128, 52, 27, 107, 8, 218, 98}, k)
}

func TestKeyTypePunning(t *testing.T) {
	type Words []uint16
	type Renamed struct {
		A uint32 `postcard:"a"`
		B string `postcard:"b"`
	}

	k1, _ := ForPath[[]uint16]("test_path")
	k2, _ := ForPath[Words]("test_path")
	k3, _ := ForPath[[]uint8]("test_path")
	k4, _ := ForPath[[]uint16]("test_patt")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)

	// Type names are not hashed; field names are.
	f1, _ := ForPath[Foo]("p")
	f2, _ := ForPath[Renamed]("p")
	f3, _ := ForPath[Point]("p")
	assert.Equal(t, f1, f2)
	assert.NotEqual(t, f1, f3)

	assert.Equal(t, KeyFor("p", MustOf[Foo]()), ForOwned("p", MustOf[Foo]().ToOwned()))
	assert.Len(t, k1.String(), 16)
}

// --- Encoding ---

func TestOwnedPostcard(t *testing.T) {
	b, err := postcard.ToBytes(*OptionOf(Prim(U8)).ToOwned())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x02}, b)

	o := MustOf[Shape]().ToOwned()
	b, err = postcard.ToBytes(*o)
	require.NoError(t, err)
	canon, err := o.Canonical()
	require.NoError(t, err)
	assert.Equal(t, b, canon)

	got, err := postcard.FromBytes[OwnedDataModelType](b)
	require.NoError(t, err)
	assert.True(t, o.Equal(&got))
}

func TestOwnedPostcardPointer(t *testing.T) {
	o := &OwnedDataModelType{Kind: U8}
	b, err := postcard.ToBytes(o)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, byte(U8)}, b)

	got, err := postcard.FromBytes[*OwnedDataModelType](b)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, o.Equal(got))

	b, err = postcard.ToBytes((*OwnedDataModelType)(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, b)
	got, err = postcard.FromBytes[*OwnedDataModelType](b)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOwnedPostcardErrors(t *testing.T) {
	_, err := postcard.FromBytes[OwnedDataModelType]([]byte{27})
	assert.ErrorIs(t, err, postcard.ErrUnknownVariant)

	_, err = postcard.FromBytes[OwnedDataModelType]([]byte{24, 0x01, 'S', 9})
	assert.ErrorIs(t, err, postcard.ErrUnknownVariant)

	deep := make([]byte, MaxDepth+2)
	for i := range deep {
		deep[i] = byte(Option)
	}
	deep = append(deep, byte(U8))
	_, err = postcard.FromBytes[OwnedDataModelType](deep)
	assert.ErrorIs(t, err, ErrTooDeep)

	_, err = postcard.FromBytes[OwnedDataModelType]([]byte{byte(Seq)})
	assert.ErrorIs(t, err, postcard.ErrUnexpectedEnd)
}

func TestSchemaOfSchema(t *testing.T) {
	type Envelope struct {
		Key    Key
		Schema OwnedDataModelType
	}
	s := MustOf[Envelope]()
	assert.Equal(t, "struct Envelope { Key: [u8; 8], Schema: Schema }", s.String())
}
