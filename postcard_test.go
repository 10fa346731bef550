package postcard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Serializer Test Suite ---

type SerializerTestSuite struct {
	suite.Suite
}

func (s *SerializerTestSuite) TestPrimitives() {
	cases := []struct {
		name string
		v    any
		want []byte
	}{
		{"Unit", struct{}{}, []byte{}},
		{"False", false, []byte{0x00}},
		{"True", true, []byte{0x01}},
		{"U8", uint8(5), []byte{0x05}},
		{"U16Zero", uint16(0), []byte{0x00}},
		{"U16Varint", uint16(300), []byte{0xAC, 0x02}},
		{"U16Max", uint16(math.MaxUint16), []byte{0xFF, 0xFF, 0x03}},
		{"U32Max", uint32(math.MaxUint32), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"U64Max", uint64(math.MaxUint64), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
		{"I8Negative", int8(-1), []byte{0xFF}},
		{"I16MinusOne", int16(-1), []byte{0x01}},
		{"I16One", int16(1), []byte{0x02}},
		{"I16Min", int16(math.MinInt16), []byte{0xFF, 0xFF, 0x03}},
		{"I32MinusSixtyFour", int32(-64), []byte{0x7F}},
		{"I32SixtyFour", int32(64), []byte{0x80, 0x01}},
		{"F32", float32(1.0), []byte{0x00, 0x00, 0x80, 0x3F}},
		{"F64", float64(-2.0), []byte{0, 0, 0, 0, 0, 0, 0x00, 0xC0}},
		{"CharASCII", Char('A'), []byte{0x01, 0x41}},
		{"CharEuro", Char('€'), []byte{0x03, 0xE2, 0x82, 0xAC}},
		{"String", "helLO!", []byte{0x06, 'h', 'e', 'l', 'L', 'O', '!'}},
		{"Bytes", []byte{0x01, 0x02, 0x03, 0x04}, []byte{0x04, 0x01, 0x02, 0x03, 0x04}},
		{"Some", Ptr(uint8(5)), []byte{0x01, 0x05}},
		{"None", (*uint8)(nil), []byte{0x00}},
		{"Array", [3]uint8{1, 2, 3}, []byte{0x01, 0x02, 0x03}},
		{"Seq", []uint16{1, 300}, []byte{0x02, 0x01, 0xAC, 0x02}},
		{"U128Carry", Uint128{Hi: 1}, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x02}},
		{"I128MinusOne", I128(-1), []byte{0x01}},
	}
	for _, tc := range cases {
		s.T().Run(tc.name, func(t *testing.T) {
			got, err := ToBytes(tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			size, err := SerializedSize(tc.v)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), size)
		})
	}
}

func (s *SerializerTestSuite) TestStructsAndEnums() {
	cases := []struct {
		name string
		v    any
		want []byte
	}{
		{"Struct", basicU8S{St: 1, Ei: 0xFE, Sf: 300, Tt: 0x7F}, []byte{0x01, 0xFE, 0xAC, 0x02, 0x7F}},
		{"RefStruct", refStruct{Bytes: []byte{0x01, 0x10, 0x02, 0x20}, Str: "hElLo"},
			[]byte{0x04, 0x01, 0x10, 0x02, 0x20, 0x05, 'h', 'E', 'l', 'L', 'o'}},
		{"SkippedFields", skipped{A: 1, Hidden: "x", B: 2, lower: 3}, []byte{0x01, 0x02}},
		{"Tuple", struct {
			A uint8
			B uint16
		}{0x12, 0x7F}, []byte{0x12, 0x7F}},
		{"EnumNewtypeU16", withEnum{Value: Bib(math.MaxUint16)}, []byte{0x00, 0x00, 0xFF, 0xFF, 0x03, 0x00}},
		{"EnumNewtypeU64", withEnum{Value: Bim(math.MaxUint64)},
			[]byte{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x00}},
		{"EnumNewtypeU8", withEnum{Value: Bap(0xFF)}, []byte{0x00, 0x02, 0xFF, 0x00}},
		{"EnumNewtypeStruct", withEnum{Value: Kim{enumStruct{Eight: 0xF0, Sixt: 0x1234}}}, []byte{0x00, 0x03, 0xF0, 0xB4, 0x24, 0x00}},
		{"EnumStructVariant", withEnum{Value: Chi{A: 0x0F, B: 5}}, []byte{0x00, 0x04, 0x0F, 0x05, 0x00}},
		{"EnumTupleVariant", withEnum{Value: Sho{A: 0x69, B: 0x07}}, []byte{0x00, 0x05, 0x69, 0x07, 0x00}},
		{"EnumUnitVariant", withEnum{Before: 9, Value: Unit{}, After: 8}, []byte{0x09, 0x06, 0x08}},
		{"GreekBeta", []Greek{Beta(4)}, []byte{0x01, 0x01, 0x04}},
		{"GreekAlpha", []Greek{Alpha{}}, []byte{0x01, 0x00}},
		{"SortedMap", map[uint8]uint8{4: 8, 1: 5, 3: 7, 2: 6}, []byte{0x04, 0x01, 0x05, 0x02, 0x06, 0x03, 0x07, 0x04, 0x08}},
		{"FixedLE", FixedLE[uint32]{0x12345678}, []byte{0x78, 0x56, 0x34, 0x12}},
		{"FixedBE", FixedBE[int16]{-2}, []byte{0xFF, 0xFE}},
		{"SpannedIsTransparent", Spanned[string]{Start: 7, End: 9, Value: "hi"}, []byte{0x02, 'h', 'i'}},
	}
	for _, tc := range cases {
		s.T().Run(tc.name, func(t *testing.T) {
			got, err := ToBytes(tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func (s *SerializerTestSuite) TestErrors() {
	s.T().Run("BufferFull", func(t *testing.T) {
		_, err := ToSlice(uint32(300), make([]byte, 1))
		assert.ErrorIs(t, err, ErrBufferFull)
	})

	s.T().Run("ExactFit", func(t *testing.T) {
		out, err := ToSlice(uint32(300), make([]byte, 2))
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAC, 0x02}, out)
	})

	s.T().Run("UnsupportedType", func(t *testing.T) {
		_, err := ToBytes(make(chan int))
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	s.T().Run("UnregisteredInterface", func(t *testing.T) {
		_, err := ToBytes(struct{ X any }{X: 1})
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	s.T().Run("NilEnum", func(t *testing.T) {
		_, err := ToBytes(withEnum{})
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	s.T().Run("UnknownSeqLength", func(t *testing.T) {
		ser := NewSerializer(NewBufferFlavor(nil))
		assert.ErrorIs(t, ser.SerializeSeqLen(-1), ErrUnsupported)
	})

	s.T().Run("InvalidChar", func(t *testing.T) {
		_, err := ToBytes(Char(0xD800))
		assert.ErrorIs(t, err, ErrBadChar)
	})
}

func (s *SerializerTestSuite) TestAppend() {
	out, err := Append([]byte{0xAA}, uint16(300))
	s.Require().NoError(err)
	s.Assert().Equal([]byte{0xAA, 0xAC, 0x02}, out)
}

// --- Deserializer Test Suite ---

type DeserializerTestSuite struct {
	suite.Suite
}

func roundTrip[T any](t *testing.T, v T) {
	t.Helper()
	b, err := ToBytes(v)
	require.NoError(t, err)
	got, rest, err := TakeFromBytes[T](b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, v, got)
}

func (s *DeserializerTestSuite) TestRoundTrip() {
	s.T().Run("Struct", func(t *testing.T) {
		roundTrip(t, basicU8S{St: 0xABCD, Ei: 0xFE, Sf: 0x1234_4321_ABCD_DCBA, Tt: 0xACAC_ACAC})
	})
	s.T().Run("Enums", func(t *testing.T) {
		for _, v := range []DataEnum{Bib(0xFFFF), Bim(math.MaxUint64), Bap(1), Kim{enumStruct{1, 2}}, Chi{3, 4}, Sho{5, 6}, Unit{}} {
			roundTrip(t, withEnum{Before: 1, Value: v, After: 2})
		}
	})
	s.T().Run("Nested", func(t *testing.T) {
		roundTrip(t, nested{
			Name:  "postcard",
			Opt:   Ptr(uint32(70000)),
			Items: []basicU8S{{St: 1}, {Sf: math.MaxUint64}},
			Table: map[string]int32{"a": -1, "b": math.MinInt32},
			Pair:  [2]int16{math.MinInt16, math.MaxInt16},
			C:     'ß',
			Big:   Uint128{Hi: math.MaxUint64, Lo: 3},
			Neg:   I128(math.MinInt64),
		})
	})
	s.T().Run("EmptyCollectionsDecodeAsNil", func(t *testing.T) {
		roundTrip(t, nested{})
	})
	s.T().Run("Fixint", func(t *testing.T) {
		roundTrip(t, struct {
			A FixedLE[int64]
			B FixedBE[uint16]
			C FixedLE[uint8]
		}{FixedLE[int64]{-5}, FixedBE[uint16]{0xBEEF}, FixedLE[uint8]{7}})
	})
	s.T().Run("PointerToMarshaler", func(t *testing.T) {
		b, err := ToBytes(&FixedLE[uint16]{0x0102})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02, 0x01}, b)
		roundTrip(t, &FixedLE[uint16]{0x0102})
		roundTrip(t, (*FixedLE[uint16])(nil))
	})
	s.T().Run("ZeroWidthElements", func(t *testing.T) {
		roundTrip(t, []struct{}{{}, {}, {}})
		roundTrip(t, [][0]uint8{{}, {}})
	})
	s.T().Run("SkippedFields", func(t *testing.T) {
		b, err := ToBytes(skipped{A: 1, Hidden: "x", B: 2, lower: 3})
		require.NoError(t, err)
		got, err := FromBytes[skipped](b)
		require.NoError(t, err)
		assert.Equal(t, skipped{A: 1, B: 2}, got)
	})
}

func (s *DeserializerTestSuite) TestZeroWidthLength() {
	huge := AppendVarint(nil, uint64(1)<<62)

	_, err := FromBytes[[]struct{}](huge)
	s.Assert().ErrorIs(err, ErrBadLength)
	_, err = FromBytes[map[struct{}]Unit](huge)
	s.Assert().ErrorIs(err, ErrBadLength)
	_, err = FromBytesCrc[[]Unit](huge, castagnoli())
	s.Assert().ErrorIs(err, ErrBadLength)

	got, err := FromBytes[[]struct{}](AppendVarint(nil, uint32(1000)))
	s.Require().NoError(err)
	s.Assert().Len(got, 1000)

	_, err = FromBytes[[]uint8](huge)
	s.Assert().ErrorIs(err, ErrUnexpectedEnd)
}

func (s *DeserializerTestSuite) TestRemainder() {
	v, rest, err := TakeFromBytes[uint8]([]byte{0x05, 0x06, 0x07})
	s.Require().NoError(err)
	s.Assert().Equal(uint8(5), v)
	s.Assert().Equal([]byte{0x06, 0x07}, rest)
}

func (s *DeserializerTestSuite) TestSpanned() {
	type framed struct {
		A uint8
		S Spanned[string]
		B uint8
	}
	got, err := FromBytes[framed]([]byte{0x01, 0x02, 'h', 'i', 0x02})
	s.Require().NoError(err)
	s.Assert().Equal(uint8(1), got.A)
	s.Assert().Equal("hi", got.S.Value)
	s.Assert().Equal(1, got.S.Start)
	s.Assert().Equal(4, got.S.End)
	s.Assert().Equal(uint8(2), got.B)
}

func (s *DeserializerTestSuite) TestBorrowedBytes() {
	input := []byte{0x03, 0xAA, 0xBB, 0xCC, 0x01}
	d := NewDeserializer(NewSliceSource(input))
	b, err := d.DeserializeBytes()
	s.Require().NoError(err)
	s.Assert().Equal([]byte{0xAA, 0xBB, 0xCC}, b)
	input[1] = 0x11
	s.Assert().Equal(byte(0x11), b[0], "explicit byte reads borrow from the input")
	s.Assert().Equal(4, d.Offset())
}

func (s *DeserializerTestSuite) TestErrors() {
	s.T().Run("BadBool", func(t *testing.T) {
		_, err := FromBytes[bool]([]byte{0x02})
		assert.ErrorIs(t, err, ErrBadBool)
	})
	s.T().Run("BadOption", func(t *testing.T) {
		_, err := FromBytes[*uint8]([]byte{0x02, 0x05})
		assert.ErrorIs(t, err, ErrBadOption)
	})
	s.T().Run("VarintLastByteOverflow", func(t *testing.T) {
		_, err := FromBytes[uint16]([]byte{0xFF, 0xFF, 0x04})
		assert.ErrorIs(t, err, ErrBadVarint)
	})
	s.T().Run("VarintTooLong", func(t *testing.T) {
		_, err := FromBytes[uint32]([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01})
		assert.ErrorIs(t, err, ErrBadVarint)
	})
	s.T().Run("VarintMaxAccepted", func(t *testing.T) {
		v, err := FromBytes[uint16]([]byte{0xFF, 0xFF, 0x03})
		require.NoError(t, err)
		assert.Equal(t, uint16(math.MaxUint16), v)
	})
	s.T().Run("UnexpectedEnd", func(t *testing.T) {
		_, err := FromBytes[uint32]([]byte{0x80})
		assert.ErrorIs(t, err, ErrUnexpectedEnd)
		_, err = FromBytes[string]([]byte{0x05, 'a'})
		assert.ErrorIs(t, err, ErrUnexpectedEnd)
		_, err = FromBytes[float64]([]byte{0, 0, 0})
		assert.ErrorIs(t, err, ErrUnexpectedEnd)
	})
	s.T().Run("BadUTF8", func(t *testing.T) {
		_, err := FromBytes[string]([]byte{0x02, 0xFF, 0xFE})
		assert.ErrorIs(t, err, ErrBadUTF8)
	})
	s.T().Run("BadChar", func(t *testing.T) {
		for _, in := range [][]byte{
			{0x05, 'a', 'a', 'a', 'a', 'a'},
			{0x00},
			{0x01, 0x80},
			{0x03, 0xED, 0xA0, 0x80},
			{0x02, 'a', 'b'},
		} {
			_, err := FromBytes[Char](in)
			assert.ErrorIs(t, err, ErrBadChar, "% x", in)
		}
	})
	s.T().Run("UnknownVariant", func(t *testing.T) {
		_, err := FromBytes[withEnum]([]byte{0x00, 0x07})
		require.ErrorIs(t, err, ErrUnknownVariant)
		var uv *UnknownVariantError
		require.ErrorAs(t, err, &uv)
		assert.Equal(t, uint32(7), uv.Index)
		assert.Equal(t, len(dataEnumInfo.Variants), uv.Count)
	})
	s.T().Run("NotAPointer", func(t *testing.T) {
		err := NewDeserializer(NewSliceSource(nil)).Deserialize(5)
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestSerializerSuite(t *testing.T) {
	suite.Run(t, new(SerializerTestSuite))
}

func TestDeserializerSuite(t *testing.T) {
	suite.Run(t, new(DeserializerTestSuite))
}
