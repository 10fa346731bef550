package dyn

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

// Encode writes v to ser as a value shaped like s. It accepts what the
// targets in this package produce, after a round trip through JSON, YAML or
// CBOR decoding into any, as well as ordinary Go values:
//
//	integers    any Go integer, integral floats, json numbers, decimal strings
//	floats      any Go number; nil stands for NaN
//	bytes       []byte, or a list of small integers
//	option      nil for none, anything else (pointers are followed) for some
//	seq, tuple  any slice or array
//	map         Map, or any Go map; entries are written in encoded key order
//	struct      *Struct, Map, a string-keyed Go map or a Go struct
//	enum        *Variant, the variant name, a one-entry map from name to
//	            payload, or a Go value whose type name is the variant name
//
// Struct fields are matched by name in any order and unknown fields are
// ignored.
func Encode(s *schema.OwnedDataModelType, v any, ser *postcard.Serializer) error {
	e := encoder{ser: ser}
	return e.value(s, v)
}

// EncodeToBytes is Encode into a fresh buffer.
func EncodeToBytes(s *schema.OwnedDataModelType, v any) ([]byte, error) {
	f := postcard.NewBufferFlavor(nil)
	if err := Encode(s, v, postcard.NewSerializer(f)); err != nil {
		return nil, err
	}
	return f.B, nil
}

// FromJSON encodes a JSON document as a value shaped like s.
func FromJSON(s *schema.OwnedDataModelType, doc []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return EncodeToBytes(s, v)
}

type encoder struct {
	ser *postcard.Serializer
}

func invalid(v any, want string) error {
	return fmt.Errorf("%w: invalid type %T, expected %s", ErrInvalidValue, v, want)
}

func outOfRange(v any, kind schema.Kind) error {
	return fmt.Errorf("%w: %v out of range for %s", ErrInvalidValue, v, kind)
}

// deref follows pointers other than the package's own value types.
func deref(v any) any {
	switch v.(type) {
	case nil, *Struct, *TupleStruct, *Newtype, *UnitStruct, *Variant, *schema.OwnedDataModelType, *big.Int:
		return v
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func (e *encoder) value(s *schema.OwnedDataModelType, v any) error {
	if s.Kind != schema.Option {
		v = deref(v)
	}
	switch s.Kind {
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			return invalid(v, "a boolean")
		}
		return e.ser.SerializeBool(b)
	case schema.I8, schema.I16, schema.I32, schema.I64, schema.Isize,
		schema.U8, schema.U16, schema.U32, schema.U64, schema.Usize:
		return e.integer(s.Kind, v)
	case schema.I128:
		n, err := toBig(v)
		if err != nil {
			return err
		}
		i, err := postcard.Int128FromBig(n)
		if err != nil {
			return outOfRange(n, s.Kind)
		}
		return e.ser.SerializeI128(i)
	case schema.U128:
		n, err := toBig(v)
		if err != nil {
			return err
		}
		u, err := postcard.Uint128FromBig(n)
		if err != nil {
			return outOfRange(n, s.Kind)
		}
		return e.ser.SerializeU128(u)
	case schema.F32:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		return e.ser.SerializeF32(float32(f))
	case schema.F64:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		return e.ser.SerializeF64(f)
	case schema.Char:
		return e.char(v)
	case schema.String:
		str, ok := v.(string)
		if !ok {
			return invalid(v, "a string")
		}
		return e.ser.SerializeStr(str)
	case schema.ByteArray:
		b, err := toBytes(v)
		if err != nil {
			return err
		}
		return e.ser.SerializeBytes(b)
	case schema.Option:
		v = deref(v)
		if v == nil {
			return e.ser.SerializeNone()
		}
		if err := e.ser.SerializeSome(); err != nil {
			return err
		}
		return e.value(s.Elem, v)
	case schema.Unit:
		if !isUnit(v) {
			return invalid(v, "unit")
		}
		return nil
	case schema.UnitStruct:
		if !isUnit(v) {
			return invalid(v, "unit struct")
		}
		return nil
	case schema.Seq:
		elems, ok := toList(v)
		if !ok {
			return invalid(v, "a sequence")
		}
		if err := e.ser.SerializeSeqLen(len(elems)); err != nil {
			return err
		}
		return e.elems(s.Elem, elems)
	case schema.Tuple:
		elems, ok := toList(v)
		if !ok {
			return invalid(v, "a tuple")
		}
		return e.tuple(s.Elems, elems, expectTuple())
	case schema.Map:
		return e.mapping(s, v)
	case schema.Struct:
		return e.data(&s.Data, unwrapStruct(v, &s.Data), expectStruct(s.Name), expectTupleStruct(s.Name))
	case schema.Enum:
		return e.enum(s, v)
	case schema.Schema:
		return e.schema(v)
	}
	return fmt.Errorf("%w: unknown schema kind %s", ErrInvalidValue, s.Kind)
}

func (e *encoder) elems(s *schema.OwnedDataModelType, elems []any) error {
	for _, el := range elems {
		if err := e.value(s, el); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) tuple(s []schema.OwnedDataModelType, elems []any, shape string) error {
	if len(elems) != len(s) {
		return missingElements(len(elems), shape, len(s))
	}
	for i := range s {
		if err := e.value(&s[i], elems[i]); err != nil {
			return err
		}
	}
	return nil
}

func isUnit(v any) bool {
	switch v := v.(type) {
	case nil, UnitStruct, *UnitStruct:
		return true
	case []any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Struct && rv.NumField() == 0
}

func (e *encoder) integer(kind schema.Kind, v any) error {
	switch kind {
	case schema.I8:
		n, err := toInt(v, math.MinInt8, math.MaxInt8, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeI8(int8(n))
	case schema.I16:
		n, err := toInt(v, math.MinInt16, math.MaxInt16, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeI16(int16(n))
	case schema.I32:
		n, err := toInt(v, math.MinInt32, math.MaxInt32, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeI32(int32(n))
	case schema.I64:
		n, err := toInt(v, math.MinInt64, math.MaxInt64, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeI64(n)
	case schema.Isize:
		n, err := toInt(v, math.MinInt, math.MaxInt, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeIsize(int(n))
	case schema.U8:
		n, err := toUint(v, math.MaxUint8, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeU8(uint8(n))
	case schema.U16:
		n, err := toUint(v, math.MaxUint16, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeU16(uint16(n))
	case schema.U32:
		n, err := toUint(v, math.MaxUint32, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeU32(uint32(n))
	case schema.U64:
		n, err := toUint(v, math.MaxUint64, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeU64(n)
	default:
		n, err := toUint(v, math.MaxUint, kind)
		if err != nil {
			return err
		}
		return e.ser.SerializeUsize(uint(n))
	}
}

// toBig converts any integer-like value to a big.Int.
func toBig(v any) (*big.Int, error) {
	switch v := v.(type) {
	case *big.Int:
		return v, nil
	case big.Int:
		return &v, nil
	case postcard.Int128:
		return v.Big(), nil
	case postcard.Uint128:
		return v.Big(), nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, invalid(v, "an integer")
		}
		return n, nil
	case fmt.Stringer:
		if isNumber(v) {
			return toBig(v.String())
		}
	case float32:
		return floatToBig(float64(v))
	case float64:
		return floatToBig(v)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return big.NewInt(rv.Int()), nil
	case rv.CanUint():
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, invalid(v, "an integer")
}

func floatToBig(f float64) (*big.Int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, invalid(f, "an integer")
	}
	n, _ := big.NewFloat(f).Int(nil)
	return n, nil
}

// isNumber reports whether v is a decoder's textual number type.
func isNumber(v any) bool {
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.String && t.Name() == "Number"
}

func toInt(v any, lo, hi int64, kind schema.Kind) (int64, error) {
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		n := rv.Int()
		if n < lo || n > hi {
			return 0, outOfRange(n, kind)
		}
		return n, nil
	}
	n, err := toBig(v)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() || n.Int64() < lo || n.Int64() > hi {
		return 0, outOfRange(n, kind)
	}
	return n.Int64(), nil
}

func toUint(v any, hi uint64, kind schema.Kind) (uint64, error) {
	rv := reflect.ValueOf(v)
	if rv.CanUint() {
		n := rv.Uint()
		if n > hi {
			return 0, outOfRange(n, kind)
		}
		return n, nil
	}
	n, err := toBig(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > hi {
		return 0, outOfRange(n, kind)
	}
	return n.Uint64(), nil
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return math.NaN(), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, invalid(v, "a float")
		}
		return f, nil
	}
	if isNumber(v) {
		return toFloat(reflect.ValueOf(v).String())
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), nil
	case rv.CanUint():
		return float64(rv.Uint()), nil
	}
	return 0, invalid(v, "a float")
}

func (e *encoder) char(v any) error {
	switch v := v.(type) {
	case postcard.Char:
		return e.ser.SerializeChar(rune(v))
	case rune:
		return e.ser.SerializeChar(v)
	case string:
		r, size := utf8.DecodeRuneInString(v)
		if size == 0 || size != len(v) || r == utf8.RuneError && size == 1 {
			return invalid(v, "a single character")
		}
		return e.ser.SerializeChar(r)
	}
	return invalid(v, "a character")
}

func toBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	elems, ok := toList(v)
	if !ok {
		return nil, invalid(v, "a byte array")
	}
	b := make([]byte, len(elems))
	for i, el := range elems {
		n, err := toUint(el, math.MaxUint8, schema.U8)
		if err != nil {
			return nil, err
		}
		b[i] = byte(n)
	}
	return b, nil
}

// toList views any slice or array as []any.
func toList(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case *TupleStruct:
		return v.Elems, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Struct:
		fields := postcard.StructFields(rv.Type())
		out := make([]any, len(fields))
		for i, f := range fields {
			out[i] = rv.Field(f.Index).Interface()
		}
		return out, true
	}
	return nil, false
}

// toEntries views a map-like value as entries. Go maps come back in no
// particular order.
func toEntries(v any) (Map, bool) {
	switch v := v.(type) {
	case Map:
		return v, true
	case []Entry:
		return v, true
	case *Struct:
		m := make(Map, len(v.Fields))
		for i, f := range v.Fields {
			m[i] = Entry{Key: f.Name, Value: f.Value}
		}
		return m, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	m := make(Map, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m = append(m, Entry{Key: iter.Key().Interface(), Value: iter.Value().Interface()})
	}
	return m, true
}

func (e *encoder) mapping(s *schema.OwnedDataModelType, v any) error {
	m, ok := toEntries(v)
	if !ok {
		return invalid(v, "a map")
	}
	if err := e.ser.SerializeMapLen(len(m)); err != nil {
		return err
	}
	if _, ordered := v.(Map); ordered || len(m) < 2 {
		for _, en := range m {
			if err := e.value(s.Key, en.Key); err != nil {
				return err
			}
			if err := e.value(s.Val, en.Value); err != nil {
				return err
			}
		}
		return nil
	}

	type staged struct {
		key []byte
		val any
	}
	f := postcard.NewBufferFlavor(nil)
	keys := encoder{ser: postcard.NewSerializer(f)}
	entries := make([]staged, 0, len(m))
	for _, en := range m {
		start := len(f.B)
		if err := keys.value(s.Key, en.Key); err != nil {
			return err
		}
		entries = append(entries, staged{key: f.B[start:len(f.B):len(f.B)], val: en.Value})
	}
	slices.SortFunc(entries, func(a, b staged) int { return bytes.Compare(a.key, b.key) })
	for _, en := range entries {
		if err := e.ser.WriteRaw(en.key); err != nil {
			return err
		}
		if err := e.value(s.Val, en.val); err != nil {
			return err
		}
	}
	return nil
}

// unwrapStruct strips the lossless wrappers a struct value may arrive in.
func unwrapStruct(v any, data *schema.OwnedData) any {
	if data.Kind != schema.DataNewtype {
		return v
	}
	switch n := v.(type) {
	case *Newtype:
		return n.Value
	case postcard.NewtypeVariant:
		if inner, ok := newtypeField(n); ok {
			return inner
		}
	}
	return v
}

// newtypeField returns the wrapped field of a struct marked as a newtype.
func newtypeField(v any) (any, bool) {
	if _, ok := v.(postcard.NewtypeVariant); !ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct || rv.NumField() != 1 || !rv.Field(0).CanInterface() {
		return nil, false
	}
	return rv.Field(0).Interface(), true
}

// data writes a struct or variant payload.
func (e *encoder) data(data *schema.OwnedData, v any, structShape, tupleShape string) error {
	switch data.Kind {
	case schema.DataUnit:
		if !isUnit(v) {
			return invalid(v, "unit")
		}
		return nil
	case schema.DataNewtype:
		return e.value(data.Newtype, v)
	case schema.DataTuple:
		elems, ok := toList(v)
		if !ok {
			return invalid(v, tupleShape)
		}
		return e.tuple(data.Tuple, elems, tupleShape)
	}
	lookup, ok := fieldLookup(v)
	if !ok {
		if elems, isList := toList(v); isList {
			if len(elems) != len(data.Fields) {
				return missingElements(len(elems), structShape, len(data.Fields))
			}
			for i := range data.Fields {
				if err := e.value(&data.Fields[i].Type, elems[i]); err != nil {
					return err
				}
			}
			return nil
		}
		return invalid(v, structShape)
	}
	for i := range data.Fields {
		f := &data.Fields[i]
		fv, found := lookup(f.Name)
		if !found {
			return fmt.Errorf("%w `%s`", ErrMissingField, f.Name)
		}
		if err := e.value(&f.Type, fv); err != nil {
			return err
		}
	}
	return nil
}

// fieldLookup returns a by-name accessor for struct-like values.
func fieldLookup(v any) (func(string) (any, bool), bool) {
	switch v := v.(type) {
	case *Struct:
		return v.Get, true
	case []Field:
		return func(name string) (any, bool) {
			for _, f := range v {
				if f.Name == name {
					return f.Value, true
				}
			}
			return nil, false
		}, true
	case Map:
		return func(name string) (any, bool) { return v.Get(name) }, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String && rv.Type().Key().Kind() != reflect.Interface {
			return nil, false
		}
		return func(name string) (any, bool) {
			fv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if !fv.IsValid() {
				return nil, false
			}
			return fv.Interface(), true
		}, true
	case reflect.Struct:
		fields := postcard.StructFields(rv.Type())
		return func(name string) (any, bool) {
			for _, f := range fields {
				if f.Name == name {
					return rv.Field(f.Index).Interface(), true
				}
			}
			return nil, false
		}, true
	}
	return nil, false
}

func (e *encoder) enum(s *schema.OwnedDataModelType, v any) error {
	var (
		name    string
		index   = -1
		payload any
	)
	switch vv := v.(type) {
	case *Variant:
		name, payload = vv.Name, vv.Value
		if name == "" {
			index = int(vv.Index)
		}
	case string:
		name = vv
	default:
		m, ok := toEntries(v)
		if !ok {
			vt := reflect.TypeOf(v)
			if vt == nil || vt.Name() == "" {
				return invalid(v, expectEnum(s.Name))
			}
			name, payload = vt.Name(), v
			if inner, ok := newtypeField(v); ok {
				payload = inner
			}
			break
		}
		if len(m) != 1 {
			return invalid(v, expectEnum(s.Name))
		}
		key, ok := m[0].Key.(string)
		if !ok {
			return invalid(m[0].Key, "a variant name")
		}
		name, payload = key, m[0].Value
	}
	if index < 0 {
		index = slices.IndexFunc(s.Variants, func(vr schema.OwnedVariant) bool { return vr.Name == name })
	}
	if index < 0 || index >= len(s.Variants) {
		names := make([]string, len(s.Variants))
		for i, vr := range s.Variants {
			names[i] = "`" + vr.Name + "`"
		}
		return fmt.Errorf("%w: unknown variant `%s` of %s, expected one of %s",
			ErrInvalidValue, name, expectEnum(s.Name), strings.Join(names, ", "))
	}
	vr := &s.Variants[index]
	if err := e.ser.SerializeVariantIndex(uint32(index)); err != nil {
		return err
	}
	return e.data(&vr.Data, payload,
		expectStructVariant(s.Name, vr.Name), expectTupleVariant(s.Name, vr.Name))
}

func (e *encoder) schema(v any) error {
	switch v := v.(type) {
	case *schema.OwnedDataModelType:
		return v.MarshalPostcard(e.ser)
	case schema.OwnedDataModelType:
		return v.MarshalPostcard(e.ser)
	}
	o, err := schema.FromTagged(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return o.MarshalPostcard(e.ser)
}
