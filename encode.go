package postcard

import (
	"bytes"
	"reflect"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// Char is a rune encoded as a Unicode scalar value rather than as an int32.
type Char rune

type encoderFunc func(s *Serializer, v reflect.Value) error

// encoderCache memoizes one encoder per type so reflection over a type's
// shape happens once.
var encoderCache = xsync.NewMap[reflect.Type, encoderFunc]()

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
	uint128Type     = reflect.TypeFor[Uint128]()
	int128Type      = reflect.TypeFor[Int128]()
	charType        = reflect.TypeFor[Char]()
)

// Serialize writes v using its Marshaler implementation or its Go type.
// A pointer is always an option, even when its element encodes itself.
func (s *Serializer) Serialize(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return &TypeError{Type: nil, Reason: "nil value"}
	}
	if m, ok := v.(Marshaler); ok && rv.Kind() != reflect.Pointer {
		return m.MarshalPostcard(s)
	}
	return typeEncoder(rv.Type())(s, rv)
}

// SerializeValue writes a reflect.Value.
func (s *Serializer) SerializeValue(v reflect.Value) error {
	return typeEncoder(v.Type())(s, v)
}

func typeEncoder(t reflect.Type) encoderFunc {
	if f, ok := encoderCache.Load(t); ok {
		return f
	}

	// Recursive types resolve to the forwarding func until the real one is built.
	var (
		wg sync.WaitGroup
		f  encoderFunc
	)
	wg.Add(1)
	fi, loaded := encoderCache.LoadOrStore(t, func(s *Serializer, v reflect.Value) error {
		wg.Wait()
		return f(s, v)
	})
	if loaded {
		return fi
	}
	f = newTypeEncoder(t)
	wg.Done()
	encoderCache.Store(t, f)
	return f
}

func newTypeEncoder(t reflect.Type) encoderFunc {
	if t.Kind() != reflect.Pointer {
		if t.Implements(marshalerType) {
			return marshalerEncoder
		}
		if reflect.PointerTo(t).Implements(marshalerType) {
			return addrMarshalerEncoder
		}
	}
	switch t {
	case uint128Type:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeU128(v.Interface().(Uint128)) }
	case int128Type:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeI128(v.Interface().(Int128)) }
	case charType:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeChar(rune(v.Int())) }
	}

	switch t.Kind() {
	case reflect.Bool:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeBool(v.Bool()) }
	case reflect.Uint8:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeU8(uint8(v.Uint())) }
	case reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return func(s *Serializer, v reflect.Value) error { return s.varint(v.Uint()) }
	case reflect.Int8:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeI8(int8(v.Int())) }
	case reflect.Int16:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeI16(int16(v.Int())) }
	case reflect.Int32:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeI32(int32(v.Int())) }
	case reflect.Int64, reflect.Int:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeI64(v.Int()) }
	case reflect.Float32:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeF32(float32(v.Float())) }
	case reflect.Float64:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeF64(v.Float()) }
	case reflect.String:
		return func(s *Serializer, v reflect.Value) error { return s.SerializeStr(v.String()) }
	case reflect.Pointer:
		return newOptionEncoder(t)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(marshalerType) {
			return func(s *Serializer, v reflect.Value) error { return s.SerializeBytes(v.Bytes()) }
		}
		return newSeqEncoder(t)
	case reflect.Array:
		return newArrayEncoder(t)
	case reflect.Map:
		return newMapEncoder(t)
	case reflect.Struct:
		return newStructEncoder(t)
	case reflect.Interface:
		return newEnumEncoder(t)
	}
	return unsupportedEncoder(t)
}

func marshalerEncoder(s *Serializer, v reflect.Value) error {
	return v.Interface().(Marshaler).MarshalPostcard(s)
}

func addrMarshalerEncoder(s *Serializer, v reflect.Value) error {
	if v.CanAddr() {
		return v.Addr().Interface().(Marshaler).MarshalPostcard(s)
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface().(Marshaler).MarshalPostcard(s)
}

func unsupportedEncoder(t reflect.Type) encoderFunc {
	return func(*Serializer, reflect.Value) error { return &TypeError{Type: t} }
}

func newOptionEncoder(t reflect.Type) encoderFunc {
	elem := t.Elem()
	return func(s *Serializer, v reflect.Value) error {
		if v.IsNil() {
			return s.SerializeNone()
		}
		if err := s.SerializeSome(); err != nil {
			return err
		}
		return typeEncoder(elem)(s, v.Elem())
	}
}

func newSeqEncoder(t reflect.Type) encoderFunc {
	elem := typeEncoder(t.Elem())
	return func(s *Serializer, v reflect.Value) error {
		n := v.Len()
		if err := s.SerializeSeqLen(n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := elem(s, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
}

func newArrayEncoder(t reflect.Type) encoderFunc {
	elem := typeEncoder(t.Elem())
	n := t.Len()
	return func(s *Serializer, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem(s, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
}

type mapEntry struct {
	start, end int
	val        reflect.Value
}

// newMapEncoder writes entries in ascending order of their encoded keys, so
// equal maps always produce equal bytes.
func newMapEncoder(t reflect.Type) encoderFunc {
	keyEnc := typeEncoder(t.Key())
	valEnc := typeEncoder(t.Elem())
	return func(s *Serializer, v reflect.Value) error {
		n := v.Len()
		if err := s.SerializeMapLen(n); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		buf := bytesBufPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer bytesBufPool.Put(buf)

		keys := NewSerializer(&bufferSink{buf})
		entries := make([]mapEntry, 0, n)
		iter := v.MapRange()
		for iter.Next() {
			start := buf.Len()
			if err := keyEnc(keys, iter.Key()); err != nil {
				return err
			}
			entries = append(entries, mapEntry{start: start, end: buf.Len(), val: iter.Value()})
		}
		raw := buf.Bytes()
		slices.SortFunc(entries, func(a, b mapEntry) int {
			return bytes.Compare(raw[a.start:a.end], raw[b.start:b.end])
		})
		for _, e := range entries {
			if err := s.WriteRaw(raw[e.start:e.end]); err != nil {
				return err
			}
			if err := valEnc(s, e.val); err != nil {
				return err
			}
		}
		return nil
	}
}

type bufferSink struct{ *bytes.Buffer }

func (b *bufferSink) TryPush(c byte) error     { return b.WriteByte(c) }
func (b *bufferSink) TryExtend(p []byte) error { _, err := b.Write(p); return err }

type field struct {
	name  string
	index int
	typ   reflect.Type
}

// structFields lists the fields that take part in encoding: exported and not
// tagged `postcard:"-"`. A non-empty tag renames the field in schemas; names
// never reach the wire.
func structFields(t reflect.Type) []field {
	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("postcard")
		if !f.IsExported() || tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		fields = append(fields, field{name: name, index: i, typ: f.Type})
	}
	return fields
}

// StructField is a field of a struct as the codec sees it.
type StructField struct {
	Name  string
	Index int
	Type  reflect.Type
}

// StructFields returns the fields of struct type t that are encoded, in order.
func StructFields(t reflect.Type) []StructField {
	fields := structFields(t)
	out := make([]StructField, len(fields))
	for i, f := range fields {
		out[i] = StructField{Name: f.name, Index: f.index, Type: f.typ}
	}
	return out
}

func newStructEncoder(t reflect.Type) encoderFunc {
	fields := structFields(t)
	encs := make([]encoderFunc, len(fields))
	for i, f := range fields {
		encs[i] = typeEncoder(f.typ)
	}
	return func(s *Serializer, v reflect.Value) error {
		for i, f := range fields {
			if err := encs[i](s, v.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
}

func newEnumEncoder(t reflect.Type) encoderFunc {
	return func(s *Serializer, v reflect.Value) error {
		info, ok := LookupEnum(t)
		if !ok {
			return &TypeError{Type: t, Reason: "interface is not a registered enum"}
		}
		if v.IsNil() {
			return &TypeError{Type: t, Reason: "nil enum value"}
		}
		inner := v.Elem()
		variant, ok := info.VariantOf(inner.Type())
		if !ok {
			return &TypeError{Type: inner.Type(), Reason: "not a variant of enum " + info.Name}
		}
		if err := s.SerializeVariantIndex(variant.Index); err != nil {
			return err
		}
		return typeEncoder(variant.Type)(s, inner)
	}
}
