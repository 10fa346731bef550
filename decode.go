package postcard

import (
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// maxPrealloc caps capacity reserved from an untrusted length prefix.
const maxPrealloc = 4096

type decoderFunc func(d *Deserializer, v reflect.Value) error

var decoderCache = xsync.NewMap[reflect.Type, decoderFunc]()

// Deserialize decodes into the value ptr points to, using its Unmarshaler
// implementation or its Go type. Decoded strings and byte slices are copies.
func (d *Deserializer) Deserialize(ptr any) error {
	if u, ok := ptr.(Unmarshaler); ok {
		return u.UnmarshalPostcard(d)
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &TypeError{Type: reflect.TypeOf(ptr), Reason: "Deserialize needs a non-nil pointer"}
	}
	return d.DeserializeValue(rv.Elem())
}

// DeserializeValue decodes into a settable reflect.Value.
func (d *Deserializer) DeserializeValue(v reflect.Value) error {
	return typeDecoder(v.Type())(d, v)
}

func typeDecoder(t reflect.Type) decoderFunc {
	if f, ok := decoderCache.Load(t); ok {
		return f
	}
	var (
		wg sync.WaitGroup
		f  decoderFunc
	)
	wg.Add(1)
	fi, loaded := decoderCache.LoadOrStore(t, func(d *Deserializer, v reflect.Value) error {
		wg.Wait()
		return f(d, v)
	})
	if loaded {
		return fi
	}
	f = newTypeDecoder(t)
	wg.Done()
	decoderCache.Store(t, f)
	return f
}

func newTypeDecoder(t reflect.Type) decoderFunc {
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(unmarshalerType) {
		return func(d *Deserializer, v reflect.Value) error {
			return v.Addr().Interface().(Unmarshaler).UnmarshalPostcard(d)
		}
	}
	switch t {
	case uint128Type:
		return func(d *Deserializer, v reflect.Value) error {
			u, err := d.DeserializeU128()
			if err == nil {
				v.Set(reflect.ValueOf(u))
			}
			return err
		}
	case int128Type:
		return func(d *Deserializer, v reflect.Value) error {
			i, err := d.DeserializeI128()
			if err == nil {
				v.Set(reflect.ValueOf(i))
			}
			return err
		}
	case charType:
		return func(d *Deserializer, v reflect.Value) error {
			r, err := d.DeserializeChar()
			if err == nil {
				v.SetInt(int64(r))
			}
			return err
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return func(d *Deserializer, v reflect.Value) error {
			b, err := d.DeserializeBool()
			if err == nil {
				v.SetBool(b)
			}
			return err
		}
	case reflect.Uint8:
		return uintDecoder(func(d *Deserializer) (uint64, error) { b, err := d.DeserializeU8(); return uint64(b), err })
	case reflect.Uint16:
		return uintDecoder(func(d *Deserializer) (uint64, error) { return d.varint(16) })
	case reflect.Uint32:
		return uintDecoder(func(d *Deserializer) (uint64, error) { return d.varint(32) })
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return uintDecoder(func(d *Deserializer) (uint64, error) { return d.varint(t.Bits()) })
	case reflect.Int8:
		return intDecoder(func(d *Deserializer) (int64, error) { i, err := d.DeserializeI8(); return int64(i), err })
	case reflect.Int16:
		return intDecoder(func(d *Deserializer) (int64, error) { i, err := d.DeserializeI16(); return int64(i), err })
	case reflect.Int32:
		return intDecoder(func(d *Deserializer) (int64, error) { i, err := d.DeserializeI32(); return int64(i), err })
	case reflect.Int64, reflect.Int:
		return intDecoder(func(d *Deserializer) (int64, error) { return d.DeserializeI64() })
	case reflect.Float32:
		return func(d *Deserializer, v reflect.Value) error {
			f, err := d.DeserializeF32()
			if err == nil {
				v.SetFloat(float64(f))
			}
			return err
		}
	case reflect.Float64:
		return func(d *Deserializer, v reflect.Value) error {
			f, err := d.DeserializeF64()
			if err == nil {
				v.SetFloat(f)
			}
			return err
		}
	case reflect.String:
		return func(d *Deserializer, v reflect.Value) error {
			s, err := d.DeserializeStr()
			if err == nil {
				v.SetString(s)
			}
			return err
		}
	case reflect.Pointer:
		return newOptionDecoder(t)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(t.Elem()).Implements(unmarshalerType) {
			return bytesDecoder
		}
		return newSeqDecoder(t)
	case reflect.Array:
		return newArrayDecoder(t)
	case reflect.Map:
		return newMapDecoder(t)
	case reflect.Struct:
		return newStructDecoder(t)
	case reflect.Interface:
		return newEnumDecoder(t)
	}
	return func(*Deserializer, reflect.Value) error { return &TypeError{Type: t} }
}

func uintDecoder(read func(d *Deserializer) (uint64, error)) decoderFunc {
	return func(d *Deserializer, v reflect.Value) error {
		u, err := read(d)
		if err == nil {
			v.SetUint(u)
		}
		return err
	}
}

func intDecoder(read func(d *Deserializer) (int64, error)) decoderFunc {
	return func(d *Deserializer, v reflect.Value) error {
		i, err := read(d)
		if err == nil {
			v.SetInt(i)
		}
		return err
	}
}

func bytesDecoder(d *Deserializer, v reflect.Value) error {
	b, err := d.DeserializeBytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		v.SetZero()
		return nil
	}
	out := reflect.MakeSlice(v.Type(), len(b), len(b))
	reflect.Copy(out, reflect.ValueOf(b))
	v.Set(out)
	return nil
}

func newOptionDecoder(t reflect.Type) decoderFunc {
	elem := t.Elem()
	return func(d *Deserializer, v reflect.Value) error {
		some, err := d.DeserializeOption()
		if err != nil {
			return err
		}
		if !some {
			v.SetZero()
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(elem))
		}
		return typeDecoder(elem)(d, v.Elem())
	}
}

func newSeqDecoder(t reflect.Type) decoderFunc {
	elem := typeDecoder(t.Elem())
	empty := zeroWidth(t.Elem())
	return func(d *Deserializer, v reflect.Value) error {
		n, err := d.DeserializeSeqLen()
		if err != nil {
			return err
		}
		if empty {
			if err := d.CheckZeroWidthLen(n); err != nil {
				return err
			}
		}
		if n == 0 {
			v.SetZero()
			return nil
		}
		out := reflect.MakeSlice(t, 0, min(n, maxPrealloc))
		for i := 0; i < n; i++ {
			out = reflect.Append(out, reflect.Zero(t.Elem()))
			if err := elem(d, out.Index(i)); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil
	}
}

func newArrayDecoder(t reflect.Type) decoderFunc {
	elem := typeDecoder(t.Elem())
	n := t.Len()
	return func(d *Deserializer, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem(d, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
}

func newMapDecoder(t reflect.Type) decoderFunc {
	keyDec := typeDecoder(t.Key())
	valDec := typeDecoder(t.Elem())
	empty := zeroWidth(t.Key()) && zeroWidth(t.Elem())
	return func(d *Deserializer, v reflect.Value) error {
		n, err := d.DeserializeMapLen()
		if err != nil {
			return err
		}
		if empty {
			if err := d.CheckZeroWidthLen(n); err != nil {
				return err
			}
		}
		if n == 0 {
			v.SetZero()
			return nil
		}
		out := reflect.MakeMapWithSize(t, min(n, maxPrealloc))
		key := reflect.New(t.Key()).Elem()
		val := reflect.New(t.Elem()).Elem()
		for i := 0; i < n; i++ {
			key.SetZero()
			val.SetZero()
			if err := keyDec(d, key); err != nil {
				return err
			}
			if err := valDec(d, val); err != nil {
				return err
			}
			out.SetMapIndex(key, val)
		}
		v.Set(out)
		return nil
	}
}

func newStructDecoder(t reflect.Type) decoderFunc {
	fields := structFields(t)
	decs := make([]decoderFunc, len(fields))
	for i, f := range fields {
		decs[i] = typeDecoder(f.typ)
	}
	return func(d *Deserializer, v reflect.Value) error {
		for i, f := range fields {
			if err := decs[i](d, v.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
}

func newEnumDecoder(t reflect.Type) decoderFunc {
	return func(d *Deserializer, v reflect.Value) error {
		info, ok := LookupEnum(t)
		if !ok {
			return &TypeError{Type: t, Reason: "interface is not a registered enum"}
		}
		idx, err := d.DeserializeVariantIndex()
		if err != nil {
			return err
		}
		if int(idx) >= len(info.Variants) {
			return &UnknownVariantError{Enum: info.Name, Index: idx, Count: len(info.Variants)}
		}
		variant := info.Variants[idx]
		nv := reflect.New(variant.Type).Elem()
		if err := typeDecoder(variant.Type)(d, nv); err != nil {
			return err
		}
		v.Set(nv)
		return nil
	}
}

// zeroWidth reports whether every value of t encodes to no bytes. Types that
// decode themselves are assumed to consume input.
func zeroWidth(t reflect.Type) bool {
	if t.Implements(unmarshalerType) || reflect.PointerTo(t).Implements(unmarshalerType) {
		return false
	}
	switch t.Kind() {
	case reflect.Array:
		return t.Len() == 0 || zeroWidth(t.Elem())
	case reflect.Struct:
		for _, f := range structFields(t) {
			if !zeroWidth(f.typ) {
				return false
			}
		}
		return true
	}
	return false
}
