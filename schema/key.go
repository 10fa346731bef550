package schema

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"hash/fnv"
)

// Key is an 8-byte tag identifying a (path, schema) pair. Collisions are
// possible; it is a dispatch hint, not an identity.
type Key [8]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Uint64 returns the key as the little-endian integer it was built from.
func (k Key) Uint64() uint64 { return binary.LittleEndian.Uint64(k[:]) }

// KeyFor hashes path, then t, with FNV-1a 64. Struct and enum names do not
// take part, so differently named types of the same shape share keys.
// Field and variant names do.
func KeyFor(path string, t *DataModelType) Key {
	h := fnv.New64a()
	h.Write([]byte(path))
	hashType(h, t)
	var k Key
	binary.LittleEndian.PutUint64(k[:], h.Sum64())
	return k
}

// ForOwned is KeyFor over an owned schema.
func ForOwned(path string, o *OwnedDataModelType) Key {
	return KeyFor(path, o.Borrow())
}

// ForPath derives the schema of T and hashes it with path.
func ForPath[T any](path string) (Key, error) {
	t, err := Of[T]()
	if err != nil {
		return Key{}, err
	}
	return KeyFor(path, t), nil
}

var kindTags = [kindCount]byte{
	Bool: 0x11, I8: 0xC5, U8: 0x3D, I16: 0x1D, I32: 0x0D, I64: 0x0B, I128: 0x02,
	U16: 0x83, U32: 0xD3, U64: 0x13, U128: 0x8B, Usize: 0x6B, Isize: 0xAD,
	F32: 0xEF, F64: 0x71, Char: 0xC1, String: 0x25, ByteArray: 0x65,
	Option: 0x6D, Unit: 0x47, UnitStruct: 0xBF, Seq: 0x03, Tuple: 0xA7, Map: 0x4F,
	Enum: 0xE9, Schema: 0xE5,
}

var (
	structTags  = [dataKindCount]byte{0xBF, 0x9D, 0x05, 0x7F}
	variantTags = [dataKindCount]byte{0xB5, 0xDF, 0xC7, 0x67}
)

func hashType(h hash.Hash64, t *DataModelType) {
	if t.Kind == Struct {
		hashData(h, &t.Data, &structTags)
		return
	}
	if t.Kind < kindCount {
		h.Write([]byte{kindTags[t.Kind]})
	}
	switch t.Kind {
	case Option, Seq:
		hashType(h, t.Elem)
	case Tuple:
		for _, e := range t.Elems {
			hashType(h, e)
		}
	case Map:
		hashType(h, t.Key)
		hashType(h, t.Val)
	case Enum:
		for i := range t.Variants {
			h.Write([]byte(t.Variants[i].Name))
			hashData(h, &t.Variants[i].Data, &variantTags)
		}
	}
}

func hashData(h hash.Hash64, d *Data, tags *[dataKindCount]byte) {
	if d.Kind >= dataKindCount {
		return
	}
	h.Write([]byte{tags[d.Kind]})
	switch d.Kind {
	case DataNewtype:
		hashType(h, d.Newtype)
	case DataTuple:
		for _, e := range d.Tuple {
			hashType(h, e)
		}
	case DataStruct:
		for _, f := range d.Fields {
			h.Write([]byte(f.Name))
			hashType(h, f.Type)
		}
	}
}
