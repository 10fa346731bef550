package schema

import "github.com/oy3o/postcard"

var fixedSizes = map[Kind]int{
	Bool: 1, I8: 1, U8: 1,
	I16: postcard.VarintMax[uint16](), U16: postcard.VarintMax[uint16](),
	I32: postcard.VarintMax[uint32](), U32: postcard.VarintMax[uint32](),
	I64: postcard.VarintMax[uint64](), U64: postcard.VarintMax[uint64](),
	I128: postcard.VarintMax128, U128: postcard.VarintMax128,
	F32: 4, F64: 8, Char: 5,
	Unit: 0, UnitStruct: 0,
}

// MaxSize returns the largest encoding any value of t can have. It reports
// false for unbounded shapes and for usize and isize, whose width depends on
// the platform.
func MaxSize(t *DataModelType) (int, bool) {
	if n, ok := fixedSizes[t.Kind]; ok {
		return n, true
	}
	switch t.Kind {
	case Option:
		n, ok := MaxSize(t.Elem)
		return n + 1, ok
	case Tuple:
		return sumSizes(t.Elems)
	case Struct:
		return dataSize(&t.Data)
	case Enum:
		largest := 0
		for i := range t.Variants {
			n, ok := dataSize(&t.Variants[i].Data)
			if !ok {
				return 0, false
			}
			largest = max(largest, n)
		}
		disc := 1
		if len(t.Variants) > 0 {
			disc = postcard.VarintSize(uint64(len(t.Variants) - 1))
		}
		return largest + disc, true
	}
	return 0, false
}

func sumSizes(ts []*DataModelType) (int, bool) {
	total := 0
	for _, t := range ts {
		n, ok := MaxSize(t)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func dataSize(d *Data) (int, bool) {
	switch d.Kind {
	case DataNewtype:
		return MaxSize(d.Newtype)
	case DataTuple:
		return sumSizes(d.Tuple)
	case DataStruct:
		total := 0
		for _, f := range d.Fields {
			n, ok := MaxSize(f.Type)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	}
	return 0, true
}

// ZeroWidth reports whether every value of o encodes to no bytes.
func (o *OwnedDataModelType) ZeroWidth() bool {
	switch o.Kind {
	case Unit, UnitStruct:
		return true
	case Tuple:
		return allZeroWidth(o.Elems)
	case Struct:
		switch o.Data.Kind {
		case DataUnit:
			return true
		case DataNewtype:
			return o.Data.Newtype.ZeroWidth()
		case DataTuple:
			return allZeroWidth(o.Data.Tuple)
		case DataStruct:
			for i := range o.Data.Fields {
				if !o.Data.Fields[i].Type.ZeroWidth() {
					return false
				}
			}
			return true
		}
	}
	return false
}

func allZeroWidth(ts []OwnedDataModelType) bool {
	for i := range ts {
		if !ts[i].ZeroWidth() {
			return false
		}
	}
	return true
}
