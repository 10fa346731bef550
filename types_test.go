package postcard

// --- Shared fixtures ---

type basicU8S struct {
	St uint16
	Ei uint8
	Sf uint64
	Tt uint32
}

type enumStruct struct {
	Eight uint8
	Sixt  uint16
}

// DataEnum mirrors a sum type with every variant shape.
type DataEnum interface{ isDataEnum() }

type (
	Bib uint16
	Bim uint64
	Bap uint8
	Kim struct{ Inner enumStruct }
	Chi struct {
		A uint8
		B uint32
	}
	Sho struct {
		A uint16
		B uint8
	}
	Unit struct{}
)

func (Bib) isDataEnum()  {}
func (Bim) isDataEnum()  {}
func (Bap) isDataEnum()  {}
func (Kim) isDataEnum()  {}
func (Chi) isDataEnum()  {}
func (Sho) isDataEnum()  {}
func (Unit) isDataEnum() {}

func (Kim) PostcardNewtype() {}
func (Sho) PostcardTuple()   {}

var dataEnumInfo = RegisterEnum[DataEnum]("DataEnum", Bib(0), Bim(0), Bap(0), Kim{}, Chi{}, Sho{}, Unit{})

// Greek has an alpha unit variant followed by a beta newtype variant.
type Greek interface{ isGreek() }

type (
	Alpha struct{}
	Beta  uint8
)

func (Alpha) isGreek() {}
func (Beta) isGreek()  {}

func init() {
	RegisterEnum[Greek]("Greek", Alpha{}, Beta(0))
}

type withEnum struct {
	Before uint8
	Value  DataEnum
	After  uint8
}

type refStruct struct {
	Bytes []byte
	Str   string
}

type skipped struct {
	A      uint8
	Hidden string `postcard:"-"`
	B      uint8
	lower  uint8
}

type nested struct {
	Name  string
	Opt   *uint32
	Items []basicU8S
	Table map[string]int32
	Pair  [2]int16
	C     Char
	Big   Uint128
	Neg   Int128
}
