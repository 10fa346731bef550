package postcard

import "encoding/binary"

var (
	BE = binary.BigEndian
	LE = binary.LittleEndian
)

// Ptr returns a pointer to a copy of v, for building optional fields.
func Ptr[T any](v T) *T { return &v }
