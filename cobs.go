package postcard

import (
	"fmt"

	"github.com/oy3o/postcard/internal/cobs"
)

// cobsDecode decodes the first COBS frame of b in place.
func cobsDecode(b []byte) (n, used int, err error) {
	n, used, err = cobs.Decode(b, b)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBadEncoding, err)
	}
	return n, used, nil
}

// MaxCobsEncodedLen returns the worst-case frame size of an n-byte payload,
// including the delimiter.
func MaxCobsEncodedLen(n int) int { return cobs.MaxEncodedLen(n) + 1 }

// DecodeCobsFrame decodes the first COBS frame of b in place and returns the
// payload together with the bytes after the frame delimiter.
func DecodeCobsFrame(b []byte) (payload, rest []byte, err error) {
	n, used, err := cobsDecode(b)
	if err != nil {
		return nil, nil, err
	}
	return b[:n], b[used:], nil
}
