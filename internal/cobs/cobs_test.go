package cobs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, to int) []byte {
	out := make([]byte, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, byte(i))
	}
	return out
}

func concat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestEncodeVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		out  []byte
	}{
		{"Empty", []byte{}, []byte{0x01, 0x00}},
		{"SingleZero", []byte{0x00}, []byte{0x01, 0x01, 0x00}},
		{"TwoZeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01, 0x00}},
		{"ZeroInside", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33, 0x00}},
		{"NoZero", []byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44, 0x00}},
		{"TrailingZeros", []byte{0x11, 0x00, 0x00, 0x00}, []byte{0x02, 0x11, 0x01, 0x01, 0x01, 0x00}},
		{"FullRun", seq(1, 254), concat([]byte{0xFF}, seq(1, 254), []byte{0x00})},
		{"LeadingZeroFullRun", concat([]byte{0x00}, seq(1, 254)), concat([]byte{0x01, 0xFF}, seq(1, 254), []byte{0x00})},
		{"RunOverflow", seq(1, 255), concat([]byte{0xFF}, seq(1, 254), []byte{0x02, 0xFF, 0x00})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(tc.in)
			assert.Equal(t, tc.out, got)
			assert.LessOrEqual(t, len(got), MaxEncodedLen(len(tc.in))+1)
			assert.NotContains(t, got[:len(got)-1], byte(0))

			dst := make([]byte, len(tc.in))
			n, used, err := Decode(dst, got)
			require.NoError(t, err)
			assert.Equal(t, len(got), used)
			assert.Equal(t, tc.in, dst[:n])
		})
	}
}

func TestDecodeInPlace(t *testing.T) {
	frame := Encode([]byte{0x00, 0x01, 0x00, 0x02, 0x03, 0x00})
	frame = append(frame, 0xAA, 0xBB)
	n, used, err := Decode(frame, frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02, 0x03, 0x00}, frame[:n])
	assert.Equal(t, []byte{0xAA, 0xBB}, frame[used:])
}

func TestDecodeInvalid(t *testing.T) {
	t.Run("RunPastEnd", func(t *testing.T) {
		_, _, err := Decode(make([]byte, 8), []byte{0x05, 0x11, 0x22})
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("ZeroInsideRun", func(t *testing.T) {
		_, _, err := Decode(make([]byte, 8), []byte{0x03, 0x11, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("DestinationTooSmall", func(t *testing.T) {
		_, _, err := Decode(make([]byte, 1), []byte{0x03, 0x11, 0x22, 0x00})
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

type limitedSink struct {
	buf []byte
	max int
}

var errFull = bytes.ErrTooLarge

func (s *limitedSink) TryPush(b byte) error {
	if len(s.buf) >= s.max {
		return errFull
	}
	s.buf = append(s.buf, b)
	return nil
}

func (s *limitedSink) TryExtend(p []byte) error {
	for _, b := range p {
		if err := s.TryPush(b); err != nil {
			return err
		}
	}
	return nil
}

func TestEncoderSinkErrors(t *testing.T) {
	var e Encoder
	sink := &limitedSink{max: 3}
	require.NoError(t, e.Extend([]byte{1, 2, 3, 4}, sink))
	assert.ErrorIs(t, e.Finish(sink), errFull)
}
