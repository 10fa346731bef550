package postcard

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type huge struct {
	A uint32
	B [32]uint32
	D uint64
}

func TestAccumulatorChunkedReader(t *testing.T) {
	expected := huge{A: 0xabcdef00, D: math.MaxUint64}
	for i := range expected.B {
		expected.B[i] = 0x01234567
	}
	frame, err := ToSliceCobs(expected, make([]byte, 256))
	require.NoError(t, err)
	require.Len(t, frame, 145)

	acc := NewCobsAccumulator[huge](256)
	input := bytes.NewReader(frame)
	chunk := make([]byte, 32)
	var output *huge
	for {
		n, _ := input.Read(chunk)
		if n == 0 {
			break
		}
		window := chunk[:n]
	feed:
		for len(window) > 0 {
			res := acc.Feed(window)
			switch res.Status {
			case Consumed:
				break feed
			case Success:
				output = &res.Data
			}
			window = res.Remaining
		}
	}
	require.NotNil(t, output)
	assert.Equal(t, expected, *output)
}

func TestAccumulatorFeed(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		acc := NewCobsAccumulator[uint16](8)
		assert.Equal(t, Consumed, acc.Feed(nil).Status)
	})

	t.Run("TwoFramesInOneChunk", func(t *testing.T) {
		a, err := ToBytesCobs(uint16(300))
		require.NoError(t, err)
		b, err := ToBytesCobs(uint16(7))
		require.NoError(t, err)

		acc := NewCobsAccumulator[uint16](8)
		res := acc.Feed(append(a, b...))
		require.Equal(t, Success, res.Status)
		assert.Equal(t, uint16(300), res.Data)
		assert.Equal(t, b, res.Remaining)

		res = acc.Feed(res.Remaining)
		require.Equal(t, Success, res.Status)
		assert.Equal(t, uint16(7), res.Data)
		assert.Empty(t, res.Remaining)
	})

	t.Run("SplitFrame", func(t *testing.T) {
		frame, err := ToBytesCobs("split")
		require.NoError(t, err)
		acc := NewCobsAccumulator[string](16)
		assert.Equal(t, Consumed, acc.Feed(frame[:3]).Status)
		assert.Equal(t, 3, acc.Len())
		res := acc.Feed(frame[3:])
		require.Equal(t, Success, res.Status)
		assert.Equal(t, "split", res.Data)
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("DeserError", func(t *testing.T) {
		frame, err := ToBytesCobs(uint8(2))
		require.NoError(t, err)
		acc := NewCobsAccumulator[bool](8)
		res := acc.Feed(append(frame, 0x42))
		require.Equal(t, DeserError, res.Status)
		assert.ErrorIs(t, res.Err, ErrBadBool)
		assert.Equal(t, []byte{0x42}, res.Remaining)
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("OverFullWithDelimiter", func(t *testing.T) {
		acc := NewCobsAccumulator[uint8](4)
		res := acc.Feed([]byte{1, 2, 3, 4, 5, 0, 9})
		require.Equal(t, OverFull, res.Status)
		assert.Equal(t, []byte{9}, res.Remaining)
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("OverFullWithoutDelimiter", func(t *testing.T) {
		acc := NewCobsAccumulator[uint8](4)
		require.Equal(t, Consumed, acc.Feed([]byte{1, 2, 3}).Status)
		res := acc.Feed([]byte{4, 5, 6})
		require.Equal(t, OverFull, res.Status)
		assert.Equal(t, []byte{5, 6}, res.Remaining)
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("ExactFit", func(t *testing.T) {
		frame, err := ToBytesCobs(uint16(300))
		require.NoError(t, err)
		acc := NewCobsAccumulator[uint16](len(frame))
		res := acc.Feed(frame)
		require.Equal(t, Success, res.Status)
		assert.Equal(t, uint16(300), res.Data)
	})
}
