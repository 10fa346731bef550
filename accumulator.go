package postcard

import "bytes"

// FeedStatus is the outcome of CobsAccumulator.Feed.
type FeedStatus uint8

const (
	// Consumed means all input was buffered and no frame is complete yet.
	Consumed FeedStatus = iota
	// OverFull means a frame did not fit the buffer and was dropped.
	OverFull
	// DeserError means a complete frame failed to decode.
	DeserError
	// Success means a frame decoded into Data.
	Success
)

func (s FeedStatus) String() string {
	switch s {
	case Consumed:
		return "Consumed"
	case OverFull:
		return "OverFull"
	case DeserError:
		return "DeserError"
	case Success:
		return "Success"
	}
	return "FeedStatus(?)"
}

// FeedResult carries the outcome of one Feed call. Remaining is the part of
// the input Feed did not consume; callers feed it again.
type FeedResult[T any] struct {
	Status    FeedStatus
	Data      T
	Remaining []byte
	Err       error // decode error behind DeserError
}

// CobsAccumulator reassembles COBS frames from arbitrarily chunked input,
// such as bytes arriving from a serial port, and decodes each into a T.
type CobsAccumulator[T any] struct {
	buf []byte
	idx int
}

// NewCobsAccumulator creates an accumulator holding frames of up to capacity bytes.
func NewCobsAccumulator[T any](capacity int) *CobsAccumulator[T] {
	return &CobsAccumulator[T]{buf: make([]byte, capacity)}
}

// Len returns the number of buffered bytes of the current partial frame.
func (a *CobsAccumulator[T]) Len() int { return a.idx }

// Feed appends input and decodes at most one frame.
//
// When the input holds a delimiter, everything up to and including it is
// taken as the rest of the current frame. The buffer is reset after every
// completed, failed, or dropped frame.
func (a *CobsAccumulator[T]) Feed(input []byte) FeedResult[T] {
	if len(input) == 0 {
		return FeedResult[T]{Status: Consumed}
	}

	zero := bytes.IndexByte(input, 0)
	if zero < 0 {
		if a.idx+len(input) > len(a.buf) {
			// Drop the partial frame together with as much input as would have filled the buffer.
			newStart := len(a.buf) - a.idx
			a.idx = 0
			return FeedResult[T]{Status: OverFull, Remaining: input[newStart:]}
		}
		a.idx += copy(a.buf[a.idx:], input)
		return FeedResult[T]{Status: Consumed}
	}

	take, release := input[:zero+1], input[zero+1:]
	if a.idx+len(take) > len(a.buf) {
		a.idx = 0
		return FeedResult[T]{Status: OverFull, Remaining: release}
	}
	a.idx += copy(a.buf[a.idx:], take)
	frame := a.buf[:a.idx]
	a.idx = 0

	v, err := FromBytesCobs[T](frame)
	if err != nil {
		return FeedResult[T]{Status: DeserError, Remaining: release, Err: err}
	}
	return FeedResult[T]{Status: Success, Data: v, Remaining: release}
}
