package postcard

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

type byteReader interface {
	io.Reader
	io.ByteReader
}

// ReaderSource is a blocking Source over an io.Reader. Borrowed data lives in
// a caller-supplied scratch buffer; when the scratch is exhausted decoding
// fails with ErrUnexpectedEnd.
//
// Input is buffered unless the reader already supports io.ByteReader. The
// remainder returned by Finalize wraps the buffered reader, so bytes read
// ahead of the message are not lost.
type ReaderSource struct {
	r       byteReader
	scratch []byte
	pos     int
	count   int64 // total bytes read
	err     error // first error encountered
}

var _ Finisher[ReaderRemainder] = (*ReaderSource)(nil)

// ReaderRemainder is what is left after decoding from a reader.
type ReaderRemainder struct {
	Reader  io.Reader
	Scratch []byte // unused tail of the scratch buffer
}

// NewReaderSource creates a ReaderSource.
func NewReaderSource(r io.Reader, scratch []byte) (*ReaderSource, error) {
	if r == nil {
		return nil, ErrNilIO
	}
	var br byteReader
	switch reader := r.(type) {
	case *bufio.Reader:
		br = reader
	case *bytes.Reader:
		br = reader
	case *bytes.Buffer:
		br = reader
	case byteReader:
		br = reader
	default:
		br = bufio.NewReader(r)
	}
	return &ReaderSource{r: br, scratch: scratch}, nil
}

func (s *ReaderSource) Pop() (byte, error) {
	if s.err != nil {
		return 0, s.err
	}
	b, err := s.r.ReadByte()
	if err != nil {
		s.setError(err)
		return 0, s.err
	}
	s.count++
	return b, nil
}

func (s *ReaderSource) TryTakeN(n int) ([]byte, error) {
	buf, err := s.fill(n)
	if err != nil {
		return nil, err
	}
	s.pos += n
	return buf, nil
}

func (s *ReaderSource) TryTakeNTemp(n int) ([]byte, error) {
	return s.fill(n)
}

// fill reads n bytes into the free part of the scratch buffer.
func (s *ReaderSource) fill(n int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n > len(s.scratch)-s.pos {
		return nil, fmt.Errorf("%w: scratch buffer exhausted, need %d bytes, have %d",
			ErrUnexpectedEnd, n, len(s.scratch)-s.pos)
	}
	buf := s.scratch[s.pos : s.pos+n]
	m, err := io.ReadFull(s.r, buf)
	s.count += int64(m)
	if err != nil {
		s.setError(err)
		return nil, s.err
	}
	return buf, nil
}

func (s *ReaderSource) Finalize() (ReaderRemainder, error) {
	return ReaderRemainder{Reader: s.r, Scratch: s.scratch[s.pos:]}, nil
}

// Count returns the bytes consumed from the reader.
func (s *ReaderSource) Count() int64 { return s.count }

// setError records the first non-nil error. A stream that ends early is
// reported as ErrUnexpectedEnd.
func (s *ReaderSource) setError(err error) {
	if s.err != nil || err == nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = fmt.Errorf("%w: %w", ErrUnexpectedEnd, err)
		return
	}
	s.err = err
}
