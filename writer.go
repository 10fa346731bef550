package postcard

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

type bufferedWriter interface {
	io.Writer
	io.ByteWriter
	Flush() error
}

type bytesBufferWriter struct{ *bytes.Buffer }

func (bytesBufferWriter) Flush() error { return nil }

// WriterFlavor is a blocking Flavor over an io.Writer. Writes are buffered
// and the first error is latched: after it every write becomes a no-op
// returning that error. Finalize flushes and reports the bytes written.
type WriterFlavor struct {
	w     bufferedWriter
	size  int
	count int64 // total bytes written
	err   error // first error encountered
	depth int
}

var _ Finalizer[int64] = (*WriterFlavor)(nil)

// NewWriterFlavorSize creates a WriterFlavor with a specified buffer size.
// It returns an error to prevent double-buffering over a smaller bufio.Writer.
func NewWriterFlavorSize(w io.Writer, size int) (*WriterFlavor, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Share the buffer of an enclosing flavor; only the outermost one flushes.
	case *WriterFlavor:
		if bw.size >= size {
			return &WriterFlavor{w: bw.w, size: bw.size, depth: bw.depth + 1}, nil
		}

	case *bufio.Writer:
		if bw.Size() >= size {
			return &WriterFlavor{w: bw, size: bw.Size(), depth: 1}, nil
		}
		return nil, ErrAlreadyBuffered

	// underlying is a buf so we don't need buffering
	case *bytes.Buffer:
		return &WriterFlavor{w: bytesBufferWriter{bw}, size: bw.Available()}, nil
	}

	b := bufio.NewWriterSize(w, size)
	return &WriterFlavor{w: b, size: b.Size()}, nil
}

// NewWriterFlavor creates a WriterFlavor with the default buffer size.
func NewWriterFlavor(w io.Writer) (*WriterFlavor, error) {
	return NewWriterFlavorSize(w, 0)
}

// Write implements io.Writer, so a WriterFlavor can be stacked.
func (f *WriterFlavor) Write(p []byte) (int, error) {
	if err := f.TryExtend(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *WriterFlavor) TryPush(b byte) error {
	if f.err != nil {
		return f.err
	}
	if err := f.w.WriteByte(b); err != nil {
		f.setError(err)
		return f.err
	}
	f.count++
	return nil
}

func (f *WriterFlavor) TryExtend(p []byte) error {
	if f.err != nil {
		return f.err
	}
	n, err := f.w.Write(p)
	f.count += int64(n)
	f.setError(err)
	return f.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (f *WriterFlavor) Flush() error {
	if f.depth > 0 || f.err != nil {
		return f.err
	}
	f.setError(f.w.Flush())
	return f.err
}

// Finalize flushes the buffer and returns the number of bytes accepted.
func (f *WriterFlavor) Finalize() (int64, error) {
	err := f.Flush()
	return f.count, err
}

func (f *WriterFlavor) Count() int64 { return f.count }
func (f *WriterFlavor) Err() error   { return f.err }

// setError records the first non-nil error, tagged as a sink failure.
func (f *WriterFlavor) setError(err error) {
	if f.err == nil && err != nil {
		f.err = fmt.Errorf("%w: %w", ErrBufferFull, err)
	}
}
