package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedClassFile is wrapped by every error caused by input that is not
// a structurally valid class file.
var ErrMalformedClassFile = errors.New("malformed class file")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedClassFile, fmt.Sprintf(format, args...))
}

// byteReader is a bounds-checked big-endian cursor over a byte slice.
type byteReader struct {
	data []byte
	off  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (r *byteReader) remaining() int { return len(r.data) - r.off }

func (r *byteReader) need(n int) error {
	if n < 0 || r.remaining() < n {
		return malformed("unexpected end of data at offset %d (need %d bytes, have %d)", r.off, n, r.remaining())
	}
	return nil
}

func (r *byteReader) u1() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *byteReader) u2() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *byteReader) u4() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) s4() (int32, error) {
	v, err := r.u4()
	return int32(v), err
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}
