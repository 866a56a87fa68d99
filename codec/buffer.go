// Package codec implements the binary encodings of the bonk.io protocol:
// the big-endian byte buffer the game serializes with, the LZ-string
// transport compression, and the avatar and map document formats layered
// on top of them.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a read runs past the end of the buffer.
var ErrTruncated = errors.New("codec: truncated buffer")

// Reader decodes the game's big-endian binary layout from a byte slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader over buf. The reader does not copy buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Skip advances past n bytes.
func (r *Reader) Skip(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("skip %d at offset %d: %w", n, r.off, ErrTruncated)
	}
	r.off += n
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("read %d at offset %d: %w", n, r.off, ErrTruncated)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Byte reads a single unsigned byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Bool reads one byte and reports whether it is nonzero.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// Int16 reads a big-endian signed 16-bit integer.
func (r *Reader) Int16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// Int32 reads a big-endian signed 32-bit integer.
func (r *Reader) Int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Uint32 reads a big-endian unsigned 32-bit integer.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Float32 reads a big-endian IEEE 754 single.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Float64 reads a big-endian IEEE 754 double.
func (r *Reader) Float64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// UTF reads a string prefixed with its big-endian 16-bit byte length.
func (r *Reader) UTF() (string, error) {
	n, err := r.Int16()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("utf length %d at offset %d: %w", n, r.off, ErrTruncated)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer encodes the game's big-endian binary layout.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the written output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len reports how many bytes have been written.
func (w *Writer) Len() int { return len(w.buf) }

// Byte appends a single byte.
func (w *Writer) Byte(v byte) { w.buf = append(w.buf, v) }

// Bool appends 1 for true, 0 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// Int16 appends a big-endian signed 16-bit integer.
func (w *Writer) Int16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

// Int32 appends a big-endian signed 32-bit integer.
func (w *Writer) Int32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// Uint32 appends a big-endian unsigned 32-bit integer.
func (w *Writer) Uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// Float32 appends a big-endian IEEE 754 single.
func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// Float64 appends a big-endian IEEE 754 double.
func (w *Writer) Float64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// UTF appends a string prefixed with its big-endian 16-bit byte length.
func (w *Writer) UTF(s string) error {
	if len(s) > math.MaxInt16 {
		return fmt.Errorf("utf string of %d bytes exceeds length prefix", len(s))
	}
	w.Int16(int16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}
