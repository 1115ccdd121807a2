// Package protocol implements the binary wire format of the traffic
// simulator's control protocol: the serialisation buffer, the value-type
// vocabulary and the typed value model.
//
// All multi-byte integers and floating-point values are big-endian.
package protocol

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/kalifun/tracilink/errors"
)

// Buffer is a growable byte buffer with an independent write-append path and
// a monotonic read cursor, so writes and reads can be freely interleaved.
// Reads past the end of the buffer fail with a protocol error; writes always
// append and never move the cursor.
type Buffer struct {
	buf []byte
	pos int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// FromBytes wraps data in a buffer with the read cursor at position 0.
// The buffer takes ownership of the slice.
func FromBytes(data []byte) *Buffer {
	return &Buffer{buf: data}
}

// Len reports the number of bytes currently stored.
func (b *Buffer) Len() int { return len(b.buf) }

// Pos reports the current read-cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Remaining reports how many bytes are left to read.
func (b *Buffer) Remaining() int { return len(b.buf) - b.pos }

// Bytes returns the raw byte slice regardless of cursor position. The slice
// aliases the buffer's storage and must not be modified.
func (b *Buffer) Bytes() []byte { return b.buf }

// Reset discards all content and rewinds the read cursor.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.pos = 0
}

// ResetPos rewinds the read cursor without discarding written data.
func (b *Buffer) ResetPos() { b.pos = 0 }

func (b *Buffer) checkRead(n int) error {
	if b.pos+n > len(b.buf) {
		return errors.Protocolf("read of %d bytes at position %d exceeds buffer length %d",
			n, b.pos, len(b.buf))
	}
	return nil
}

// WriteU8 appends one unsigned byte.
func (b *Buffer) WriteU8(v byte) {
	b.buf = append(b.buf, v)
}

// ReadU8 reads one unsigned byte.
func (b *Buffer) ReadU8() (byte, error) {
	if err := b.checkRead(1); err != nil {
		return 0, err
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

// WriteI32 appends a big-endian signed 32-bit integer.
func (b *Buffer) WriteI32(v int32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
}

// ReadI32 reads a big-endian signed 32-bit integer.
func (b *Buffer) ReadI32() (int32, error) {
	if err := b.checkRead(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(b.buf[b.pos:]))
	b.pos += 4
	return v, nil
}

// WriteF64 appends a big-endian IEEE 754 double.
func (b *Buffer) WriteF64(v float64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, math.Float64bits(v))
}

// ReadF64 reads a big-endian IEEE 754 double.
func (b *Buffer) ReadF64() (float64, error) {
	if err := b.checkRead(8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(b.buf[b.pos:]))
	b.pos += 8
	return v, nil
}

// WriteString appends a length-prefixed UTF-8 string
// (4-byte big-endian length, then the raw bytes, no trailing NUL).
func (b *Buffer) WriteString(s string) {
	b.WriteI32(int32(len(s)))
	b.buf = append(b.buf, s...)
}

// ReadString reads a length-prefixed UTF-8 string. Invalid UTF-8 is a
// protocol error, never a panic or silent corruption.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadI32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errors.Protocolf("negative string length %d", n)
	}
	if err := b.checkRead(int(n)); err != nil {
		return "", err
	}
	raw := b.buf[b.pos : b.pos+int(n)]
	b.pos += int(n)
	if !utf8.Valid(raw) {
		return "", errors.Protocolf("string at position %d is not valid UTF-8", b.pos-int(n))
	}
	return string(raw), nil
}

// WriteStringList appends a count-prefixed list of length-prefixed strings.
func (b *Buffer) WriteStringList(list []string) {
	b.WriteI32(int32(len(list)))
	for _, s := range list {
		b.WriteString(s)
	}
}

// ReadStringList reads a count-prefixed list of length-prefixed strings.
func (b *Buffer) ReadStringList() ([]string, error) {
	n, err := b.ReadI32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Protocolf("negative list count %d", n)
	}
	list := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// WriteF64List appends a count-prefixed list of big-endian doubles.
func (b *Buffer) WriteF64List(list []float64) {
	b.WriteI32(int32(len(list)))
	for _, v := range list {
		b.WriteF64(v)
	}
}

// ReadF64List reads a count-prefixed list of big-endian doubles.
func (b *Buffer) ReadF64List() ([]float64, error) {
	n, err := b.ReadI32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Protocolf("negative list count %d", n)
	}
	list := make([]float64, 0, n)
	for i := int32(0); i < n; i++ {
		v, err := b.ReadF64()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

// WriteBytes appends raw bytes, used when forwarding a pre-encoded payload.
func (b *Buffer) WriteBytes(raw []byte) {
	b.buf = append(b.buf, raw...)
}
