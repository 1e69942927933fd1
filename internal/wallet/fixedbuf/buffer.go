// Package fixedbuf provides an append buffer over caller-owned storage that
// never grows. Running out of room is an errs.ErrCapacity failure and leaves
// the buffer unchanged.
package fixedbuf

import (
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Buffer appends into a fixed backing slice. The zero value has no capacity.
type Buffer struct {
	data []byte
	n    int
}

// New wraps backing. The full capacity of backing is usable.
func New(backing []byte) Buffer {
	return Buffer{data: backing[:cap(backing)]}
}

// Write appends p entirely or not at all.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Available() {
		return 0, errs.ErrCapacity
	}
	b.n += copy(b.data[b.n:], p)
	return len(p), nil
}

// WriteString appends s entirely or not at all.
func (b *Buffer) WriteString(s string) (int, error) {
	if len(s) > b.Available() {
		return 0, errs.ErrCapacity
	}
	b.n += copy(b.data[b.n:], s)
	return len(s), nil
}

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
	if b.Available() < 1 {
		return errs.ErrCapacity
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// Extend reserves n bytes and returns them for the caller to fill.
func (b *Buffer) Extend(n int) ([]byte, error) {
	if n < 0 || n > b.Available() {
		return nil, errs.ErrCapacity
	}
	s := b.data[b.n : b.n+n : b.n+n]
	b.n += n
	return s, nil
}

// Bytes returns the written bytes. The slice aliases the backing storage.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n:b.n]
}

func (b *Buffer) Len() int       { return b.n }
func (b *Buffer) Cap() int       { return len(b.data) }
func (b *Buffer) Available() int { return len(b.data) - b.n }

// Truncate discards all but the first n written bytes.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > b.n {
		panic("fixedbuf: truncation out of range")
	}
	b.n = n
}

// Reset empties the buffer without clearing it.
func (b *Buffer) Reset() {
	b.n = 0
}

// Wipe zeroes the whole backing storage and empties the buffer.
func (b *Buffer) Wipe() {
	clear(b.data)
	b.n = 0
}
