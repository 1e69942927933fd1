// Package scale implements the subset of the SCALE codec the wallet needs:
// fixed-width little-endian integers and compact integers.
package scale

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
)

const (
	singleByteLimit = 1 << 6
	twoByteLimit    = 1 << 14
	fourByteLimit   = 1 << 30

	modeSingle = 0b00
	modeTwo    = 0b01
	modeFour   = 0b10
	modeBig    = 0b11
)

// Encoder appends SCALE values to a fixed buffer. The first failure sticks:
// later writes are skipped and Err reports it.
type Encoder struct {
	buf *fixedbuf.Buffer
	err error
}

func NewEncoder(buf *fixedbuf.Buffer) *Encoder {
	return &Encoder{buf: buf}
}

// Err returns the first write failure.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) Byte(b byte) {
	if e.err == nil {
		e.err = e.buf.WriteByte(b)
	}
}

// Raw writes p unchanged (fixed-size arrays such as hashes and keys).
func (e *Encoder) Raw(p []byte) {
	if e.err == nil {
		_, e.err = e.buf.Write(p)
	}
}

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.Raw(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.Raw(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.Raw(b[:])
}

// Compact writes v in compact form.
func (e *Encoder) Compact(v uint64) {
	var b [9]byte
	e.Raw(AppendCompact(b[:0], v))
}

// CompactBig writes v in compact form.
func (e *Encoder) CompactBig(v *uint256.Int) {
	var b [33]byte
	e.Raw(AppendCompactBig(b[:0], v))
}

// AppendCompact appends the compact encoding of v to dst.
func AppendCompact(dst []byte, v uint64) []byte {
	switch {
	case v < singleByteLimit:
		return append(dst, byte(v)<<2|modeSingle)
	case v < twoByteLimit:
		return binary.LittleEndian.AppendUint16(dst, uint16(v)<<2|modeTwo)
	case v < fourByteLimit:
		return binary.LittleEndian.AppendUint32(dst, uint32(v)<<2|modeFour)
	}

	n := 4
	for n < 8 && v>>(8*n) != 0 {
		n++
	}

	dst = append(dst, byte(n-4)<<2|modeBig)
	for i := 0; i < n; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}

	return dst
}

// AppendCompactBig appends the compact encoding of v to dst.
func AppendCompactBig(dst []byte, v *uint256.Int) []byte {
	if v.IsUint64() {
		return AppendCompact(dst, v.Uint64())
	}

	n := (v.BitLen() + 7) / 8
	be := v.Bytes32()

	dst = append(dst, byte(n-4)<<2|modeBig)
	for i := 0; i < n; i++ {
		dst = append(dst, be[len(be)-1-i])
	}

	return dst
}

// CompactLen returns the size of the compact encoding of v.
func CompactLen(v uint64) int {
	var b [9]byte
	return len(AppendCompact(b[:0], v))
}
