package scale

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Decoder reads SCALE values from a byte slice.
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset is the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.off
}

func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Bytes returns a view of the next n bytes.
func (d *Decoder) Bytes(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, errors.Wrapf(errs.ErrTruncated, "need %d bytes at offset %d, have %d", n, d.off, d.Remaining())
	}

	p := d.data[d.off : d.off+n : d.off+n]
	d.off += n

	return p, nil
}

func (d *Decoder) Byte() (byte, error) {
	p, err := d.Bytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (d *Decoder) U16() (uint16, error) {
	p, err := d.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (d *Decoder) U32() (uint32, error) {
	p, err := d.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (d *Decoder) U64() (uint64, error) {
	p, err := d.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// Compact reads a compact integer that fits in 64 bits.
func (d *Decoder) Compact() (uint64, error) {
	v, err := d.CompactBig()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, errors.Wrap(errs.ErrAmountOverflow, "compact integer exceeds 64 bits")
	}
	return v.Uint64(), nil
}

// CompactBig reads a compact integer of up to 256 bits. Encodings that are
// not the shortest form are rejected with errs.ErrNonCanonical.
func (d *Decoder) CompactBig() (*uint256.Int, error) {
	start := d.off

	first, err := d.Byte()
	if err != nil {
		return nil, err
	}

	switch first & 0b11 {
	case modeSingle:
		return uint256.NewInt(uint64(first >> 2)), nil

	case modeTwo:
		d.off = start
		raw, err := d.U16()
		if err != nil {
			return nil, err
		}
		v := uint64(raw >> 2)
		if v < singleByteLimit {
			return nil, errors.Wrapf(errs.ErrNonCanonical, "%d in two-byte mode", v)
		}
		return uint256.NewInt(v), nil

	case modeFour:
		d.off = start
		raw, err := d.U32()
		if err != nil {
			return nil, err
		}
		v := uint64(raw >> 2)
		if v < twoByteLimit {
			return nil, errors.Wrapf(errs.ErrNonCanonical, "%d in four-byte mode", v)
		}
		return uint256.NewInt(v), nil
	}

	n := int(first>>2) + 4
	if n > 32 {
		return nil, errors.Wrapf(errs.ErrAmountOverflow, "compact integer of %d bytes", n)
	}

	le, err := d.Bytes(n)
	if err != nil {
		return nil, err
	}
	if le[n-1] == 0 {
		return nil, errors.Wrap(errs.ErrNonCanonical, "big-integer mode with a zero top byte")
	}

	var be [32]byte
	for i, b := range le {
		be[31-i] = b
	}

	v := new(uint256.Int).SetBytes32(be[:])
	if v.LtUint64(fourByteLimit) {
		return nil, errors.Wrap(errs.ErrNonCanonical, "small value in big-integer mode")
	}

	return v, nil
}
