package websocket

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Opcode values from RFC 6455 section 5.2.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

const (
	finBit          = 0x80
	rsvBits         = 0x70
	opcodeBits      = 0x0F
	maskBit         = 0x80
	lengthBits      = 0x7F
	length16        = 126
	length64        = 127
	maxControlBytes = 125
	maskKeyBytes    = 4
)

// IsControl reports whether o is a control opcode (0x8-0xF).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "reserved"
	}
}

// Frame is one complete, unfragmented WebSocket message. Payload aliases the
// engine's receive buffer and is only valid until the next Receive.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// parseFrame decodes the server frame at the start of data. When data holds
// only part of the frame, n is zero and need is the total number of bytes the
// frame occupies (or the bytes needed to learn it).
func parseFrame(data []byte) (frame Frame, n int, need uint64, err error) {
	if len(data) < 2 {
		return Frame{}, 0, 2, nil
	}

	b0, b1 := data[0], data[1]
	opcode := Opcode(b0 & opcodeBits)

	if b0&rsvBits != 0 {
		return Frame{}, 0, 0, errors.Wrap(errs.ErrBadFrame, "reserved bits set")
	}

	switch opcode {
	case OpContinuation:
		return Frame{}, 0, 0, errors.Wrap(errs.ErrFragmented, "continuation frame")
	case OpText, OpBinary, OpClose, OpPing, OpPong:
	default:
		return Frame{}, 0, 0, errors.Wrapf(errs.ErrBadFrame, "reserved opcode 0x%x", byte(opcode))
	}

	if b0&finBit == 0 {
		return Frame{}, 0, 0, errors.Wrapf(errs.ErrFragmented, "%s frame without FIN", opcode)
	}
	if b1&maskBit != 0 {
		return Frame{}, 0, 0, errors.Wrap(errs.ErrBadFrame, "server frames must not be masked")
	}

	header := uint64(2)
	length := uint64(b1 & lengthBits)

	switch length {
	case length16:
		header = 4
		if uint64(len(data)) < header {
			return Frame{}, 0, header, nil
		}
		length = uint64(binary.BigEndian.Uint16(data[2:4]))
	case length64:
		header = 10
		if uint64(len(data)) < header {
			return Frame{}, 0, header, nil
		}
		length = binary.BigEndian.Uint64(data[2:10])
		if length>>63 != 0 {
			return Frame{}, 0, 0, errors.Wrap(errs.ErrBadFrame, "payload length has the most significant bit set")
		}
	}

	if opcode.IsControl() && length > maxControlBytes {
		return Frame{}, 0, 0, errors.Wrapf(errs.ErrBadFrame, "%s frame payload of %d bytes", opcode, length)
	}

	total := header + length
	if uint64(len(data)) < total {
		return Frame{}, 0, total, nil
	}

	end := int(total)
	return Frame{Opcode: opcode, Payload: data[header:end:end]}, end, 0, nil
}

// encodeFrame writes a masked client frame into dst and returns its size.
func encodeFrame(dst []byte, opcode Opcode, payload []byte, mask [maskKeyBytes]byte) (int, error) {
	size := len(payload)

	header := 2
	switch {
	case size > 0xFFFF:
		header = 10
	case size > maxControlBytes:
		header = 4
	}

	total := header + maskKeyBytes + size
	if total > len(dst) {
		return 0, errors.Wrapf(errs.ErrCapacity, "frame of %d bytes exceeds send buffer of %d", total, len(dst))
	}

	dst[0] = finBit | byte(opcode)

	switch header {
	case 2:
		dst[1] = maskBit | byte(size)
	case 4:
		dst[1] = maskBit | length16
		binary.BigEndian.PutUint16(dst[2:4], uint16(size))
	default:
		dst[1] = maskBit | length64
		binary.BigEndian.PutUint64(dst[2:10], uint64(size))
	}

	copy(dst[header:], mask[:])
	body := dst[header+maskKeyBytes : total]
	for i, c := range payload {
		body[i] = c ^ mask[i%maskKeyBytes]
	}

	return total, nil
}
