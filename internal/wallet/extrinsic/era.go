package extrinsic

import (
	"math/bits"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/scale"
)

const (
	minEraPeriod   = 4
	maxEraPeriod   = 1 << 16
	quantizeShift  = 12
	immortalEraTag = 0x00
)

// Era is the validity window of a transaction. The zero value is immortal.
type Era struct {
	Period uint64
	Phase  uint64
}

// Immortal returns an era valid forever.
func Immortal() Era {
	return Era{}
}

// Mortal returns an era starting near current that lasts at least period
// blocks. The period is rounded up to a power of two in [4, 65536] and the
// phase is quantized for long periods.
func Mortal(period, current uint64) Era {
	p := uint64(maxEraPeriod)
	if period <= maxEraPeriod {
		p = 1
		for p < period {
			p <<= 1
		}
	}
	p = max(p, minEraPeriod)

	qf := quantizeFactor(p)
	phase := current % p / qf * qf

	return Era{Period: p, Phase: phase}
}

func (e Era) IsImmortal() bool {
	return e.Period == 0
}

// Birth is the first block of the era for a transaction built at current.
// Its hash is the checkpoint the signature commits to.
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}
	return (max(current, e.Phase)-e.Phase)/e.Period*e.Period + e.Phase
}

// Death is the first block at which the transaction is no longer valid.
func (e Era) Death(current uint64) uint64 {
	if e.IsImmortal() {
		return ^uint64(0)
	}
	return e.Birth(current) + e.Period
}

func (e Era) encode(enc *scale.Encoder) {
	if e.IsImmortal() {
		enc.Byte(immortalEraTag)
		return
	}

	low := min(15, max(1, uint64(bits.TrailingZeros64(e.Period))-1))
	high := e.Phase / quantizeFactor(e.Period) << 4
	enc.U16(uint16(low | high))
}

func decodeEra(d *scale.Decoder) (Era, error) {
	first, err := d.Byte()
	if err != nil {
		return Era{}, err
	}
	if first == immortalEraTag {
		return Immortal(), nil
	}

	second, err := d.Byte()
	if err != nil {
		return Era{}, err
	}

	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded % 16)
	phase := (encoded >> 4) * quantizeFactor(period)

	if period < minEraPeriod || phase >= period {
		return Era{}, errors.Wrapf(errs.ErrBadExtrinsic, "invalid mortal era 0x%04x", encoded)
	}

	return Era{Period: period, Phase: phase}, nil
}

func quantizeFactor(period uint64) uint64 {
	return max(period>>quantizeShift, 1)
}
