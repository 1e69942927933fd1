// Package extrinsic builds signed v4 extrinsics in fixed buffers.
package extrinsic

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/scale"
)

const (
	maxAmountBits  = 128
	multiAddressID = 0x00
)

// Params are the runtime specifics that the call and extension encodings
// depend on.
type Params struct {
	BalancesPallet        byte
	TransferCall          byte
	TransferKeepAliveCall byte
	SystemPallet          byte
	RemarkCall            byte
	// MultiAddress prefixes account arguments with the MultiAddress::Id tag.
	MultiAddress bool
	// MetadataHashExtension appends the CheckMetadataHash mode byte (disabled).
	MetadataHashExtension bool
	// MaxExtrinsicSize rejects larger extrinsics locally; 0 means unknown.
	MaxExtrinsicSize int
}

// DefaultParams match the Substrate node template and Polkadot.
func DefaultParams() Params {
	return Params{
		BalancesPallet:        5,
		TransferCall:          0,
		TransferKeepAliveCall: 3,
		SystemPallet:          0,
		RemarkCall:            0,
		MultiAddress:          true,
	}
}

// Call is a transaction intent.
type Call interface {
	encodeCall(enc *scale.Encoder, p Params) error
}

// Transfer moves Amount planck to Dest.
type Transfer struct {
	Dest   address.AccountID
	Amount *uint256.Int
	// KeepAlive refuses transfers that would reap the sender.
	KeepAlive bool
}

func (t Transfer) encodeCall(enc *scale.Encoder, p Params) error {
	if t.Amount == nil {
		return errors.Wrap(errs.ErrAmountOverflow, "transfer amount missing")
	}
	if t.Amount.BitLen() > maxAmountBits {
		return errors.Wrapf(errs.ErrAmountOverflow, "transfer amount %s", t.Amount.Dec())
	}

	call := p.TransferCall
	if t.KeepAlive {
		call = p.TransferKeepAliveCall
	}

	enc.Byte(p.BalancesPallet)
	enc.Byte(call)
	if p.MultiAddress {
		enc.Byte(multiAddressID)
	}
	enc.Raw(t.Dest[:])
	enc.CompactBig(t.Amount)

	return enc.Err()
}

// Remark stores Data on chain without effect.
type Remark struct {
	Data []byte
}

func (r Remark) encodeCall(enc *scale.Encoder, p Params) error {
	enc.Byte(p.SystemPallet)
	enc.Byte(p.RemarkCall)
	enc.Compact(uint64(len(r.Data)))
	enc.Raw(r.Data)

	return enc.Err()
}
