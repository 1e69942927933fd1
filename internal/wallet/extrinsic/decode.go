package extrinsic

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/scale"
	"github/chapool/dot-wallet/internal/wallet/signer"
)

const (
	versionMask = 0x7f
	signedBit   = 0x80
	version4    = 4
)

// Region locates a part of an encoded extrinsic.
type Region struct {
	Offset int
	Length int
}

// Regions splits an extrinsic into its length prefix, signature block
// (address, scheme and signature), signed extensions and call.
type Regions struct {
	Prefix    Region
	Signature Region
	Extra     Region
	Call      Region
}

// Decoded is an extrinsic read back by Decode. Byte slices alias the input.
type Decoded struct {
	Length  int
	Version byte
	Signed  bool

	Signer    address.AccountID
	Scheme    signer.Scheme
	Signature [64]byte
	Era       Era
	Nonce     uint64
	Tip       *uint256.Int

	Pallet    byte
	CallIndex byte
	// Transfer is set for balances transfers and Remark for system remarks.
	Transfer *Transfer
	Remark   []byte

	Regions Regions
}

// Decode parses a v4 extrinsic encoded under p. It is the inverse of Build
// and is used to inspect extrinsics before submission.
func Decode(raw []byte, p Params) (Decoded, error) {
	var out Decoded

	d := scale.NewDecoder(raw)

	length, err := d.Compact()
	if err != nil {
		return out, errors.Wrap(err, "failed to read length prefix")
	}
	out.Regions.Prefix = Region{Offset: 0, Length: d.Offset()}
	if length != uint64(d.Remaining()) {
		return out, errors.Wrapf(errs.ErrBadExtrinsic, "length prefix %d, body has %d bytes", length, d.Remaining())
	}
	out.Length = int(length)

	version, err := d.Byte()
	if err != nil {
		return out, err
	}
	out.Version = version & versionMask
	out.Signed = version&signedBit != 0
	if out.Version != version4 {
		return out, errors.Wrapf(errs.ErrBadExtrinsic, "unsupported extrinsic version %d", out.Version)
	}

	if out.Signed {
		if err := decodeSignature(d, p, &out); err != nil {
			return out, err
		}
	}

	callStart := d.Offset()
	if err := decodeCall(d, p, &out); err != nil {
		return out, err
	}
	if d.Remaining() != 0 {
		return out, errors.Wrapf(errs.ErrBadExtrinsic, "%d trailing bytes after call", d.Remaining())
	}
	out.Regions.Call = Region{Offset: callStart, Length: d.Offset() - callStart}

	return out, nil
}

func decodeSignature(d *scale.Decoder, p Params, out *Decoded) error {
	start := d.Offset()

	if p.MultiAddress {
		tag, err := d.Byte()
		if err != nil {
			return err
		}
		if tag != multiAddressID {
			return errors.Wrapf(errs.ErrBadExtrinsic, "unsupported address kind %d", tag)
		}
	}

	key, err := d.Bytes(len(out.Signer))
	if err != nil {
		return err
	}
	copy(out.Signer[:], key)

	scheme, err := d.Byte()
	if err != nil {
		return err
	}
	out.Scheme = signer.Scheme(scheme)
	if out.Scheme != signer.Ed25519 && out.Scheme != signer.Sr25519 {
		return errors.Wrapf(errs.ErrBadExtrinsic, "unsupported signature scheme %d", scheme)
	}

	sig, err := d.Bytes(len(out.Signature))
	if err != nil {
		return err
	}
	copy(out.Signature[:], sig)
	out.Regions.Signature = Region{Offset: start, Length: d.Offset() - start}

	start = d.Offset()

	if out.Era, err = decodeEra(d); err != nil {
		return err
	}
	if out.Nonce, err = d.Compact(); err != nil {
		return errors.Wrap(err, "failed to read nonce")
	}
	if out.Tip, err = d.CompactBig(); err != nil {
		return errors.Wrap(err, "failed to read tip")
	}
	if p.MetadataHashExtension {
		mode, err := d.Byte()
		if err != nil {
			return err
		}
		if mode != metadataHashOff {
			return errors.Wrapf(errs.ErrBadExtrinsic, "metadata hash mode %d", mode)
		}
	}
	out.Regions.Extra = Region{Offset: start, Length: d.Offset() - start}

	return nil
}

func decodeCall(d *scale.Decoder, p Params, out *Decoded) error {
	var err error

	if out.Pallet, err = d.Byte(); err != nil {
		return err
	}
	if out.CallIndex, err = d.Byte(); err != nil {
		return err
	}

	switch {
	case out.Pallet == p.BalancesPallet && (out.CallIndex == p.TransferCall || out.CallIndex == p.TransferKeepAliveCall):
		t := Transfer{KeepAlive: out.CallIndex == p.TransferKeepAliveCall}
		if p.MultiAddress {
			tag, err := d.Byte()
			if err != nil {
				return err
			}
			if tag != multiAddressID {
				return errors.Wrapf(errs.ErrBadExtrinsic, "unsupported destination kind %d", tag)
			}
		}
		dest, err := d.Bytes(len(t.Dest))
		if err != nil {
			return err
		}
		copy(t.Dest[:], dest)
		if t.Amount, err = d.CompactBig(); err != nil {
			return errors.Wrap(err, "failed to read amount")
		}
		out.Transfer = &t

	case out.Pallet == p.SystemPallet && out.CallIndex == p.RemarkCall:
		n, err := d.Compact()
		if err != nil {
			return err
		}
		if n > uint64(d.Remaining()) {
			return errors.Wrapf(errs.ErrTruncated, "remark of %d bytes", n)
		}
		if out.Remark, err = d.Bytes(int(n)); err != nil {
			return err
		}

	default:
		// Unknown calls are kept opaque.
		_, err = d.Bytes(d.Remaining())
		return err
	}

	return nil
}
