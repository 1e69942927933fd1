package address

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"golang.org/x/crypto/blake2b"
)

const (
	// SubstratePrefix is the generic Substrate network prefix.
	SubstratePrefix uint16 = 42
	// PolkadotPrefix is the Polkadot relay chain prefix.
	PolkadotPrefix uint16 = 0
	// KusamaPrefix is the Kusama relay chain prefix.
	KusamaPrefix uint16 = 2

	maxSimplePrefix = 63
	maxPrefix       = 16383
	checksumBytes   = 2
)

var ss58Context = []byte("SS58PRE")

// AccountID is a 32-byte public key as used on-chain.
type AccountID [32]byte

// Hex returns the account as 0x-prefixed hex.
func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// SS58 encodes the account for the given network prefix.
func (a AccountID) SS58(prefix uint16) string {
	// Only the prefix can fail and callers validate it when configured.
	s, _ := Encode(prefix, a[:])
	return s
}

// Encode returns the SS58 text for key under prefix.
func Encode(prefix uint16, key []byte) (string, error) {
	if len(key) != len(AccountID{}) {
		return "", errors.Wrapf(errs.ErrInvalidAddress, "key of %d bytes", len(key))
	}

	var (
		data [2 + 32 + checksumBytes]byte
		n    int
	)

	switch {
	case prefix <= maxSimplePrefix:
		data[0] = byte(prefix)
		n = 1
	case prefix <= maxPrefix:
		data[0] = byte((prefix&0b1111_1100)>>2) | 0b0100_0000
		data[1] = byte(prefix>>8) | byte((prefix&0b11)<<6)
		n = 2
	default:
		return "", errors.Wrapf(errs.ErrInvalidAddress, "prefix %d out of range", prefix)
	}

	n += copy(data[n:], key)
	sum := checksum(data[:n])
	n += copy(data[n:], sum[:checksumBytes])

	return base58.Encode(data[:n]), nil
}

// Decode parses SS58 text into its network prefix and account.
func Decode(s string) (uint16, AccountID, error) {
	var account AccountID

	raw := base58.Decode(s)
	if len(raw) == 0 {
		return 0, account, errors.Wrapf(errs.ErrInvalidAddress, "%q is not base58", s)
	}

	var (
		prefix    uint16
		prefixLen int
	)

	switch {
	case raw[0] <= maxSimplePrefix:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 0b1000_0000:
		if len(raw) < 2 {
			return 0, account, errors.Wrap(errs.ErrInvalidAddress, "truncated prefix")
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return 0, account, errors.Wrapf(errs.ErrInvalidAddress, "reserved prefix byte 0x%02x", raw[0])
	}

	if len(raw) != prefixLen+len(account)+checksumBytes {
		return 0, account, errors.Wrapf(errs.ErrInvalidAddress, "%q has %d bytes, want an account address", s, len(raw))
	}

	body := raw[:prefixLen+len(account)]
	sum := checksum(body)
	if sum[0] != raw[len(body)] || sum[1] != raw[len(body)+1] {
		return 0, account, errors.Wrapf(errs.ErrInvalidAddress, "%q has a bad checksum", s)
	}

	copy(account[:], body[prefixLen:])

	return prefix, account, nil
}

// ParseAccount accepts an SS58 address or a 0x-prefixed 32-byte hex key.
func ParseAccount(s string) (AccountID, error) {
	var account AccountID

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) != 2+2*len(account) {
			return account, errors.Wrapf(errs.ErrInvalidHex, "account %q is not 32 bytes", s)
		}
		if _, err := hex.Decode(account[:], []byte(s[2:])); err != nil {
			return account, errors.Wrap(errs.ErrInvalidHex, err.Error())
		}
		return account, nil
	}

	_, account, err := Decode(s)
	return account, err
}

func checksum(data []byte) [blake2b.Size]byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Context)
	h.Write(data)

	var sum [blake2b.Size]byte
	h.Sum(sum[:0])

	return sum
}
