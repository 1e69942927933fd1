package transfer

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a token amount like "1.5" into planck for a token with
// the given number of decimals.
func ParseAmount(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", s)
	}

	if d.IsNegative() {
		return nil, errors.Errorf("amount %q is negative", s)
	}

	planck := d.Shift(decimals)
	if !planck.Equal(planck.Truncate(0)) {
		return nil, errors.Errorf("amount %q has more than %d decimals", s, decimals)
	}

	amount, overflow := uint256.FromBig(planck.BigInt())
	if overflow {
		return nil, errors.Errorf("amount %q is too large", s)
	}

	return amount, nil
}

// FormatAmount renders planck as a token amount.
func FormatAmount(planck *uint256.Int, decimals int32) string {
	if planck == nil {
		return "0"
	}
	return decimal.NewFromBigInt(planck.ToBig(), -decimals).String()
}
