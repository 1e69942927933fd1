package transfer_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/cmd/transfer"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"1", 12, "1000000000000"},
		{"1.5", 12, "1500000000000"},
		{"0.000000000001", 12, "1"},
		{"12345", 0, "12345"},
		{"1.50", 1, "15"},
		{"0", 10, "0"},
		{"340282366920938463463374607431768211455", 0, "340282366920938463463374607431768211455"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := transfer.ParseAmount(tt.in, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.0000000000001", "1e80"} {
		t.Run(in, func(t *testing.T) {
			_, err := transfer.ParseAmount(in, 12)
			assert.Error(t, err)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", transfer.FormatAmount(uint256.NewInt(1_500_000_000_000), 12))
	assert.Equal(t, "12345", transfer.FormatAmount(uint256.NewInt(12345), 0))
	assert.Equal(t, "0", transfer.FormatAmount(nil, 12))
}
