package address_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

const (
	// sr25519 Alice, the usual SS58 reference key.
	aliceSr25519 = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

	// mini secret of the Substrate development phrase.
	devMiniSecret = "fac7959dbfe72f052e5a0c3c8d6530f202b02fd8f9f5ca3580ec8deb7797479e"
)

func mustAccount(t *testing.T, h string) address.AccountID {
	t.Helper()

	var account address.AccountID
	raw, err := hex.DecodeString(h)
	require.NoError(t, err)
	copy(account[:], raw)

	return account
}

func TestEncodeKnownAddresses(t *testing.T) {
	account := mustAccount(t, aliceSr25519)

	tests := []struct {
		prefix uint16
		want   string
	}{
		{address.SubstratePrefix, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"},
		{address.PolkadotPrefix, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5"},
		{address.KusamaPrefix, "HNZata7iMYWmk5RvZRTiAsSDhV8366zq2YGb3tLH5Upf74F"},
		{1284, "VdvKmYJfD4VXA9fzz1SbmCo2eYHSzUFbaDCZSuaNKJAe8YNg6"},
	}

	for _, tt := range tests {
		got, err := address.Encode(tt.prefix, account[:])
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		prefix, decoded, err := address.Decode(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.prefix, prefix)
		assert.Equal(t, account, decoded)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	for _, s := range []string{
		"",
		"0OIl",
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ",
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKut",
	} {
		_, _, err := address.Decode(s)
		assert.ErrorIs(t, err, errs.ErrInvalidAddress, s)
		assert.ErrorIs(t, err, errs.ErrEncoding, s)
	}

	_, err := address.Encode(16384, make([]byte, 32))
	assert.ErrorIs(t, err, errs.ErrInvalidAddress)

	_, err = address.Encode(42, make([]byte, 20))
	assert.ErrorIs(t, err, errs.ErrInvalidAddress)
}

func TestParseAccount(t *testing.T) {
	want := mustAccount(t, aliceSr25519)

	got, err := address.ParseAccount("0x" + aliceSr25519)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "0x"+aliceSr25519, got.Hex())

	got, err = address.ParseAccount("15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = address.ParseAccount("0x1234")
	assert.ErrorIs(t, err, errs.ErrInvalidHex)
}

func TestDeriveDevelopmentAccounts(t *testing.T) {
	seed, err := hex.DecodeString(devMiniSecret)
	require.NoError(t, err)

	svc, err := address.NewService(address.SubstratePrefix)
	require.NoError(t, err)

	tests := []struct {
		path    string
		seed    string
		address string
	}{
		{"", devMiniSecret, "5DFJF7tY4bpbpcKPJcBTQaKuCDEPCpiz8TRjpmLeTtweqmXL"},
		{"//Alice", "abf8e5bdbe30c65656c0a3cbd181ff8a56294a69dfedd27982aace4a76909115", "5FA9nQDVg267DEd8m1ZypXLBnvN7SFxYwV7ndqSYGiN9TTpu"},
		{"//Bob", "3b7b60af2abcd57ba401ab398f84f4ca54bd6b2140d2503fbcf3286535fe3ff1", "5GoNkf6WdbxCFnPdAnYYQyCjAKPJgLNxXwPjwTh6DGg6gN3E"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			derived, err := svc.DerivePrivateKey(t.Context(), seed, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.seed, hex.EncodeToString(derived))

			addr, err := svc.DeriveAddress(t.Context(), seed, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.address, addr)
		})
	}
}

func TestDeriveRejectsSoftJunctions(t *testing.T) {
	seed := make([]byte, 32)

	_, err := address.DeriveSeed(seed, "/soft")
	assert.Error(t, err)

	_, err = address.DeriveSeed(seed, "//hard/soft")
	assert.Error(t, err)

	_, err = address.DeriveSeed(seed[:16], "")
	assert.Error(t, err)
}

func TestServiceFormatsWithPrefix(t *testing.T) {
	svc, err := address.NewService(address.PolkadotPrefix)
	require.NoError(t, err)

	account := mustAccount(t, aliceSr25519)
	assert.Equal(t, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5", svc.Format(account))
	assert.Equal(t, uint16(0), svc.Prefix())

	parsed, err := svc.Parse("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	require.NoError(t, err)
	assert.Equal(t, account, parsed)

	_, err = address.NewService(20000)
	assert.ErrorIs(t, err, errs.ErrInvalidAddress)
}
