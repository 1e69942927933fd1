package signer_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/seed"
	"github/chapool/dot-wallet/internal/wallet/signer"
)

func newSigner(t *testing.T, init func(seed.Manager) error, path string) signer.Signer {
	t.Helper()

	seeds := seed.NewManager()
	require.NoError(t, init(seeds))

	addresses, err := address.NewService(address.SubstratePrefix)
	require.NoError(t, err)

	s, err := signer.NewService(seeds, addresses, path)
	require.NoError(t, err)

	return s
}

func TestSignMatchesRFC8032(t *testing.T) {
	secret, err := hex.DecodeString("9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	require.NoError(t, err)

	s := newSigner(t, func(m seed.Manager) error { return m.InitializeSeed(secret) }, "")

	identity := s.PublicIdentity()
	assert.Equal(t, signer.Ed25519, identity.Scheme)
	assert.Equal(t, "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a", hex.EncodeToString(identity.PublicKey[:]))

	sig, err := s.Sign(nil)
	require.NoError(t, err)
	assert.Equal(t, signer.Ed25519, sig.Scheme)
	assert.Equal(t,
		"e5564300c360ac729086e2cc806e828a84877f1eb8e5d974d873e065224901555fb8821590a33bacc61e39701cf9b46bd25bf5f0595bbe24655141438e7a100b",
		hex.EncodeToString(sig.Bytes[:]))
}

func TestSignWithDerivedDevelopmentKey(t *testing.T) {
	s := newSigner(t, func(m seed.Manager) error {
		return m.Initialize("bottom drive obey lake curtain smoke basket hold race lonely fit walk", "")
	}, "//Alice")

	identity := s.PublicIdentity()
	assert.Equal(t, "88dc3417d5058ec4b4503e0c12ea1a0a89be200fe98922423d4334014fa6b0ee", hex.EncodeToString(identity.PublicKey[:]))

	message := []byte("transfer payload")
	sig, err := s.Sign(message)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(identity.PublicKey[:], message, sig.Bytes[:]))
}

func TestSignFailsAfterSeedCleared(t *testing.T) {
	seeds := seed.NewManager()
	require.NoError(t, seeds.InitializeSeed(make([]byte, seed.Size)))

	addresses, err := address.NewService(address.SubstratePrefix)
	require.NoError(t, err)

	s, err := signer.NewService(seeds, addresses, "")
	require.NoError(t, err)

	seeds.Clear()

	_, err = s.Sign([]byte("x"))
	assert.Error(t, err)
}

func TestNewServiceRequiresSeed(t *testing.T) {
	addresses, err := address.NewService(address.SubstratePrefix)
	require.NoError(t, err)

	_, err = signer.NewService(seed.NewManager(), addresses, "")
	assert.Error(t, err)
}

func TestSchemeString(t *testing.T) {
	assert.Equal(t, "ed25519", signer.Ed25519.String())
	assert.Equal(t, "sr25519", signer.Sr25519.String())
	assert.Equal(t, "unknown", signer.Scheme(9).String())
}

func TestWatchOnlyRefusesToSign(t *testing.T) {
	identity := signer.Identity{Scheme: signer.Ed25519, PublicKey: [32]byte{1, 2, 3}}
	s := signer.NewWatchOnly(identity)

	assert.Equal(t, identity, s.PublicIdentity())

	_, err := s.Sign([]byte("payload"))
	assert.ErrorIs(t, err, signer.ErrWatchOnly)
}
