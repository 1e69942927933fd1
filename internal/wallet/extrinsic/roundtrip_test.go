package extrinsic_test

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/wallet/chain"
	"github/chapool/dot-wallet/internal/wallet/extrinsic"
	"golang.org/x/crypto/blake2b"
)

// compactBoundaries are the values around each SCALE compact mode switch.
func compactBoundaries() []*uint256.Int {
	pow := func(n uint) *uint256.Int {
		return new(uint256.Int).Lsh(uint256.NewInt(1), n)
	}
	below := func(n uint) *uint256.Int {
		return new(uint256.Int).Sub(pow(n), uint256.NewInt(1))
	}

	return []*uint256.Int{
		uint256.NewInt(0),
		below(6), pow(6),
		below(14), pow(14),
		below(30), pow(30),
		below(64), pow(64),
		below(128),
	}
}

func randomU128(r *rand.Rand) *uint256.Int {
	return &uint256.Int{r.Uint64(), r.Uint64() >> r.UintN(64), 0, 0}
}

func randomEra(r *rand.Rand) extrinsic.Era {
	if r.IntN(3) == 0 {
		return extrinsic.Immortal()
	}
	return extrinsic.Mortal(r.Uint64N(70000), r.Uint64N(1<<32))
}

// signedPayload is the message the signature must cover: call, extensions,
// then spec and transaction versions, genesis and era checkpoint.
func signedPayload(raw []byte, decoded extrinsic.Decoded, p extrinsic.Params, snapshot chain.Snapshot, checkpoint [32]byte) []byte {
	call := decoded.Regions.Call
	extra := decoded.Regions.Extra

	var payload []byte
	payload = append(payload, raw[call.Offset:call.Offset+call.Length]...)
	payload = append(payload, raw[extra.Offset:extra.Offset+extra.Length]...)
	payload = binary.LittleEndian.AppendUint32(payload, snapshot.SpecVersion)
	payload = binary.LittleEndian.AppendUint32(payload, snapshot.TransactionVersion)
	payload = append(payload, snapshot.Genesis[:]...)
	if decoded.Era.IsImmortal() {
		payload = append(payload, snapshot.Genesis[:]...)
	} else {
		payload = append(payload, checkpoint[:]...)
	}
	if p.MetadataHashExtension {
		payload = append(payload, 0x00)
	}

	if len(payload) > 256 {
		digest := blake2b.Sum256(payload)
		return digest[:]
	}
	return payload
}

func TestBuildDecodeRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(0x5eed, 42))
	s := aliceSigner(t)
	key := s.PublicIdentity().PublicKey

	amounts := compactBoundaries()
	for range 10 {
		amounts = append(amounts, randomU128(r))
	}

	for _, multiAddress := range []bool{true, false} {
		for _, metadataHash := range []bool{false, true} {
			params := extrinsic.DefaultParams()
			params.MultiAddress = multiAddress
			params.MetadataHashExtension = metadataHash

			t.Run(fmt.Sprintf("multiaddress=%t,metadatahash=%t", multiAddress, metadataHash), func(t *testing.T) {
				b := extrinsic.NewBuilder(params, s)

				for i, amount := range amounts {
					var snapshot chain.Snapshot
					for j := range snapshot.Genesis {
						snapshot.Genesis[j] = byte(r.Uint32())
					}
					snapshot.SpecVersion = r.Uint32()
					snapshot.TransactionVersion = r.Uint32()

					call := extrinsic.Transfer{Amount: amount, KeepAlive: r.IntN(2) == 0}
					for j := range call.Dest {
						call.Dest[j] = byte(r.Uint32())
					}

					extras := extrinsic.Extras{Era: randomEra(r), Nonce: r.Uint64() >> r.UintN(64)}
					if r.IntN(2) == 0 {
						extras.Tip = amounts[r.IntN(len(amounts))]
					}
					for j := range extras.Checkpoint {
						extras.Checkpoint[j] = byte(r.Uint32())
					}

					encoded, err := b.Build(call, snapshot, extras)
					require.NoError(t, err, "case %d", i)

					decoded, err := extrinsic.Decode(encoded.Raw, params)
					require.NoError(t, err, "case %d", i)

					assert.Equal(t, len(encoded.Raw)-decoded.Regions.Prefix.Length, decoded.Length)
					assert.True(t, decoded.Signed)
					assert.Equal(t, key, [32]byte(decoded.Signer))
					assert.Equal(t, extras.Era, decoded.Era, "case %d", i)
					assert.Equal(t, extras.Nonce, decoded.Nonce, "case %d", i)

					tip := extras.Tip
					if tip == nil {
						tip = uint256.NewInt(0)
					}
					assert.True(t, tip.Eq(decoded.Tip), "case %d: tip %s, decoded %s", i, tip.Dec(), decoded.Tip.Dec())

					require.NotNil(t, decoded.Transfer, "case %d", i)
					assert.Equal(t, call.Dest, decoded.Transfer.Dest)
					assert.Equal(t, call.KeepAlive, decoded.Transfer.KeepAlive)
					assert.True(t, amount.Eq(decoded.Transfer.Amount), "case %d: amount %s, decoded %s", i, amount.Dec(), decoded.Transfer.Amount.Dec())

					message := signedPayload(encoded.Raw, decoded, params, snapshot, extras.Checkpoint)
					assert.True(t, ed25519.Verify(decoded.Signer[:], message, decoded.Signature[:]), "case %d", i)
				}
			})
		}
	}
}
