package keystore

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/seed"
)

// ErrAddressMismatch is returned when an unlocked seed does not derive the
// address recorded at creation.
var ErrAddressMismatch = errors.New("derived address does not match stored verification address")

// VerifyAddress derives the verification address from the seed in memory and
// compares it with the one stored in the keystore. Both are compared as
// account ids, so a keystore read under another network prefix still verifies.
func VerifyAddress(ctx context.Context, seedManager seed.Manager, addressService address.Service, keystoreJSON *KeystoreJSON) error {
	log := util.LogFromContext(ctx).With().Str("component", "password_verification").Logger()

	seedBytes := seedManager.GetSeed()
	if seedBytes == nil {
		return errors.New("seed not initialized")
	}
	defer clear(seedBytes)

	derivedAddress, err := addressService.DeriveAddress(ctx, seedBytes, keystoreJSON.DerivationPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to derive verification address")
		return errors.Wrap(err, "failed to derive verification address")
	}

	derived, err := addressService.Parse(derivedAddress)
	if err != nil {
		return errors.Wrap(err, "failed to parse derived address")
	}

	stored, err := addressService.Parse(keystoreJSON.Address)
	if err != nil {
		return errors.Wrap(err, "failed to parse stored verification address")
	}

	if derived != stored {
		log.Warn().
			Str("derived", derivedAddress).
			Str("stored", keystoreJSON.Address).
			Msg("Password verification failed: addresses do not match")
		return ErrAddressMismatch
	}

	return nil
}

func deriveVerificationAddress(ctx context.Context, mnemonic string, addressService address.Service, path string) (string, error) {
	manager := seed.NewManager()
	defer manager.Clear()

	if err := manager.Initialize(mnemonic, ""); err != nil {
		return "", errors.Wrap(err, "failed to initialize seed")
	}

	seedBytes := manager.GetSeed()
	defer clear(seedBytes)

	verificationAddress, err := addressService.DeriveAddress(ctx, seedBytes, path)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive verification address")
	}

	return verificationAddress, nil
}
