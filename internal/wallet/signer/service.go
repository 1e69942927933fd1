package signer

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/seed"
)

type service struct {
	seedManager    seed.Manager
	addressService address.Service
	path           string
	identity       Identity
}

// NewService creates an ed25519 signer for the key at path below the managed
// seed. The seed must already be initialized.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(seedManager seed.Manager, addressService address.Service, path string) (Signer, error) {
	s := &service{
		seedManager:    seedManager,
		addressService: addressService,
		path:           path,
	}

	privateKey, err := s.privateKey()
	if err != nil {
		return nil, err
	}
	defer clear(privateKey)

	s.identity.Scheme = Ed25519
	copy(s.identity.PublicKey[:], privateKey.Public().(ed25519.PublicKey))

	return s, nil
}

func (s *service) PublicIdentity() Identity {
	return s.identity
}

// Sign signs message with the derived key
func (s *service) Sign(message []byte) (Signature, error) {
	privateKey, err := s.privateKey()
	if err != nil {
		return Signature{}, err
	}

	// Clear private key after use
	defer clear(privateKey)

	sig := Signature{Scheme: Ed25519}
	copy(sig.Bytes[:], ed25519.Sign(privateKey, message))

	return sig, nil
}

func (s *service) privateKey() (ed25519.PrivateKey, error) {
	// Get seed from memory
	root := s.seedManager.GetSeed()
	if root == nil {
		return nil, errors.New("seed not initialized")
	}
	defer clear(root)

	derived, err := s.addressService.DerivePrivateKey(context.Background(), root, s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive private key")
	}
	defer clear(derived)

	return ed25519.NewKeyFromSeed(derived), nil
}
