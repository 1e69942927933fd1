package address

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Service derives and formats accounts for one network.
type Service interface {
	// DeriveAddress derives the SS58 address of seed at path
	DeriveAddress(ctx context.Context, seed []byte, path string) (string, error)

	// DerivePrivateKey derives the ed25519 seed at path
	// WARNING: Private key should be cleared after use
	DerivePrivateKey(ctx context.Context, seed []byte, path string) ([]byte, error)

	// Format encodes an account with the network prefix
	Format(account AccountID) string

	// Parse accepts SS58 of any network or 0x hex
	Parse(s string) (AccountID, error)

	// Prefix returns the network prefix
	Prefix() uint16
}

type service struct {
	prefix uint16
}

// NewService creates an address service for the network prefix.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(prefix uint16) (Service, error) {
	if prefix > maxPrefix {
		return nil, errors.Wrapf(errs.ErrInvalidAddress, "prefix %d out of range", prefix)
	}

	return &service{prefix: prefix}, nil
}

func (s *service) DeriveAddress(ctx context.Context, seed []byte, path string) (string, error) {
	privateKey, err := s.DerivePrivateKey(ctx, seed, path)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive private key")
	}

	// Clear private key after use
	defer clear(privateKey)

	account, err := PublicKey(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive public key")
	}

	return s.Format(account), nil
}

func (s *service) DerivePrivateKey(_ context.Context, seed []byte, path string) ([]byte, error) {
	return DeriveSeed(seed, path)
}

func (s *service) Format(account AccountID) string {
	return account.SS58(s.prefix)
}

func (s *service) Parse(str string) (AccountID, error) {
	return ParseAccount(str)
}

func (s *service) Prefix() uint16 {
	return s.prefix
}
