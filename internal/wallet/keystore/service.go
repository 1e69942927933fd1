package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/seed"
)

const fileMode = 0o600

// ErrExists is returned by Create when the keystore file is already present.
var ErrExists = errors.New("keystore already exists")

// Service provides keystore encryption and decryption functionality
type Service interface {
	// Create encrypts mnemonic with password and writes a new keystore file
	Create(ctx context.Context, mnemonic string, password string) (*KeystoreJSON, error)

	// Unlock decrypts the keystore and initializes seedManager with its seed
	Unlock(ctx context.Context, password string, seedManager seed.Manager) error

	// Load reads the keystore file without decrypting it
	Load(ctx context.Context) (*KeystoreJSON, error)

	// Exists checks if the keystore file exists
	Exists(ctx context.Context) (bool, error)

	// Path returns the keystore file
	Path() string
}

type service struct {
	path           string
	addressService address.Service
	derivationPath string
	scryptN        int
}

// NewService creates a keystore service for the file at path. scryptN of 0
// uses the keystore v3 default.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(path string, addressService address.Service, derivationPath string, scryptN int) (Service, error) {
	if path == "" {
		return nil, errors.New("keystore path is required")
	}
	if addressService == nil {
		return nil, errors.New("address service is required")
	}

	return &service{
		path:           path,
		addressService: addressService,
		derivationPath: derivationPath,
		scryptN:        scryptN,
	}, nil
}

func (s *service) scryptParams() *ScryptParams {
	params := DefaultScryptParams()
	if s.scryptN > 0 {
		params.N = s.scryptN
	}
	return params
}

func (s *service) Path() string {
	return s.path
}

// Create encrypts a mnemonic and stores it with its verification address
func (s *service) Create(ctx context.Context, mnemonic string, password string) (*KeystoreJSON, error) {
	log := util.LogFromContext(ctx)

	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check keystore existence")
	}
	if exists {
		return nil, ErrExists
	}

	// Fails on an invalid mnemonic before anything is written
	verificationAddress, err := deriveVerificationAddress(ctx, mnemonic, s.addressService, s.derivationPath)
	if err != nil {
		return nil, err
	}

	keystoreJSON, err := s.encryptMnemonic(mnemonic, password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt mnemonic")
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}
	keystoreJSON.Address = verificationAddress
	keystoreJSON.DerivationPath = s.derivationPath

	data, err := json.MarshalIndent(keystoreJSON, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create keystore directory")
		}
	}

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrExists
		}
		return nil, errors.Wrap(err, "failed to create keystore file")
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(s.path)
		return nil, errors.Wrap(err, "failed to write keystore file")
	}

	if err := file.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close keystore file")
	}

	log.Info().
		Str("id", keystoreJSON.ID).
		Str("address", verificationAddress).
		Str("path", s.path).
		Msg("Keystore created")

	return keystoreJSON, nil
}

// Unlock decrypts the mnemonic, initializes seedManager and checks that the
// seed derives the stored verification address
func (s *service) Unlock(ctx context.Context, password string, seedManager seed.Manager) error {
	log := util.LogFromContext(ctx)

	keystoreJSON, err := s.Load(ctx)
	if err != nil {
		return err
	}

	mnemonic, err := decryptMnemonic(keystoreJSON, password)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to decrypt keystore")
		return errors.Wrap(err, "failed to decrypt keystore")
	}

	// The keystore password only encrypts; the mnemonic has no passphrase
	if err := seedManager.Initialize(mnemonic, ""); err != nil {
		return errors.Wrap(err, "failed to initialize seed manager")
	}

	if err := VerifyAddress(ctx, seedManager, s.addressService, keystoreJSON); err != nil {
		seedManager.Clear()
		return err
	}

	log.Info().Str("address", keystoreJSON.Address).Msg("Keystore unlocked")

	return nil
}

func (s *service) Load(_ context.Context) (*KeystoreJSON, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore file")
	}

	var keystoreJSON KeystoreJSON
	if err := json.Unmarshal(data, &keystoreJSON); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	if keystoreJSON.Version != keystoreVersion {
		return nil, errors.Errorf("unsupported keystore version %d", keystoreJSON.Version)
	}

	return &keystoreJSON, nil
}

func (s *service) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to stat keystore file")
}
