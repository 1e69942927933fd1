package seed

import (
	"crypto/sha512"
	"sync"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// Size is the length of an ed25519 mini secret.
const Size = 32

// manager implements seed management with thread-safe access
type manager struct {
	seed        []byte
	mu          sync.RWMutex
	initialized bool
}

// NewManager creates a new SeedManager
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewManager() Manager {
	return &manager{
		seed:        nil,
		initialized: false,
	}
}

// Initialize derives the mini secret from a BIP39 mnemonic the way Substrate
// does: PBKDF2 runs over the mnemonic entropy, not over its words.
func (m *manager) Initialize(mnemonic string, password string) error {
	const (
		pbkdf2Iterations = 2048 // BIP39 standard iterations
		pbkdf2KeyLength  = 64   // BIP39 standard key length (512 bits)
	)

	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return errors.Wrap(err, "invalid mnemonic")
	}
	defer clear(entropy)

	derived := pbkdf2.Key(
		entropy,
		[]byte("mnemonic"+password),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)
	defer clear(derived)

	return m.InitializeSeed(derived[:Size])
}

// InitializeSeed stores a raw 32-byte mini secret.
func (m *manager) InitializeSeed(seed []byte) error {
	if len(seed) != Size {
		return errors.Errorf("seed must be %d bytes, got %d", Size, len(seed))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.seed)
	m.seed = make([]byte, Size)
	copy(m.seed, seed)
	m.initialized = true

	return nil
}

// GetSeed gets the seed (returns a copy to prevent external modification)
func (m *manager) GetSeed() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized || m.seed == nil {
		return nil
	}

	// Return a copy to prevent external modification
	seedCopy := make([]byte, len(m.seed))
	copy(seedCopy, m.seed)
	return seedCopy
}

// IsInitialized checks if seed is initialized
func (m *manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.initialized
}

// Clear clears the seed from memory
func (m *manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seed != nil {
		// Clear seed from memory
		clear(m.seed)
		m.seed = nil
	}
	m.initialized = false
}

// NewMnemonic generates a fresh 24-word mnemonic.
func NewMnemonic() (string, error) {
	const entropyBits = 256

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate entropy")
	}
	defer clear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode mnemonic")
	}

	return mnemonic, nil
}
