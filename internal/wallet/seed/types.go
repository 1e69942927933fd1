package seed

// Manager provides seed management functionality
type Manager interface {
	// Initialize derives the seed from a mnemonic and password (called at startup)
	Initialize(mnemonic string, password string) error

	// InitializeSeed stores a raw 32-byte seed
	InitializeSeed(seed []byte) error

	// GetSeed gets the seed (from memory)
	GetSeed() []byte

	// IsInitialized checks if seed is initialized
	IsInitialized() bool

	// Clear clears the seed from memory
	Clear()
}
