package signer

// Scheme is a signature scheme. The values are the on-chain MultiSignature
// variant indexes.
type Scheme byte

const (
	Ed25519 Scheme = 0
	Sr25519 Scheme = 1
)

func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	default:
		return "unknown"
	}
}

// Identity is the public half of a signing key.
type Identity struct {
	Scheme    Scheme
	PublicKey [32]byte
}

// Signature is a 64-byte signature produced under Scheme.
type Signature struct {
	Scheme Scheme
	Bytes  [64]byte
}

// Signer holds or brokers key material. Sign may report errs.ErrWouldBlock
// while a remote device is busy; the caller polls it again with the same
// message. Any other error is a signing failure and is not inspected.
type Signer interface {
	// PublicIdentity returns the key that signatures verify against
	PublicIdentity() Identity

	// Sign signs message as is
	Sign(message []byte) (Signature, error)
}
