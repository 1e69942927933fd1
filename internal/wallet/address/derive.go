package address

import (
	"crypto/ed25519"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/scale"
	"golang.org/x/crypto/blake2b"
)

const (
	seedSize      = ed25519.SeedSize
	chainCodeSize = 32
)

var ed25519HDKD = []byte("Ed25519HDKD")

// DeriveSeed applies the hard junctions of path ("//Alice//0") to an ed25519
// seed. An empty path returns a copy of seed.
// WARNING: Caller must clear the returned seed after use.
func DeriveSeed(seed []byte, path string) ([]byte, error) {
	if len(seed) != seedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", seedSize, len(seed))
	}

	junctions, err := parseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse derivation path")
	}

	derived := make([]byte, seedSize)
	copy(derived, seed)

	for _, junction := range junctions {
		code := chainCode(junction)

		h, _ := blake2b.New256(nil)
		h.Write(scale.AppendCompact(nil, uint64(len(ed25519HDKD))))
		h.Write(ed25519HDKD)
		h.Write(derived)
		h.Write(code[:])

		h.Sum(derived[:0])
	}

	return derived, nil
}

// PublicKey returns the ed25519 public key of seed.
func PublicKey(seed []byte) (AccountID, error) {
	var account AccountID

	if len(seed) != seedSize {
		return account, errors.Errorf("seed must be %d bytes, got %d", seedSize, len(seed))
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	defer clear(privateKey)

	copy(account[:], privateKey.Public().(ed25519.PublicKey))

	return account, nil
}

// parseDerivationPath splits "//a//b" into its junctions. Soft junctions
// ("/a") do not exist for ed25519 and are rejected.
func parseDerivationPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "//") {
		return nil, errors.Errorf("invalid derivation path: %s", path)
	}

	parts := strings.Split(path[2:], "//")
	for _, part := range parts {
		if part == "" {
			return nil, errors.Errorf("empty junction in path: %s", path)
		}
		if strings.Contains(part, "/") {
			return nil, errors.Errorf("soft junction in path %s is not supported for ed25519", path)
		}
	}

	return parts, nil
}

// chainCode encodes a junction: numbers as u64, everything else as a SCALE
// string, hashed when longer than the chain code.
func chainCode(junction string) [chainCodeSize]byte {
	var code [chainCodeSize]byte

	var encoded []byte
	if n, err := strconv.ParseUint(junction, 10, 64); err == nil {
		encoded = binary.LittleEndian.AppendUint64(nil, n)
	} else {
		encoded = scale.AppendCompact(nil, uint64(len(junction)))
		encoded = append(encoded, junction...)
	}

	if len(encoded) > chainCodeSize {
		return blake2b.Sum256(encoded)
	}

	copy(code[:], encoded)
	return code
}
