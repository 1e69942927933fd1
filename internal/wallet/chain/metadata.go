// Package chain holds what the wallet has learned about the connected chain.
package chain

import (
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Snapshot is the chain state a signing payload depends on.
type Snapshot struct {
	Genesis            [32]byte
	SpecVersion        uint32
	TransactionVersion uint32
}

// Metadata caches the genesis hash and runtime version. It is filled from
// RPC responses and read by the extrinsic builder. The zero value is empty.
type Metadata struct {
	genesis            [32]byte
	specVersion        uint32
	transactionVersion uint32
	hasGenesis         bool
	hasRuntime         bool
}

func (m *Metadata) SetGenesis(hash [32]byte) {
	m.genesis = hash
	m.hasGenesis = true
}

func (m *Metadata) SetRuntimeVersion(specVersion, transactionVersion uint32) {
	m.specVersion = specVersion
	m.transactionVersion = transactionVersion
	m.hasRuntime = true
}

// Genesis returns the cached genesis hash and whether it is set.
func (m *Metadata) Genesis() ([32]byte, bool) {
	return m.genesis, m.hasGenesis
}

// RuntimeVersion returns the cached spec and transaction versions and whether
// they are set.
func (m *Metadata) RuntimeVersion() (specVersion, transactionVersion uint32, ok bool) {
	return m.specVersion, m.transactionVersion, m.hasRuntime
}

// Ready reports whether both the genesis hash and the runtime version are set.
func (m *Metadata) Ready() bool {
	return m.hasGenesis && m.hasRuntime
}

// Snapshot returns the cached values, or errs.ErrMetadataNotReady.
func (m *Metadata) Snapshot() (Snapshot, error) {
	switch {
	case !m.hasGenesis && !m.hasRuntime:
		return Snapshot{}, errors.Wrap(errs.ErrMetadataNotReady, "genesis hash and runtime version unknown")
	case !m.hasGenesis:
		return Snapshot{}, errors.Wrap(errs.ErrMetadataNotReady, "genesis hash unknown")
	case !m.hasRuntime:
		return Snapshot{}, errors.Wrap(errs.ErrMetadataNotReady, "runtime version unknown")
	}

	return Snapshot{
		Genesis:            m.genesis,
		SpecVersion:        m.specVersion,
		TransactionVersion: m.transactionVersion,
	}, nil
}

// Invalidate forgets everything.
func (m *Metadata) Invalidate() {
	*m = Metadata{}
}
