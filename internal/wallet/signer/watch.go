package signer

import (
	"github.com/pkg/errors"
)

// ErrWatchOnly is returned by a watch-only signer for every signature.
var ErrWatchOnly = errors.New("watch-only account cannot sign")

type watchOnly struct {
	identity Identity
}

// NewWatchOnly returns a signer that knows an account but holds no key. It
// serves read-only sessions.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewWatchOnly(identity Identity) Signer {
	return &watchOnly{identity: identity}
}

func (w *watchOnly) PublicIdentity() Identity {
	return w.identity
}

func (w *watchOnly) Sign([]byte) (Signature, error) {
	return Signature{}, ErrWatchOnly
}
