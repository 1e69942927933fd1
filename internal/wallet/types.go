package wallet

import (
	"io"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/metrics"
	"github/chapool/dot-wallet/internal/wallet/extrinsic"
	"github/chapool/dot-wallet/internal/wallet/poll"
)

const (
	defaultNodeAddress = "127.0.0.1:9944"
	defaultNodeHost    = "127.0.0.1"
	defaultNodePath    = "/"
)

type Option func(*Wallet)

// WithNode sets the dial address and the Host and path of the upgrade request.
func WithNode(address, host, path string) Option {
	return func(w *Wallet) {
		w.address = address
		w.host = host
		w.path = path
	}
}

// WithDriver sets the poll budget of every operation.
func WithDriver(d poll.Driver) Option {
	return func(w *Wallet) {
		w.driver = d
	}
}

// WithParams sets the runtime specifics of call and extension encoding.
func WithParams(p extrinsic.Params) Option {
	return func(w *Wallet) {
		w.params = p
	}
}

// WithPrefix sets the SS58 network prefix of displayed and queried accounts.
func WithPrefix(prefix uint16) Option {
	return func(w *Wallet) {
		w.prefix = prefix
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Wallet) {
		w.log = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wallet) {
		w.metrics = m
	}
}

// WithEntropy replaces crypto/rand for handshake keys.
func WithEntropy(r io.Reader) Option {
	return func(w *Wallet) {
		w.entropy = r
	}
}

type transferOptions struct {
	nonce        *uint64
	tip          *uint256.Int
	mortalPeriod uint64
	keepAlive    bool
}

type TransferOption func(*transferOptions)

// WithNonce skips the system_accountNextIndex query.
func WithNonce(nonce uint64) TransferOption {
	return func(o *transferOptions) {
		o.nonce = &nonce
	}
}

func WithTip(tip *uint256.Int) TransferOption {
	return func(o *transferOptions) {
		o.tip = tip
	}
}

// WithMortality makes the transaction valid for about period blocks from the
// finalized head. Without it transactions are immortal.
func WithMortality(period uint64) TransferOption {
	return func(o *transferOptions) {
		o.mortalPeriod = period
	}
}

// WithKeepAlive uses transfer_keep_alive, which refuses to reap the sender.
func WithKeepAlive() TransferOption {
	return func(o *transferOptions) {
		o.keepAlive = true
	}
}

func applyTransferOptions(opts []TransferOption) transferOptions {
	var o transferOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
