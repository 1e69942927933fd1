// Package wallet is the single entry point of the wallet core. It owns one
// WebSocket connection, the RPC client on top of it, the chain metadata cache
// and the extrinsic builder, and drives them with a bounded poll budget.
package wallet

import (
	"context"
	"io"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/metrics"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/chain"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/extrinsic"
	"github/chapool/dot-wallet/internal/wallet/poll"
	"github/chapool/dot-wallet/internal/wallet/rpc"
	"github/chapool/dot-wallet/internal/wallet/signer"
	"github/chapool/dot-wallet/internal/wallet/transport"
	"github/chapool/dot-wallet/internal/wallet/websocket"
)

// Wallet is not safe for concurrent use: every operation runs to completion
// on the caller's thread of control.
type Wallet struct {
	engine   *websocket.Engine
	client   *rpc.Client
	builder  *extrinsic.Builder
	signer   signer.Signer
	metadata chain.Metadata
	metrics  *metrics.Metrics
	log      zerolog.Logger

	address string
	host    string
	path    string
	prefix  uint16
	driver  poll.Driver
	params  extrinsic.Params
	entropy io.Reader
}

// New creates a wallet that reaches its node through t and signs with s.
// Nothing is connected until Connect.
func New(t transport.Transport, s signer.Signer, opts ...Option) *Wallet {
	w := &Wallet{
		signer:  s,
		log:     zerolog.Nop(),
		address: defaultNodeAddress,
		host:    defaultNodeHost,
		path:    defaultNodePath,
		prefix:  address.SubstratePrefix,
		driver:  poll.DefaultDriver(),
		params:  extrinsic.DefaultParams(),
	}

	for _, opt := range opts {
		opt(w)
	}

	engineOpts := []websocket.Option{websocket.WithLogger(w.log)}
	clientOpts := []rpc.Option{rpc.WithLogger(w.log)}
	if w.entropy != nil {
		engineOpts = append(engineOpts, websocket.WithEntropy(w.entropy))
	}
	if w.metrics != nil {
		engineOpts = append(engineOpts, websocket.WithObserver(w.metrics))
		clientOpts = append(clientOpts, rpc.WithObserver(w.metrics))
	}

	w.engine = websocket.New(t, engineOpts...)
	w.client = rpc.NewClient(w.engine, clientOpts...)
	w.builder = extrinsic.NewBuilder(w.params, s, extrinsic.WithLogger(w.log))

	return w
}

func (w *Wallet) State() websocket.State {
	return w.engine.State()
}

// Connect opens the connection and completes the WebSocket handshake. Request
// identifiers restart at 1 for every new connection.
func (w *Wallet) Connect(ctx context.Context) error {
	log := util.LogFromContext(ctx).With().Str("node", w.address).Logger()

	if w.engine.State() == websocket.StateOpen {
		return nil
	}

	err := w.driver.Run(ctx, func() error {
		return w.engine.Connect(w.address, w.host, w.path)
	})
	if err != nil {
		if errors.Is(err, errs.ErrTimeout) {
			w.engine.Fault(err)
		}
		log.Warn().Err(err).Msg("Failed to connect to node")
		return errors.Wrapf(err, "failed to connect to %s", w.address)
	}

	w.client.Reset()
	w.builder.Abandon()

	log.Info().Msg("Connected to node")

	return nil
}

// Close runs the closing handshake. A faulted or closed connection is left
// as is.
func (w *Wallet) Close(ctx context.Context) error {
	err := w.driver.Run(ctx, w.engine.Close)
	if err != nil {
		if errors.Is(err, errs.ErrTimeout) {
			w.engine.Fault(err)
		}
		return errors.Wrap(err, "failed to close connection")
	}

	w.client.Reset()

	return nil
}

// Address returns the SS58 address of the signing key.
func (w *Wallet) Address() string {
	identity := w.signer.PublicIdentity()
	return address.AccountID(identity.PublicKey).SS58(w.prefix)
}

// Account returns the signing key as an account.
func (w *Wallet) Account() address.AccountID {
	return address.AccountID(w.signer.PublicIdentity().PublicKey)
}

// Metadata returns the cached chain metadata, or errs.ErrMetadataNotReady
// until RefreshMetadata succeeded.
func (w *Wallet) Metadata() (chain.Snapshot, error) {
	return w.metadata.Snapshot()
}

// InvalidateMetadata forgets the cached chain metadata, e.g. before switching
// to a node of another chain.
func (w *Wallet) InvalidateMetadata() {
	w.metadata.Invalidate()
}

// call runs one RPC call. Transport and protocol failures, including an
// exhausted poll budget, fault the connection; RPC and encoding failures
// leave it open. A response to another identifier also faults it: the reply
// to the request just sent may still be in flight and would be read by the
// next call.
func (w *Wallet) call(ctx context.Context, method rpc.Method, params ...rpc.Param) (rpc.Result, error) {
	if state := w.engine.State(); state != websocket.StateOpen {
		return rpc.Result{}, errors.Wrapf(errs.ErrNotOpen, "%s while %s", method, state)
	}

	res, err := w.client.Call(ctx, w.driver, method, params...)
	if err != nil {
		if faultsConnection(err) && w.engine.State() == websocket.StateOpen {
			w.engine.Fault(err)
		}
		util.LogFromContext(ctx).Debug().Err(err).Str("method", method.String()).Str("class", errs.Class(err)).Msg("RPC call failed")
		return rpc.Result{}, errors.Wrapf(err, "%s failed", method)
	}

	return res, nil
}

func faultsConnection(err error) bool {
	return errors.Is(err, errs.ErrTransport) ||
		errors.Is(err, errs.ErrProtocol) ||
		errors.Is(err, errs.ErrResponseMismatch)
}

// GenesisHash queries the genesis block hash and caches it.
func (w *Wallet) GenesisHash(ctx context.Context) (rpc.Hash, error) {
	res, err := w.call(ctx, rpc.ChainGetBlockHash, rpc.Number(0))
	if err != nil {
		return rpc.Hash{}, err
	}

	w.metadata.SetGenesis(res.Hash)

	return res.Hash, nil
}

// RuntimeVersion queries the runtime version and caches the spec and
// transaction versions. SpecName is valid until the next call.
func (w *Wallet) RuntimeVersion(ctx context.Context) (rpc.RuntimeVersion, error) {
	res, err := w.call(ctx, rpc.StateGetRuntimeVersion)
	if err != nil {
		return rpc.RuntimeVersion{}, err
	}

	w.metadata.SetRuntimeVersion(res.Runtime.SpecVersion, res.Runtime.TransactionVersion)

	return res.Runtime, nil
}

// RefreshMetadata queries everything the extrinsic builder depends on.
func (w *Wallet) RefreshMetadata(ctx context.Context) error {
	if _, err := w.GenesisHash(ctx); err != nil {
		return errors.Wrap(err, "failed to refresh genesis hash")
	}
	if _, err := w.RuntimeVersion(ctx); err != nil {
		return errors.Wrap(err, "failed to refresh runtime version")
	}

	return nil
}

// SystemChain returns the chain name. Text results are views valid until the
// next call.
func (w *Wallet) SystemChain(ctx context.Context) ([]byte, error) {
	return w.text(ctx, rpc.SystemChain)
}

func (w *Wallet) SystemName(ctx context.Context) ([]byte, error) {
	return w.text(ctx, rpc.SystemName)
}

func (w *Wallet) SystemVersion(ctx context.Context) ([]byte, error) {
	return w.text(ctx, rpc.SystemVersion)
}

func (w *Wallet) text(ctx context.Context, method rpc.Method) ([]byte, error) {
	res, err := w.call(ctx, method)
	if err != nil {
		return nil, err
	}
	return res.Text, nil
}

// RuntimeMetadata returns the SCALE encoded runtime metadata. It must fit the
// RPC result buffer.
func (w *Wallet) RuntimeMetadata(ctx context.Context) ([]byte, error) {
	res, err := w.call(ctx, rpc.StateGetMetadata)
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}

func (w *Wallet) FinalizedHead(ctx context.Context) (rpc.Hash, error) {
	res, err := w.call(ctx, rpc.ChainGetFinalizedHead)
	if err != nil {
		return rpc.Hash{}, err
	}
	return res.Hash, nil
}

// BlockHash returns the hash of block number n.
func (w *Wallet) BlockHash(ctx context.Context, n uint64) (rpc.Hash, error) {
	res, err := w.call(ctx, rpc.ChainGetBlockHash, rpc.Number(n))
	if err != nil {
		return rpc.Hash{}, err
	}
	if res.Hash.IsZero() {
		return rpc.Hash{}, errors.Wrapf(errs.ErrRPC, "block %d unknown to node", n)
	}
	return res.Hash, nil
}

func (w *Wallet) Header(ctx context.Context, hash rpc.Hash) (rpc.Header, error) {
	res, err := w.call(ctx, rpc.ChainGetHeader, rpc.String(hash.Hex()))
	if err != nil {
		return rpc.Header{}, err
	}
	return res.Header, nil
}

// AccountNonce returns the next transaction index of account, including
// transactions in the node's pool.
func (w *Wallet) AccountNonce(ctx context.Context, account address.AccountID) (uint64, error) {
	res, err := w.call(ctx, rpc.SystemAccountNextIndex, rpc.String(account.SS58(w.prefix)))
	if err != nil {
		return 0, err
	}
	return res.Number, nil
}

// BuildTransfer builds and signs a balance transfer of amount planck to dest.
// The returned extrinsic is valid until the next build.
func (w *Wallet) BuildTransfer(ctx context.Context, dest address.AccountID, amount *uint256.Int, opts ...TransferOption) (extrinsic.Encoded, error) {
	o := applyTransferOptions(opts)
	return w.BuildCall(ctx, extrinsic.Transfer{Dest: dest, Amount: amount, KeepAlive: o.keepAlive}, opts...)
}

// BuildCall builds and signs any supported call.
func (w *Wallet) BuildCall(ctx context.Context, call extrinsic.Call, opts ...TransferOption) (extrinsic.Encoded, error) {
	log := util.LogFromContext(ctx)
	o := applyTransferOptions(opts)

	snapshot, err := w.metadata.Snapshot()
	if err != nil {
		w.metrics.ExtrinsicBuilt(err)
		return extrinsic.Encoded{}, err
	}

	extras := extrinsic.Extras{Tip: o.tip}

	if o.nonce != nil {
		extras.Nonce = *o.nonce
	} else {
		extras.Nonce, err = w.AccountNonce(ctx, w.Account())
		if err != nil {
			w.metrics.ExtrinsicBuilt(err)
			return extrinsic.Encoded{}, errors.Wrap(err, "failed to get account nonce")
		}
	}

	if o.mortalPeriod > 0 {
		if err := w.mortality(ctx, o.mortalPeriod, &extras); err != nil {
			w.metrics.ExtrinsicBuilt(err)
			return extrinsic.Encoded{}, errors.Wrap(err, "failed to determine era")
		}
	}

	var encoded extrinsic.Encoded
	err = w.driver.Run(ctx, func() error {
		var err error
		encoded, err = w.builder.Build(call, snapshot, extras)
		return err
	})
	w.metrics.ExtrinsicBuilt(err)
	if err != nil {
		if w.builder.Signing() {
			w.builder.Abandon()
		}
		log.Warn().Err(err).Str("class", errs.Class(err)).Msg("Failed to build extrinsic")
		return extrinsic.Encoded{}, errors.Wrap(err, "failed to build extrinsic")
	}

	log.Debug().Uint64("nonce", extras.Nonce).Int("length", len(encoded.Raw)).Msg("Extrinsic built")

	return encoded, nil
}

// mortality anchors a mortal era at the finalized head. When the era starts
// before the head, its birth block hash becomes the checkpoint.
func (w *Wallet) mortality(ctx context.Context, period uint64, extras *extrinsic.Extras) error {
	head, err := w.FinalizedHead(ctx)
	if err != nil {
		return err
	}

	header, err := w.Header(ctx, head)
	if err != nil {
		return err
	}

	extras.Era = extrinsic.Mortal(period, header.Number)
	extras.Checkpoint = head

	if birth := extras.Era.Birth(header.Number); birth != header.Number {
		checkpoint, err := w.BlockHash(ctx, birth)
		if err != nil {
			return err
		}
		extras.Checkpoint = checkpoint
	}

	return nil
}

// Submit sends a built extrinsic and returns its hash.
func (w *Wallet) Submit(ctx context.Context, encoded extrinsic.Encoded) (rpc.Hash, error) {
	res, err := w.call(ctx, rpc.AuthorSubmitExtrinsic, rpc.String(encoded.String()))
	w.metrics.ExtrinsicSubmitted(err)
	if err != nil {
		return rpc.Hash{}, err
	}

	util.LogFromContext(ctx).Info().Str("hash", res.Hash.Hex()).Msg("Extrinsic submitted")

	return res.Hash, nil
}

// Transfer builds, signs and submits a balance transfer.
func (w *Wallet) Transfer(ctx context.Context, dest address.AccountID, amount *uint256.Int, opts ...TransferOption) (rpc.Hash, error) {
	encoded, err := w.BuildTransfer(ctx, dest, amount, opts...)
	if err != nil {
		return rpc.Hash{}, err
	}

	return w.Submit(ctx, encoded)
}
