package extrinsic

import (
	"encoding/hex"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/wallet/chain"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
	"github/chapool/dot-wallet/internal/wallet/scale"
	"github/chapool/dot-wallet/internal/wallet/signer"
	"golang.org/x/crypto/blake2b"
)

const (
	PayloadCapacity   = 512
	ExtrinsicCapacity = 512
	HexCapacity       = 2 + 2*ExtrinsicCapacity

	// Payloads longer than this are signed by their blake2b-256 hash.
	maxUnhashedPayload = 256

	signedV4        = 0x84
	metadataHashOff = 0x00
	noMetadataHash  = 0x00

	// Room in front of the body for its compact length prefix.
	lengthHeadroom = 4
)

// Extras are the per-transaction values the signature commits to.
type Extras struct {
	Era   Era
	Nonce uint64
	// Tip is nil for no tip.
	Tip *uint256.Int
	// Checkpoint is the hash of the era's birth block. Immortal
	// transactions use the genesis hash and ignore it.
	Checkpoint [32]byte
}

// Encoded is a built extrinsic. Both slices alias the builder and stay valid
// until its next Build.
type Encoded struct {
	Raw []byte
	// Hex is Raw as 0x-prefixed lowercase hex.
	Hex []byte
}

func (e Encoded) String() string {
	return string(e.Hex)
}

// Builder turns calls into signed extrinsics without allocating. It keeps
// a signing in progress across calls to Build, so it is not safe for
// concurrent use.
type Builder struct {
	params Params
	signer signer.Signer
	log    zerolog.Logger

	signing  bool
	callLen  int
	extraLen int

	payload    [PayloadCapacity]byte
	payloadLen int
	digest     [32]byte
	extrinsic  [ExtrinsicCapacity + lengthHeadroom]byte
	hex        [HexCapacity]byte
}

type Option func(*Builder)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Builder) {
		b.log = logger
	}
}

func NewBuilder(params Params, s signer.Signer, opts ...Option) *Builder {
	b := &Builder{
		params: params,
		signer: s,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Builder) Params() Params {
	return b.params
}

// Build encodes call with extras, has it signed and assembles the submittable
// extrinsic. While the signer reports errs.ErrWouldBlock, so does Build; the
// caller polls it again with the same arguments. Any failure wipes the
// builder.
func (b *Builder) Build(call Call, snapshot chain.Snapshot, extras Extras) (Encoded, error) {
	if !b.signing {
		if err := b.prepare(call, snapshot, extras); err != nil {
			b.Abandon()
			return Encoded{}, err
		}
		b.signing = true
	}

	sig, err := b.signer.Sign(b.message())
	if errors.Is(err, errs.ErrWouldBlock) {
		return Encoded{}, errs.ErrWouldBlock
	}
	if err != nil {
		b.Abandon()
		return Encoded{}, errs.Signing(err)
	}

	encoded, err := b.assemble(sig)
	if err != nil {
		b.Abandon()
		return Encoded{}, err
	}

	b.signing = false
	clear(b.payload[:])
	clear(b.digest[:])

	b.log.Debug().Int("length", len(encoded.Raw)).Uint64("nonce", extras.Nonce).Msg("Extrinsic built")

	return encoded, nil
}

// Signing reports whether a Build is waiting for the signer.
func (b *Builder) Signing() bool {
	return b.signing
}

// Abandon drops a signing in progress and wipes every buffer.
func (b *Builder) Abandon() {
	b.signing = false
	b.callLen = 0
	b.extraLen = 0
	b.payloadLen = 0
	clear(b.payload[:])
	clear(b.digest[:])
	clear(b.extrinsic[:])
	clear(b.hex[:])
}

func (b *Builder) prepare(call Call, snapshot chain.Snapshot, extras Extras) error {
	buf := fixedbuf.New(b.payload[:])

	callLen, extraLen, err := encodeSigningPayload(&buf, call, b.params, snapshot, extras)
	if err != nil {
		return errors.Wrap(err, "failed to encode signing payload")
	}

	b.callLen = callLen
	b.extraLen = extraLen
	b.payloadLen = buf.Len()

	if b.payloadLen > maxUnhashedPayload {
		b.digest = blake2b.Sum256(b.payload[:b.payloadLen])
	}

	return nil
}

func (b *Builder) message() []byte {
	if b.payloadLen > maxUnhashedPayload {
		return b.digest[:]
	}
	return b.payload[:b.payloadLen]
}

func (b *Builder) assemble(sig signer.Signature) (Encoded, error) {
	identity := b.signer.PublicIdentity()

	body := fixedbuf.New(b.extrinsic[lengthHeadroom:])
	enc := scale.NewEncoder(&body)

	enc.Byte(signedV4)
	if b.params.MultiAddress {
		enc.Byte(multiAddressID)
	}
	enc.Raw(identity.PublicKey[:])
	enc.Byte(byte(sig.Scheme))
	enc.Raw(sig.Bytes[:])
	enc.Raw(b.payload[b.callLen : b.callLen+b.extraLen])
	enc.Raw(b.payload[:b.callLen])

	if err := enc.Err(); err != nil {
		return Encoded{}, errors.Wrap(err, "failed to assemble extrinsic")
	}

	var prefix [9]byte
	lengthPrefix := scale.AppendCompact(prefix[:0], uint64(body.Len()))
	start := lengthHeadroom - len(lengthPrefix)
	copy(b.extrinsic[start:], lengthPrefix)
	raw := b.extrinsic[start : lengthHeadroom+body.Len()]

	if limit := b.params.MaxExtrinsicSize; limit > 0 && len(raw) > limit {
		return Encoded{}, errors.Wrapf(errs.ErrExtrinsicTooLarge, "%d bytes, node accepts %d", len(raw), limit)
	}

	n := 2 + hex.EncodedLen(len(raw))
	if n > len(b.hex) {
		return Encoded{}, errors.Wrap(errs.ErrCapacity, "hex output")
	}
	b.hex[0] = '0'
	b.hex[1] = 'x'
	hex.Encode(b.hex[2:], raw)

	return Encoded{Raw: raw, Hex: b.hex[:n:n]}, nil
}

// encodeSigningPayload writes call | extra | additional signed data into buf
// and returns the lengths of the call and extra regions.
func encodeSigningPayload(buf *fixedbuf.Buffer, call Call, p Params, snapshot chain.Snapshot, extras Extras) (int, int, error) {
	if call == nil {
		return 0, 0, errors.Wrap(errs.ErrBadExtrinsic, "no call to encode")
	}

	enc := scale.NewEncoder(buf)

	if err := call.encodeCall(enc, p); err != nil {
		return 0, 0, err
	}
	callLen := buf.Len()

	extras.Era.encode(enc)
	enc.Compact(extras.Nonce)
	if extras.Tip == nil {
		enc.Compact(0)
	} else {
		if extras.Tip.BitLen() > maxAmountBits {
			return 0, 0, errors.Wrapf(errs.ErrAmountOverflow, "tip %s", extras.Tip.Dec())
		}
		enc.CompactBig(extras.Tip)
	}
	if p.MetadataHashExtension {
		enc.Byte(metadataHashOff)
	}
	extraLen := buf.Len() - callLen

	checkpoint := extras.Checkpoint
	if extras.Era.IsImmortal() {
		checkpoint = snapshot.Genesis
	}

	enc.U32(snapshot.SpecVersion)
	enc.U32(snapshot.TransactionVersion)
	enc.Raw(snapshot.Genesis[:])
	enc.Raw(checkpoint[:])
	if p.MetadataHashExtension {
		enc.Byte(noMetadataHash)
	}

	return callLen, extraLen, enc.Err()
}
