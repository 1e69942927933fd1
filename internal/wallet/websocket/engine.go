// Package websocket is a minimal RFC 6455 client over a polled transport.
//
// The engine owns two fixed buffers and never allocates per frame. It speaks
// unfragmented text and binary frames only: continuation frames and frames
// without FIN fault the connection. Pings are answered automatically and a
// server close is acknowledged before the engine reports StateClosed.
package websocket

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
	"github/chapool/dot-wallet/internal/wallet/transport"
)

const (
	// ReceiveCapacity bounds the largest frame (header included) the engine
	// accepts, and the upgrade response head.
	ReceiveCapacity = 4096
	// SendCapacity bounds the largest frame the engine emits.
	SendCapacity = 2048

	closeNormal = 1000
)

type handshakePhase int

const (
	phaseDial handshakePhase = iota
	phaseRequest
	phaseResponse
)

// Engine is a single WebSocket connection. It is not safe for concurrent use.
type Engine struct {
	transport transport.Transport
	entropy   io.Reader
	log       zerolog.Logger
	observer  Observer

	state State
	phase handshakePhase
	key   [keyBytes]byte

	out            [SendCapacity]byte
	outLen         int
	outSent        int
	outOpcode      Opcode
	pendingControl bool

	in       [ReceiveCapacity]byte
	inLen    int
	consumed int
}

// Option configures an Engine.
type Option func(*Engine)

// WithEntropy replaces crypto/rand as the source of handshake keys and
// masking keys.
func WithEntropy(r io.Reader) Option {
	return func(e *Engine) {
		e.entropy = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New returns a closed engine over t.
func New(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		transport: t,
		entropy:   rand.Reader,
		log:       zerolog.Nop(),
		observer:  nopObserver{},
		state:     StateClosed,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) State() State {
	return e.state
}

// Connect opens the transport to address and performs the upgrade handshake
// for host and path. It is re-entrant: while the handshake is in progress it
// returns errs.ErrWouldBlock and the caller calls it again with the same
// arguments. A faulted or closed engine starts over.
func (e *Engine) Connect(address, host, path string) error {
	switch e.state {
	case StateOpen:
		return nil
	case StateClosing:
		return errors.Wrap(errs.ErrNotOpen, "close in progress")
	case StateClosed, StateFaulted:
		e.resetBuffers()
		e.phase = phaseDial
		e.setState(StateHandshaking)
	case StateHandshaking:
	}

	for {
		switch e.phase {
		case phaseDial:
			if err := e.transport.Connect(address); err != nil {
				if errors.Is(err, errs.ErrWouldBlock) {
					return errs.ErrWouldBlock
				}
				return e.handshakeFailed(errors.Wrapf(errs.Transport(err), "failed to connect to %s", address))
			}

			if err := e.prepareUpgrade(host, path); err != nil {
				return e.handshakeFailed(err)
			}
			e.phase = phaseRequest

		case phaseRequest:
			if err := e.flush(); err != nil {
				if errors.Is(err, errs.ErrWouldBlock) {
					return err
				}
				return e.handshakeFailed(err)
			}
			e.phase = phaseResponse

		case phaseResponse:
			end := bytes.Index(e.in[:e.inLen], headerEnd)
			if end < 0 {
				if e.inLen == len(e.in) {
					return e.handshakeFailed(errors.Wrap(errs.ErrCapacity, "upgrade response head exceeds receive buffer"))
				}
				if err := e.fill(); err != nil {
					if errors.Is(err, errs.ErrWouldBlock) {
						return err
					}
					return e.handshakeFailed(err)
				}
				continue
			}

			if err := validateUpgradeResponse(e.in[:end], e.key[:]); err != nil {
				return e.handshakeFailed(err)
			}

			// Bytes after the head already belong to the frame stream.
			headLen := end + len(headerEnd)
			e.inLen = copy(e.in[:], e.in[headLen:e.inLen])

			e.observer.HandshakeCompleted(nil)
			e.setState(StateOpen)
			e.log.Debug().Str("host", host).Str("path", path).Msg("WebSocket connection open")

			return nil
		}
	}
}

// SendText sends p as a single text frame. After errs.ErrWouldBlock the
// caller repeats the call with the same p until it returns nil; the frame is
// built once and resumed.
func (e *Engine) SendText(p []byte) error {
	return e.send(OpText, p)
}

// SendBinary is SendText for binary frames.
func (e *Engine) SendBinary(p []byte) error {
	return e.send(OpBinary, p)
}

func (e *Engine) send(opcode Opcode, p []byte) error {
	if e.state != StateOpen {
		return errors.Wrapf(errs.ErrNotOpen, "cannot send in state %s", e.state)
	}

	if e.outLen > 0 && e.pendingControl {
		if err := e.flushOrFault(); err != nil {
			return err
		}
	}

	if e.outLen == 0 {
		if err := e.queue(opcode, p); err != nil {
			// Oversized messages leave the connection usable.
			return err
		}
	}

	return e.flushOrFault()
}

// Receive returns the next complete text, binary, ping, pong or close frame.
// The payload aliases the receive buffer and is valid until the next call.
// A close frame is acknowledged and leaves the engine in StateClosed.
func (e *Engine) Receive() (Frame, error) {
	if e.state != StateOpen {
		return Frame{}, errors.Wrapf(errs.ErrNotOpen, "cannot receive in state %s", e.state)
	}

	if e.outLen > 0 {
		if err := e.flushOrFault(); err != nil {
			return Frame{}, err
		}
	}

	frame, err := e.next()
	if err != nil {
		return Frame{}, err
	}

	switch frame.Opcode {
	case OpPing:
		if err := e.queueControl(OpPong, frame.Payload); err != nil {
			return Frame{}, e.fault(err)
		}
		if err := e.flush(); err != nil && !errors.Is(err, errs.ErrWouldBlock) {
			return Frame{}, e.fault(err)
		}
	case OpClose:
		e.acknowledgeClose(frame.Payload)
	case OpText, OpBinary, OpPong, OpContinuation:
	}

	return frame, nil
}

// Close runs the closing handshake. It is re-entrant like Connect. Closing a
// closed or faulted engine is a no-op.
func (e *Engine) Close() error {
	switch e.state {
	case StateClosed, StateFaulted:
		return nil
	case StateHandshaking:
		e.shutdown(StateClosed)
		return nil
	case StateOpen:
		if e.outLen > 0 {
			if err := e.flushOrFault(); err != nil {
				return err
			}
		}

		var status [2]byte
		binary.BigEndian.PutUint16(status[:], closeNormal)
		if err := e.queueControl(OpClose, status[:]); err != nil {
			return e.fault(err)
		}
		e.setState(StateClosing)
	case StateClosing:
	}

	if e.outLen > 0 {
		if err := e.flushOrFault(); err != nil {
			return err
		}
	}

	for {
		frame, err := e.next()
		if err != nil {
			return err
		}
		if frame.Opcode == OpClose {
			e.shutdown(StateClosed)
			return nil
		}
	}
}

// Fault marks the connection unusable and releases the transport. It
// returns err for convenience.
func (e *Engine) Fault(err error) error {
	return e.fault(err)
}

// Reset returns a faulted engine to StateClosed. Connect also accepts a
// faulted engine, so Reset only matters to callers that inspect State.
func (e *Engine) Reset() {
	if e.state == StateFaulted {
		e.resetBuffers()
		e.setState(StateClosed)
	}
}

func (e *Engine) fault(err error) error {
	if e.state == StateFaulted {
		return err
	}

	e.log.Warn().Err(err).Str("state", e.state.String()).Msg("WebSocket connection faulted")
	e.shutdown(StateFaulted)

	return err
}

func (e *Engine) handshakeFailed(err error) error {
	e.observer.HandshakeCompleted(err)
	return e.fault(err)
}

func (e *Engine) shutdown(next State) {
	if err := e.transport.Close(); err != nil {
		e.log.Debug().Err(err).Msg("Failed to close transport")
	}
	e.resetBuffers()
	e.setState(next)
}

func (e *Engine) acknowledgeClose(payload []byte) {
	var status []byte
	if len(payload) >= 2 {
		status = payload[:2]
	}

	e.log.Debug().Int("payload_bytes", len(payload)).Msg("Peer closed WebSocket connection")

	e.outLen, e.outSent = 0, 0
	if err := e.queueControl(OpClose, status); err == nil {
		// Best effort: the transport is released whether or not the reply
		// leaves in one attempt.
		_ = e.flush()
	}

	e.shutdown(StateClosed)
}

// next parses the next frame from the receive buffer, reading from the
// transport as needed.
func (e *Engine) next() (Frame, error) {
	if e.consumed > 0 {
		e.inLen = copy(e.in[:], e.in[e.consumed:e.inLen])
		e.consumed = 0
	}

	for {
		frame, n, need, err := parseFrame(e.in[:e.inLen])
		if err != nil {
			return Frame{}, e.fault(err)
		}

		if n > 0 {
			e.consumed = n
			e.observer.FrameReceived(frame.Opcode.String())
			return frame, nil
		}

		if need > uint64(len(e.in)) {
			return Frame{}, e.fault(errors.Wrapf(errs.ErrCapacity, "frame of %d bytes exceeds receive buffer of %d", need, len(e.in)))
		}

		if err := e.fill(); err != nil {
			if errors.Is(err, errs.ErrWouldBlock) {
				return Frame{}, err
			}
			return Frame{}, e.fault(err)
		}
	}
}

func (e *Engine) fill() error {
	n, err := e.transport.Receive(e.in[e.inLen:])
	if err != nil {
		return errs.Transport(err)
	}
	if n == 0 {
		return errs.ErrWouldBlock
	}
	if n > len(e.in)-e.inLen {
		return errors.Wrapf(errs.ErrShortWrite, "transport reported %d bytes received", n)
	}

	e.inLen += n
	return nil
}

func (e *Engine) flushOrFault() error {
	err := e.flush()
	if err == nil || errors.Is(err, errs.ErrWouldBlock) {
		return err
	}
	return e.fault(err)
}

func (e *Engine) flush() error {
	for e.outSent < e.outLen {
		n, err := e.transport.Send(e.out[e.outSent:e.outLen])
		if err != nil {
			return errs.Transport(err)
		}
		if n == 0 {
			return errs.ErrWouldBlock
		}
		if n > e.outLen-e.outSent {
			return errors.Wrapf(errs.ErrShortWrite, "transport accepted %d of %d bytes", n, e.outLen-e.outSent)
		}
		e.outSent += n
	}

	if e.outLen > 0 && e.state != StateHandshaking {
		e.observer.FrameSent(e.outOpcode.String())
	}

	e.outLen, e.outSent = 0, 0
	e.pendingControl = false

	return nil
}

func (e *Engine) queue(opcode Opcode, payload []byte) error {
	var mask [maskKeyBytes]byte
	if _, err := io.ReadFull(e.entropy, mask[:]); err != nil {
		return errors.Wrapf(errs.ErrBadFrame, "failed to generate masking key: %v", err)
	}

	n, err := encodeFrame(e.out[:], opcode, payload, mask)
	if err != nil {
		return err
	}

	e.outLen, e.outSent = n, 0
	e.outOpcode = opcode
	e.pendingControl = opcode.IsControl()

	return nil
}

func (e *Engine) queueControl(opcode Opcode, payload []byte) error {
	if e.outLen > 0 {
		// A frame is still leaving; the control frame would interleave with it.
		if err := e.flush(); err != nil {
			return err
		}
	}
	return e.queue(opcode, payload)
}

func (e *Engine) prepareUpgrade(host, path string) error {
	var nonce [nonceBytes]byte
	if _, err := io.ReadFull(e.entropy, nonce[:]); err != nil {
		return errors.Wrapf(errs.ErrHandshake, "failed to generate key: %v", err)
	}
	base64.StdEncoding.Encode(e.key[:], nonce[:])

	buf := fixedbuf.New(e.out[:])
	if err := writeUpgradeRequest(&buf, host, path, e.key[:]); err != nil {
		return err
	}

	e.outLen, e.outSent = buf.Len(), 0
	e.pendingControl = false

	return nil
}

func (e *Engine) resetBuffers() {
	e.outLen, e.outSent = 0, 0
	e.pendingControl = false
	e.inLen, e.consumed = 0, 0
}

func (e *Engine) setState(next State) {
	if e.state == next {
		return
	}

	e.log.Debug().Str("from", e.state.String()).Str("to", next.String()).Msg("WebSocket state changed")
	e.state = next
	e.observer.StateChanged(next.String())
}
