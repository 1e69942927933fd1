// Package rpc is the JSON-RPC 2.0 layer of the wallet core. Requests are
// encoded into a fixed buffer, sent as WebSocket text frames and correlated
// with their response by identifier. At most one call is outstanding.
package rpc

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
	"github/chapool/dot-wallet/internal/wallet/poll"
	"github/chapool/dot-wallet/internal/wallet/websocket"
)

const (
	RequestCapacity = 1536
	ResultCapacity  = 1024
)

// Stream is the message transport the client runs over.
type Stream interface {
	SendText(p []byte) error
	Receive() (websocket.Frame, error)
}

// Observer is told the outcome of every finished call.
type Observer interface {
	CallCompleted(method string, err error)
}

type nopObserver struct{}

func (nopObserver) CallCompleted(string, error) {}

// Client issues JSON-RPC calls over a Stream. It is not safe for concurrent
// use.
type Client struct {
	stream   Stream
	log      zerolog.Logger
	observer Observer

	lastID  uint32
	pending bool
	sent    bool
	id      uint32
	method  Method

	request    [RequestCapacity]byte
	requestLen int
	result     [ResultCapacity]byte
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

func NewClient(stream Stream, opts ...Option) *Client {
	c := &Client{
		stream:   stream,
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Begin encodes a request for method with the next identifier. Nothing is
// sent until Poll.
func (c *Client) Begin(method Method, params ...Param) error {
	if c.pending {
		return errors.Wrapf(errs.ErrCallPending, "cannot begin %s while %s (id %d) is outstanding", method, c.method, c.id)
	}
	if !method.Valid() {
		return errors.Errorf("unsupported method %d", int(method))
	}
	if c.lastID == math.MaxUint32 {
		return errs.ErrIDsExhausted
	}

	id := c.lastID + 1
	buf := fixedbuf.New(c.request[:])
	if err := encodeRequest(&buf, id, method, params); err != nil {
		return errors.Wrapf(err, "failed to encode %s request", method)
	}

	c.lastID = id
	c.id = id
	c.method = method
	c.requestLen = buf.Len()
	c.pending = true
	c.sent = false

	c.log.Debug().Str("method", method.String()).Uint32("id", id).Msg("RPC call started")

	return nil
}

// Poll advances the outstanding call. It returns errs.ErrWouldBlock until the
// response arrives.
func (c *Client) Poll() (Result, error) {
	if !c.pending {
		return Result{}, errs.ErrNoCallPending
	}

	if !c.sent {
		if err := c.stream.SendText(c.request[:c.requestLen]); err != nil {
			if errors.Is(err, errs.ErrWouldBlock) {
				return Result{}, err
			}
			return Result{}, c.finish(errors.Wrapf(err, "failed to send %s request", c.method))
		}
		c.sent = true
	}

	for {
		frame, err := c.stream.Receive()
		if err != nil {
			if errors.Is(err, errs.ErrWouldBlock) {
				return Result{}, err
			}
			return Result{}, c.finish(errors.Wrapf(err, "failed to receive %s response", c.method))
		}

		switch frame.Opcode {
		case websocket.OpPing, websocket.OpPong:
			continue
		case websocket.OpText:
			res, err := decodeResponse(frame.Payload, c.id, c.method, c.result[:])
			if err != nil {
				return Result{}, c.finish(err)
			}
			c.finish(nil)
			return res, nil
		case websocket.OpClose:
			return Result{}, c.finish(errors.Wrapf(errs.ErrCloseFrame, "while awaiting %s response", c.method))
		case websocket.OpBinary, websocket.OpContinuation:
			return Result{}, c.finish(errors.Wrapf(errs.ErrUnsolicited, "%s frame while awaiting %s response", frame.Opcode, c.method))
		default:
			return Result{}, c.finish(errors.Wrapf(errs.ErrUnsolicited, "%s frame", frame.Opcode))
		}
	}
}

// Call runs Begin and polls with driver until the call completes. When the
// budget runs out the call is abandoned and errs.ErrTimeout returned; the
// connection should then be considered faulted.
func (c *Client) Call(ctx context.Context, driver poll.Driver, method Method, params ...Param) (Result, error) {
	if err := c.Begin(method, params...); err != nil {
		return Result{}, err
	}

	var res Result
	err := driver.Run(ctx, func() error {
		var err error
		res, err = c.Poll()
		return err
	})

	if errors.Is(err, errs.ErrTimeout) {
		c.finish(errors.Wrapf(err, "%s (id %d) unanswered", method, c.id))
	}

	return res, err
}

// Pending reports whether a call is outstanding.
func (c *Client) Pending() bool {
	return c.pending
}

// LastID returns the most recently issued identifier (0 before the first call).
func (c *Client) LastID() uint32 {
	return c.lastID
}

// Abandon drops the outstanding call, if any.
func (c *Client) Abandon() {
	if c.pending {
		c.finish(errors.Wrapf(errs.ErrTimeout, "%s abandoned", c.method))
	}
}

// Reset restarts identifiers at 1 for a new connection.
func (c *Client) Reset() {
	c.pending = false
	c.sent = false
	c.lastID = 0
	c.id = 0
	c.requestLen = 0
}

func (c *Client) finish(err error) error {
	c.pending = false
	c.sent = false
	c.observer.CallCompleted(c.method.String(), err)

	if err != nil {
		c.log.Debug().Err(err).Str("method", c.method.String()).Uint32("id", c.id).Msg("RPC call failed")
	}

	return err
}
