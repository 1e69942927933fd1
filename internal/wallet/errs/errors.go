// Package errs defines the error classes shared by every layer of the wallet core.
//
// Each failure belongs to exactly one class (transport, protocol, rpc, encoding,
// signing, state). Callers test the class with errors.Is against the class
// sentinel, and the specific condition against the classified value:
//
//	errors.Is(err, errs.ErrEncoding) // any encoding failure
//	errors.Is(err, errs.ErrCapacity) // a fixed buffer was too small
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error classes.
var (
	ErrTransport = errors.New("transport error")
	ErrProtocol  = errors.New("protocol error")
	ErrRPC       = errors.New("rpc error")
	ErrEncoding  = errors.New("encoding error")
	ErrSigning   = errors.New("signing error")
	ErrState     = errors.New("state error")
)

// ErrWouldBlock is the poll outcome of an operation that could not make
// progress yet. It is not a failure: the caller retries the same operation.
var ErrWouldBlock = errors.New("operation would block")

// Classified conditions.
var (
	ErrTimeout     = New(ErrTransport, "transport unresponsive within poll budget")
	ErrPeerClosed  = New(ErrTransport, "connection closed by peer")
	ErrShortWrite  = New(ErrTransport, "transport accepted more bytes than offered")
	ErrHandshake   = New(ErrProtocol, "websocket handshake rejected")
	ErrFragmented  = New(ErrProtocol, "fragmented websocket frames are not supported")
	ErrBadFrame    = New(ErrProtocol, "malformed websocket frame")
	ErrCloseFrame  = New(ErrProtocol, "websocket closed by peer")
	ErrUnsolicited = New(ErrProtocol, "unexpected websocket message")

	ErrResponseMismatch = New(ErrRPC, "response identifier does not match request")

	ErrCapacity          = New(ErrEncoding, "fixed buffer capacity exceeded")
	ErrMalformedJSON     = New(ErrEncoding, "malformed json")
	ErrInvalidHex        = New(ErrEncoding, "invalid hex")
	ErrInvalidAddress    = New(ErrEncoding, "invalid address")
	ErrAmountOverflow    = New(ErrEncoding, "amount exceeds u128")
	ErrExtrinsicTooLarge = New(ErrEncoding, "extrinsic exceeds node size limit")
	ErrNonCanonical      = New(ErrEncoding, "non-canonical compact encoding")
	ErrTruncated         = New(ErrEncoding, "input truncated")
	ErrBadExtrinsic      = New(ErrEncoding, "malformed extrinsic")

	ErrNotOpen          = New(ErrState, "connection is not open")
	ErrCallPending      = New(ErrState, "an rpc call is already outstanding")
	ErrNoCallPending    = New(ErrState, "no rpc call outstanding")
	ErrIDsExhausted     = New(ErrState, "request identifiers exhausted, reconnect to reset")
	ErrMetadataNotReady = New(ErrState, "chain metadata not ready")
)

type classified struct {
	class error
	msg   string
	cause error
}

// New returns an error of the given class.
func New(class error, msg string) error {
	return &classified{class: class, msg: msg}
}

func (e *classified) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *classified) Is(target error) bool {
	return target == e.class
}

func (e *classified) Unwrap() error {
	return e.cause
}

// Signing wraps a failure returned by a Signer. The cause is kept for
// display only.
func Signing(cause error) error {
	return &classified{class: ErrSigning, msg: "signer failed", cause: cause}
}

// Transport classifies a failure returned by a host transport.
func Transport(cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrTransport) || errors.Is(cause, ErrWouldBlock) {
		return cause
	}
	return &classified{class: ErrTransport, msg: "transport failed", cause: cause}
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrRPC
}

// Class returns a stable label for the class of err, "" for nil and
// "unknown" for errors produced outside the wallet core.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWouldBlock):
		return "would_block"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrRPC):
		return "rpc"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrSigning):
		return "signing"
	case errors.Is(err, ErrState):
		return "state"
	default:
		return "unknown"
	}
}
