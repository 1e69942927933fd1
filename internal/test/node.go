package test

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // RFC 6455 accept value
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"golang.org/x/crypto/blake2b"
)

// Development chain served by NewNode.
const (
	DevGenesisHash    = "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"
	DevFinalizedHead  = "0x1f5a3c2e9a4b7d6e8f9001122334455667788990aabbccddeeff001122334455"
	DevSpecVersion    = 268
	DevTxVersion      = 2
	DevChainName      = "Development"
	DevNodeName       = "Substrate Node"
	DevNodeVersion    = "3.0.0-dev-4e1e4a1"
	DevMetadata       = "0x6d6574610e"
	DevAccountNonce   = 5
	DevBlockNumberHex = "0x1a2b"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Request is a JSON-RPC request received by a Node.
type Request struct {
	ID     int64
	Method string
	Params string
	Raw    string
}

// RPCError is a JSON-RPC error reply.
type RPCError struct {
	Code    int64
	Message string
}

// Reply is what a Handler answers. Raw, when set, is sent verbatim; ID, when
// set, replaces the request identifier.
type Reply struct {
	Result string
	Error  *RPCError
	ID     *int64
	Raw    string
}

// Handler answers one JSON-RPC method.
type Handler func(req Request) Reply

// ClientFrame is a frame received from the client, unmasked.
type ClientFrame struct {
	Opcode  byte
	Masked  bool
	Payload []byte
}

// Node is an in-memory Substrate node speaking WebSocket. It implements
// transport.Transport so the wallet core can run against it without sockets.
type Node struct {
	// ChunkSize caps the bytes moved per Send and Receive (0 = unlimited).
	ChunkSize int
	// Stutter makes every other Send and Receive report would-block.
	Stutter bool
	// ConnectBlocks is the number of Connect calls that report would-block.
	ConnectBlocks int
	// ConnectErr fails Connect.
	ConnectErr error
	// AcceptOverride replaces the computed Sec-WebSocket-Accept value.
	AcceptOverride string
	// Silent stops the node from answering requests.
	Silent bool
	// IgnoreClose stops the node from echoing close frames.
	IgnoreClose bool

	mu         sync.Mutex
	handlers   map[string]Handler
	requests   []Request
	frames     []ClientFrame
	head       string
	connected  bool
	upgraded   bool
	connects   int
	closes     int
	inbound    []byte
	outbound   []byte
	sendTick   int
	recvTick   int
	submitted  [][]byte
	addressLog []string
}

// NewNode returns a node serving the development chain.
func NewNode() *Node {
	n := &Node{handlers: make(map[string]Handler)}

	n.Result("chain_getBlockHash", strconv.Quote(DevGenesisHash))
	n.Result("chain_getFinalizedHead", strconv.Quote(DevFinalizedHead))
	n.Result("chain_getHeader", fmt.Sprintf(
		`{"parentHash":%q,"number":%q,"stateRoot":"0x%064x","extrinsicsRoot":"0x%064x","digest":{"logs":[]}}`,
		DevGenesisHash, DevBlockNumberHex, 1, 2))
	n.Result("system_chain", strconv.Quote(DevChainName))
	n.Result("system_name", strconv.Quote(DevNodeName))
	n.Result("system_version", strconv.Quote(DevNodeVersion))
	n.Result("state_getRuntimeVersion", fmt.Sprintf(
		`{"specName":"node","implName":"substrate-node","authoringVersion":10,"specVersion":%d,"implVersion":0,`+
			`"apis":[["0xdf6acb689907609b",4]],"transactionVersion":%d,"stateVersion":1}`,
		DevSpecVersion, DevTxVersion))
	n.Result("state_getMetadata", strconv.Quote(DevMetadata))
	n.Result("system_accountNextIndex", strconv.Itoa(DevAccountNonce))
	n.Handle("author_submitExtrinsic", n.submitExtrinsic)

	return n
}

// Handle installs h for method.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handlers[method] = h
}

// Result makes method answer with the raw JSON result.
func (n *Node) Result(method string, result string) {
	n.Handle(method, func(Request) Reply { return Reply{Result: result} })
}

// Fail makes method answer with a JSON-RPC error.
func (n *Node) Fail(method string, code int64, message string) {
	n.Handle(method, func(Request) Reply { return Reply{Error: &RPCError{Code: code, Message: message}} })
}

// Requests returns the JSON-RPC requests received so far.
func (n *Node) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]Request(nil), n.requests...)
}

// Frames returns every client frame received so far.
func (n *Node) Frames() []ClientFrame {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]ClientFrame(nil), n.frames...)
}

// Submitted returns the extrinsics received through author_submitExtrinsic.
func (n *Node) Submitted() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([][]byte(nil), n.submitted...)
}

// UpgradeRequest returns the raw HTTP upgrade request head.
func (n *Node) UpgradeRequest() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.head
}

// Connects reports how many times Connect succeeded.
func (n *Node) Connects() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.connects
}

// Closes reports how many times Close was called on an open stream.
func (n *Node) Closes() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.closes
}

// Connected reports whether the stream is open.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.connected
}

// Addresses returns the addresses passed to Connect.
func (n *Node) Addresses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.addressLog...)
}

// Push queues a server frame for the client.
func (n *Node) Push(frame []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.outbound = append(n.outbound, frame...)
}

// PushText queues an unfragmented server text frame.
func (n *Node) PushText(payload string) {
	n.Push(ServerFrame(0x1, true, []byte(payload)))
}

func (n *Node) Connect(address string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.addressLog = append(n.addressLog, address)

	if n.ConnectBlocks > 0 {
		n.ConnectBlocks--
		return errs.ErrWouldBlock
	}
	if n.ConnectErr != nil {
		return n.ConnectErr
	}

	n.connected = true
	n.upgraded = false
	n.connects++
	n.inbound = n.inbound[:0]
	n.outbound = n.outbound[:0]

	return nil
}

func (n *Node) Send(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.connected {
		return 0, errs.ErrPeerClosed
	}

	n.sendTick++
	if n.Stutter && n.sendTick%2 == 1 {
		return 0, errs.ErrWouldBlock
	}

	size := n.chunk(len(p))
	n.inbound = append(n.inbound, p[:size]...)
	n.process()

	return size, nil
}

func (n *Node) Receive(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.connected {
		return 0, errs.ErrPeerClosed
	}

	n.recvTick++
	if len(n.outbound) == 0 || (n.Stutter && n.recvTick%2 == 1) {
		return 0, errs.ErrWouldBlock
	}

	size := copy(p[:n.chunk(len(p))], n.outbound)
	n.outbound = n.outbound[size:]

	return size, nil
}

func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.connected {
		n.closes++
	}
	n.connected = false

	return nil
}

func (n *Node) chunk(size int) int {
	if n.ChunkSize > 0 && size > n.ChunkSize {
		return n.ChunkSize
	}
	return size
}

// process consumes complete client messages from inbound.
func (n *Node) process() {
	if !n.upgraded {
		end := bytes.Index(n.inbound, []byte("\r\n\r\n"))
		if end < 0 {
			return
		}
		n.head = string(n.inbound[:end+4])
		n.inbound = n.inbound[end+4:]
		n.upgraded = true
		n.outbound = append(n.outbound, n.upgradeResponse()...)
	}

	for {
		frame, size, ok := parseClientFrame(n.inbound)
		if !ok {
			return
		}
		n.inbound = n.inbound[size:]
		n.frames = append(n.frames, frame)

		switch frame.Opcode {
		case 0x1:
			if n.Silent {
				continue
			}
			n.outbound = append(n.outbound, ServerFrame(0x1, true, n.dispatchLocked(frame.Payload))...)
		case 0x8:
			if !n.IgnoreClose {
				n.outbound = append(n.outbound, ServerFrame(0x8, true, frame.Payload)...)
			}
		case 0x9:
			n.outbound = append(n.outbound, ServerFrame(0xA, true, frame.Payload)...)
		}
	}
}

func (n *Node) upgradeResponse() []byte {
	accept := n.AcceptOverride
	if accept == "" {
		accept = AcceptFor(headerValue(n.head, "Sec-WebSocket-Key"))
	}

	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n")
}

// Dispatch answers one JSON-RPC request.
func (n *Node) Dispatch(raw []byte) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.dispatchLocked(raw)
}

func (n *Node) dispatchLocked(raw []byte) []byte {
	id, _ := jsonparser.GetInt(raw, "id")
	method, _ := jsonparser.GetString(raw, "method")
	params, _, _, _ := jsonparser.Get(raw, "params")

	req := Request{ID: id, Method: method, Params: string(params), Raw: string(raw)}
	n.requests = append(n.requests, req)

	handler, ok := n.handlers[method]
	if !ok {
		handler = func(Request) Reply { return Reply{Error: &RPCError{Code: -32601, Message: "Method not found"}} }
	}

	reply := handler(req)
	if reply.Raw != "" {
		return []byte(reply.Raw)
	}
	if reply.ID != nil {
		id = *reply.ID
	}
	if reply.Error != nil {
		return fmt.Appendf(nil, `{"jsonrpc":"2.0","error":{"code":%d,"message":%q},"id":%d}`,
			reply.Error.Code, reply.Error.Message, id)
	}

	return fmt.Appendf(nil, `{"jsonrpc":"2.0","result":%s,"id":%d}`, reply.Result, id)
}

// submitExtrinsic answers with the blake2b-256 hash of the submitted bytes,
// like a real node does. Called with mu held.
func (n *Node) submitExtrinsic(req Request) Reply {
	encoded, err := jsonparser.GetString([]byte(req.Params), "[0]")
	if err != nil || !strings.HasPrefix(encoded, "0x") {
		return Reply{Error: &RPCError{Code: -32602, Message: "Invalid params"}}
	}

	raw, err := hex.DecodeString(encoded[2:])
	if err != nil {
		return Reply{Error: &RPCError{Code: 1002, Message: "Verification Error: Execution failed: Could not decode"}}
	}

	n.submitted = append(n.submitted, raw)
	sum := blake2b.Sum256(raw)

	return Reply{Result: strconv.Quote("0x" + hex.EncodeToString(sum[:]))}
}

// AcceptFor computes Sec-WebSocket-Accept for a client key.
func AcceptFor(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ServerFrame encodes an unmasked server frame.
func ServerFrame(opcode byte, fin bool, payload []byte) []byte {
	b0 := opcode
	if fin {
		b0 |= 0x80
	}

	frame := []byte{b0}
	switch size := len(payload); {
	case size <= 125:
		frame = append(frame, byte(size))
	case size <= 0xFFFF:
		frame = append(frame, 126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(size))
	default:
		frame = append(frame, 127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(size))
	}

	return append(frame, payload...)
}

func parseClientFrame(data []byte) (ClientFrame, int, bool) {
	if len(data) < 2 {
		return ClientFrame{}, 0, false
	}

	frame := ClientFrame{Opcode: data[0] & 0x0F, Masked: data[1]&0x80 != 0}
	header := 2
	length := uint64(data[1] & 0x7F)

	switch length {
	case 126:
		if len(data) < 4 {
			return ClientFrame{}, 0, false
		}
		length = uint64(binary.BigEndian.Uint16(data[2:4]))
		header = 4
	case 127:
		if len(data) < 10 {
			return ClientFrame{}, 0, false
		}
		length = binary.BigEndian.Uint64(data[2:10])
		header = 10
	}

	var mask []byte
	if frame.Masked {
		if len(data) < header+4 {
			return ClientFrame{}, 0, false
		}
		mask = data[header : header+4]
		header += 4
	}

	total := header + int(length)
	if len(data) < total {
		return ClientFrame{}, 0, false
	}

	frame.Payload = make([]byte, length)
	for i := range frame.Payload {
		c := data[header+i]
		if mask != nil {
			c ^= mask[i%4]
		}
		frame.Payload[i] = c
	}

	return frame, total, true
}

func headerValue(head, name string) string {
	for _, line := range strings.Split(head, "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ErrInjected is a transport failure tests can inject.
var ErrInjected = errors.New("injected transport failure")
