package websocket_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/test"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/poll"
	"github/chapool/dot-wallet/internal/wallet/transport"
	"github/chapool/dot-wallet/internal/wallet/websocket"
)

const (
	nodeAddress = "127.0.0.1:9944"
	nodeHost    = "127.0.0.1:9944"
)

func drive(t *testing.T, step func() error) error {
	t.Helper()
	return poll.Driver{Attempts: 1000}.Run(t.Context(), step)
}

func receive(t *testing.T, engine *websocket.Engine) (websocket.Frame, error) {
	t.Helper()

	var frame websocket.Frame
	err := drive(t, func() error {
		var err error
		frame, err = engine.Receive()
		return err
	})

	return frame, err
}

func connected(t *testing.T, node *test.Node) *websocket.Engine {
	t.Helper()

	engine := websocket.New(node)
	require.NoError(t, drive(t, func() error {
		return engine.Connect(nodeAddress, nodeHost, "/")
	}))
	require.Equal(t, websocket.StateOpen, engine.State())

	return engine
}

func TestComputeAcceptMatchesRFC6455(t *testing.T) {
	accept := websocket.ComputeAccept([]byte("dGhlIHNhbXBsZSBub25jZQ=="))
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", string(accept[:]))
}

func TestConnectOverStutteringTransport(t *testing.T) {
	node := test.NewNode()
	node.Stutter = true
	node.ChunkSize = 7
	node.ConnectBlocks = 2

	engine := websocket.New(node)
	assert.Equal(t, websocket.StateClosed, engine.State())

	err := engine.Connect(nodeAddress, nodeHost, "/")
	assert.ErrorIs(t, err, errs.ErrWouldBlock)
	assert.Equal(t, websocket.StateHandshaking, engine.State())

	require.NoError(t, drive(t, func() error {
		return engine.Connect(nodeAddress, nodeHost, "/")
	}))
	assert.Equal(t, websocket.StateOpen, engine.State())

	head := node.UpgradeRequest()
	assert.True(t, strings.HasPrefix(head, "GET / HTTP/1.1\r\n"))
	assert.Contains(t, head, "Host: "+nodeHost+"\r\n")
	assert.Contains(t, head, "Upgrade: websocket\r\n")
	assert.Contains(t, head, "Connection: Upgrade\r\n")
	assert.Contains(t, head, "Sec-WebSocket-Version: 13\r\n")
	assert.Contains(t, head, "Origin: http://"+nodeHost+"\r\n")
	assert.Equal(t, 1, node.Connects())
}

func TestTamperedAcceptFaults(t *testing.T) {
	node := test.NewNode()
	node.AcceptOverride = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	engine := websocket.New(node)
	err := drive(t, func() error {
		return engine.Connect(nodeAddress, nodeHost, "/")
	})

	assert.ErrorIs(t, err, errs.ErrHandshake)
	assert.ErrorIs(t, err, errs.ErrProtocol)
	assert.Equal(t, websocket.StateFaulted, engine.State())
	assert.False(t, node.Connected())
}

func TestConnectFailureFaults(t *testing.T) {
	node := test.NewNode()
	node.ConnectErr = test.ErrInjected

	engine := websocket.New(node)
	err := engine.Connect(nodeAddress, nodeHost, "/")

	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.Equal(t, websocket.StateFaulted, engine.State())

	// The caller retries by connecting again.
	node.ConnectErr = nil
	require.NoError(t, drive(t, func() error {
		return engine.Connect(nodeAddress, nodeHost, "/")
	}))
	assert.Equal(t, websocket.StateOpen, engine.State())
}

func TestSendTextIsMaskedAndAnswered(t *testing.T) {
	node := test.NewNode()
	node.Stutter = true
	node.ChunkSize = 5
	engine := connected(t, node)

	request := []byte(`{"id":1,"jsonrpc":"2.0","method":"system_chain","params":[]}`)
	require.NoError(t, drive(t, func() error { return engine.SendText(request) }))

	frame, err := receive(t, engine)
	require.NoError(t, err)
	assert.Equal(t, websocket.OpText, frame.Opcode)
	assert.Equal(t, `{"jsonrpc":"2.0","result":"Development","id":1}`, string(frame.Payload))

	frames := node.Frames()
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Masked)
	assert.Equal(t, byte(websocket.OpText), frames[0].Opcode)
	assert.Equal(t, request, frames[0].Payload)
}

func TestLargeFramesUseExtendedLength(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	payload := strings.Repeat("a", 1500)
	node.PushText(payload)

	frame, err := receive(t, engine)
	require.NoError(t, err)
	assert.Len(t, frame.Payload, 1500)

	body := []byte(`{"id":2,"jsonrpc":"2.0","method":"author_submitExtrinsic","params":["0x` + strings.Repeat("00", 400) + `"]}`)
	require.NoError(t, drive(t, func() error { return engine.SendText(body) }))

	frames := node.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, body, frames[0].Payload)
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.Push(test.ServerFrame(0x9, true, []byte("keepalive")))

	frame, err := receive(t, engine)
	require.NoError(t, err)
	assert.Equal(t, websocket.OpPing, frame.Opcode)

	frames := node.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, byte(websocket.OpPong), frames[0].Opcode)
	assert.Equal(t, "keepalive", string(frames[0].Payload))
	assert.Equal(t, websocket.StateOpen, engine.State())
}

func TestFragmentedFrameFaults(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.Push(test.ServerFrame(0x1, false, []byte(`{"jsonrpc"`)))

	_, err := receive(t, engine)
	assert.ErrorIs(t, err, errs.ErrFragmented)
	assert.Equal(t, websocket.StateFaulted, engine.State())

	err = engine.SendText([]byte("{}"))
	assert.ErrorIs(t, err, errs.ErrNotOpen)
}

func TestContinuationFrameFaults(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.Push(test.ServerFrame(0x0, true, []byte(`}`)))

	_, err := receive(t, engine)
	assert.ErrorIs(t, err, errs.ErrFragmented)
	assert.Equal(t, websocket.StateFaulted, engine.State())
}

func TestMaskedServerFrameFaults(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.Push([]byte{0x81, 0x81, 1, 2, 3, 4, 'x' ^ 1})

	_, err := receive(t, engine)
	assert.ErrorIs(t, err, errs.ErrBadFrame)
	assert.Equal(t, websocket.StateFaulted, engine.State())
}

func TestOversizedInboundFrameFaults(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.PushText(strings.Repeat("x", websocket.ReceiveCapacity))

	_, err := receive(t, engine)
	assert.ErrorIs(t, err, errs.ErrCapacity)
	assert.ErrorIs(t, err, errs.ErrEncoding)
	assert.Equal(t, websocket.StateFaulted, engine.State())
}

func TestOversizedOutboundFrameKeepsConnection(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	err := engine.SendText(make([]byte, websocket.SendCapacity))
	assert.ErrorIs(t, err, errs.ErrCapacity)
	assert.Equal(t, websocket.StateOpen, engine.State())
	assert.Empty(t, node.Frames())
}

func TestSendBeforeConnect(t *testing.T) {
	engine := websocket.New(test.NewNode())

	err := engine.SendText([]byte("{}"))
	assert.ErrorIs(t, err, errs.ErrNotOpen)
	assert.ErrorIs(t, err, errs.ErrState)

	_, err = engine.Receive()
	assert.ErrorIs(t, err, errs.ErrNotOpen)
}

func TestClientInitiatedClose(t *testing.T) {
	node := test.NewNode()
	node.Stutter = true
	engine := connected(t, node)

	require.NoError(t, drive(t, engine.Close))
	assert.Equal(t, websocket.StateClosed, engine.State())
	assert.False(t, node.Connected())

	frames := node.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, byte(websocket.OpClose), frames[0].Opcode)
	assert.Equal(t, []byte{0x03, 0xE8}, frames[0].Payload)

	assert.NoError(t, engine.Close())
}

func TestCloseWithoutReplyTimesOut(t *testing.T) {
	node := test.NewNode()
	node.IgnoreClose = true
	engine := connected(t, node)

	err := poll.Driver{Attempts: 10}.Run(t.Context(), engine.Close)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, websocket.StateClosing, engine.State())

	engine.Fault(err)
	assert.Equal(t, websocket.StateFaulted, engine.State())
	assert.False(t, node.Connected())
}

func TestServerInitiatedClose(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	node.Push(test.ServerFrame(0x8, true, []byte{0x03, 0xE9}))

	frame, err := receive(t, engine)
	require.NoError(t, err)
	assert.Equal(t, websocket.OpClose, frame.Opcode)
	assert.Equal(t, websocket.StateClosed, engine.State())

	frames := node.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, byte(websocket.OpClose), frames[0].Opcode)
	assert.Equal(t, []byte{0x03, 0xE9}, frames[0].Payload)
}

func TestReconnectAfterFault(t *testing.T) {
	node := test.NewNode()
	engine := connected(t, node)

	engine.Fault(errors.New("poll budget exhausted"))
	assert.Equal(t, websocket.StateFaulted, engine.State())

	require.NoError(t, drive(t, func() error {
		return engine.Connect(nodeAddress, nodeHost, "/")
	}))
	assert.Equal(t, websocket.StateOpen, engine.State())
	assert.Equal(t, 2, node.Connects())
}

type recorder struct {
	sent     []string
	received []string
	states   []string
	shakes   []error
}

func (r *recorder) FrameSent(op string)          { r.sent = append(r.sent, op) }
func (r *recorder) FrameReceived(op string)      { r.received = append(r.received, op) }
func (r *recorder) HandshakeCompleted(err error) { r.shakes = append(r.shakes, err) }
func (r *recorder) StateChanged(state string)    { r.states = append(r.states, state) }

func TestObserverSeesLifecycle(t *testing.T) {
	node := test.NewNode()
	rec := &recorder{}
	engine := websocket.New(node, websocket.WithObserver(rec))

	require.NoError(t, drive(t, func() error { return engine.Connect(nodeAddress, nodeHost, "/") }))
	require.NoError(t, drive(t, func() error { return engine.SendText([]byte(`{"id":1}`)) }))
	_, err := receive(t, engine)
	require.NoError(t, err)
	require.NoError(t, drive(t, engine.Close))

	assert.Equal(t, []string{"handshaking", "open", "closing", "closed"}, rec.states)
	assert.Equal(t, []error{nil}, rec.shakes)
	assert.Equal(t, []string{"text", "close"}, rec.sent)
	assert.Equal(t, []string{"text", "close"}, rec.received)
}

func TestInteropWithGorillaServer(t *testing.T) {
	node := test.NewNode()

	test.WithGorillaNode(t, node, func(address string) {
		engine := websocket.New(transport.NewTCP())

		require.NoError(t, drive(t, func() error {
			return engine.Connect(address, address, "/")
		}))

		request := []byte(`{"id":7,"jsonrpc":"2.0","method":"system_name","params":[]}`)
		require.NoError(t, drive(t, func() error { return engine.SendText(request) }))

		frame, err := receive(t, engine)
		require.NoError(t, err)
		assert.Equal(t, `{"jsonrpc":"2.0","result":"Substrate Node","id":7}`, string(frame.Payload))

		require.NoError(t, drive(t, engine.Close))
		assert.Equal(t, websocket.StateClosed, engine.State())
	})
}
