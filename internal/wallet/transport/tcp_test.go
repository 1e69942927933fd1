package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/transport"
)

// echoServer accepts one connection and echoes what it reads.
func echoServer(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- conn

		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return
			}
		}
	}()

	return listener.Addr().String(), accepted
}

func receive(t *testing.T, tcp *transport.TCP, p []byte) int {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := tcp.Receive(p)
		if errors.Is(err, errs.ErrWouldBlock) {
			continue
		}
		require.NoError(t, err)
		return n
	}

	t.Fatal("nothing received")
	return 0
}

func TestTCPRoundTrip(t *testing.T) {
	address, accepted := echoServer(t)

	tcp := transport.NewTCP()
	require.NoError(t, tcp.Connect(address))
	defer tcp.Close()

	// Nothing to read yet
	n, err := tcp.Receive(make([]byte, 8))
	assert.ErrorIs(t, err, errs.ErrWouldBlock)
	assert.Zero(t, n)

	n, err = tcp.Send([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 8)
	n = receive(t, tcp, buf)
	assert.Equal(t, "ping", string(buf[:n]))

	// Peer EOF is a transport error
	conn := <-accepted
	require.NoError(t, conn.Close())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err = tcp.Receive(buf)
		if !errors.Is(err, errs.ErrWouldBlock) {
			break
		}
	}
	assert.ErrorIs(t, err, errs.ErrPeerClosed)
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestTCPErrors(t *testing.T) {
	tcp := transport.NewTCP()

	_, err := tcp.Send([]byte("x"))
	assert.ErrorIs(t, err, errs.ErrTransport)

	_, err = tcp.Receive(make([]byte, 1))
	assert.ErrorIs(t, err, errs.ErrTransport)

	assert.ErrorIs(t, tcp.Connect("no-port"), errs.ErrTransport)
	assert.ErrorIs(t, tcp.Connect("127.0.0.1:1"), errs.ErrTransport)

	assert.NoError(t, tcp.Close())
	assert.NoError(t, tcp.Close())
}
