package transport

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// TCP is a host Transport over net.Conn. Short I/O deadlines turn the
// blocking socket into a polled one.
type TCP struct {
	DialTimeout time.Duration
	PollTimeout time.Duration
	Logger      zerolog.Logger

	conn net.Conn
}

var _ Transport = (*TCP)(nil)

// NewTCP returns a TCP transport with default timeouts.
func NewTCP() *TCP {
	const (
		defaultDialTimeout = 5 * time.Second
		defaultPollTimeout = 5 * time.Millisecond
	)

	return &TCP{
		DialTimeout: defaultDialTimeout,
		PollTimeout: defaultPollTimeout,
		Logger:      zerolog.Nop(),
	}
}

// Connect dials address. Reconnecting closes the previous connection.
func (t *TCP) Connect(address string) error {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return errs.Transport(errors.Wrapf(err, "invalid address %q", address))
	}

	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}

	conn, err := net.DialTimeout("tcp", address, t.DialTimeout)
	if err != nil {
		return errs.Transport(errors.Wrap(err, "failed to dial node"))
	}

	t.Logger.Debug().Str("address", address).Msg("TCP connection established")
	t.conn = conn

	return nil
}

func (t *TCP) Send(p []byte) (int, error) {
	if t.conn == nil {
		return 0, errs.Transport(net.ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.PollTimeout)); err != nil {
		return 0, errs.Transport(errors.Wrap(err, "failed to set write deadline"))
	}

	n, err := t.conn.Write(p)
	return t.outcome(n, err)
}

func (t *TCP) Receive(p []byte) (int, error) {
	if t.conn == nil {
		return 0, errs.Transport(net.ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(t.PollTimeout)); err != nil {
		return 0, errs.Transport(errors.Wrap(err, "failed to set read deadline"))
	}

	n, err := t.conn.Read(p)
	return t.outcome(n, err)
}

func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return errs.Transport(errors.Wrap(err, "failed to close connection"))
	}

	return nil
}

func (t *TCP) outcome(n int, err error) (int, error) {
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		if n > 0 {
			return n, nil
		}
		return 0, errs.ErrWouldBlock
	case errors.Is(err, io.EOF):
		if n > 0 {
			return n, nil
		}
		return 0, errs.ErrPeerClosed
	default:
		return n, errs.Transport(err)
	}
}
