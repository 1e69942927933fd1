package websocket

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // RFC 6455 mandates SHA-1 for Sec-WebSocket-Accept
	"encoding/base64"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
)

const (
	acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	keyBytes   = 24
	acceptSize = 28
	nonceBytes = 16
)

var (
	headerEnd  = []byte("\r\n\r\n")
	lineEnd    = []byte("\r\n")
	statusLine = []byte("HTTP/1.1 101")
)

// ComputeAccept derives the Sec-WebSocket-Accept value for a client key.
func ComputeAccept(key []byte) [acceptSize]byte {
	var (
		material [keyBytes + len(acceptGUID)]byte
		out      [acceptSize]byte
	)

	n := copy(material[:], key)
	n += copy(material[n:], acceptGUID)
	sum := sha1.Sum(material[:n]) //nolint:gosec
	base64.StdEncoding.Encode(out[:], sum[:])

	return out
}

func writeUpgradeRequest(buf *fixedbuf.Buffer, host, path string, key []byte) error {
	if path == "" {
		path = "/"
	}

	parts := [...]string{
		"GET ", path, " HTTP/1.1\r\n",
		"Host: ", host, "\r\n",
		"Upgrade: websocket\r\n",
		"Connection: Upgrade\r\n",
		"Sec-WebSocket-Key: ", string(key), "\r\n",
		"Sec-WebSocket-Version: 13\r\n",
		"Origin: http://", host, "\r\n",
		"\r\n",
	}

	for _, part := range parts {
		if _, err := buf.WriteString(part); err != nil {
			return errors.Wrap(err, "upgrade request does not fit send buffer")
		}
	}

	return nil
}

// validateUpgradeResponse checks the status line and the upgrade headers of
// a server response head (without the terminating blank line).
func validateUpgradeResponse(head []byte, key []byte) error {
	status, rest, _ := bytes.Cut(head, lineEnd)
	if !bytes.HasPrefix(status, statusLine) ||
		(len(status) > len(statusLine) && status[len(statusLine)] != ' ') {
		return errors.Wrapf(errs.ErrHandshake, "unexpected status line %q", status)
	}

	var upgrade, connection, accept bool
	expected := ComputeAccept(key)

	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, lineEnd)

		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		name = bytes.TrimSpace(name)
		value = bytes.TrimSpace(value)

		switch {
		case bytes.EqualFold(name, []byte("Upgrade")):
			upgrade = bytes.EqualFold(value, []byte("websocket"))
		case bytes.EqualFold(name, []byte("Connection")):
			connection = hasToken(value, []byte("upgrade"))
		case bytes.EqualFold(name, []byte("Sec-WebSocket-Accept")):
			accept = bytes.Equal(value, expected[:])
		}
	}

	switch {
	case !upgrade:
		return errors.Wrap(errs.ErrHandshake, "missing Upgrade: websocket")
	case !connection:
		return errors.Wrap(errs.ErrHandshake, "missing Connection: Upgrade")
	case !accept:
		return errors.Wrap(errs.ErrHandshake, "Sec-WebSocket-Accept mismatch")
	}

	return nil
}

func hasToken(list, token []byte) bool {
	for len(list) > 0 {
		var item []byte
		item, list, _ = bytes.Cut(list, []byte(","))
		if bytes.EqualFold(bytes.TrimSpace(item), token) {
			return true
		}
	}
	return false
}
