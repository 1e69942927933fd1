package test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// WithGorillaNode serves node over a real WebSocket server and passes its
// "host:port" address to closure. The server is shut down afterwards.
func WithGorillaNode(t *testing.T, node *Node, closure func(address string)) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, node.Dispatch(msg)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	closure(strings.TrimPrefix(server.URL, "http://"))
}
