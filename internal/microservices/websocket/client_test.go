package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestConn establishes a real WebSocket connection against an in-process
// server so Client can be exercised end to end.
func dialTestConn(t *testing.T) *websocket.Conn {
	t.Helper()

	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// hold the server side open until the peer hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestClientCloseConcurrent(t *testing.T) {
	conn := dialTestConn(t)
	client := NewClient(conn, uuid.New(), uuid.New(), NewRegistry(nil), nil, nil)

	// both pumps defer Close on teardown; simultaneous calls must not panic
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Close()
		}()
	}
	wg.Wait()

	assert.ErrorIs(t, client.Send([]byte("late")), errConnectionClosed)
}

func TestClientCloseIdempotent(t *testing.T) {
	conn := dialTestConn(t)
	client := NewClient(conn, uuid.New(), uuid.New(), NewRegistry(nil), nil, nil)

	first := client.Close()
	second := client.Close()

	assert.NoError(t, first)
	assert.Equal(t, first, second)
}

func TestClientSendAfterClose(t *testing.T) {
	conn := dialTestConn(t)
	client := NewClient(conn, uuid.New(), uuid.New(), NewRegistry(nil), nil, nil)
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.Send([]byte("payload")), errConnectionClosed)
}
