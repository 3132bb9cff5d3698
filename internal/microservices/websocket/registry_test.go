package websocket

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeConn records every payload it receives and can be told to fail writes
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	failSend bool
	closed   bool
}

func (f *fakeConn) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("write failed")
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeConn) breakWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSend = true
}

func TestSendToUserWithoutConnections(t *testing.T) {
	registry := NewRegistry(nil)

	delivered := registry.SendToUser("user-1", []byte("hello"))

	assert.False(t, delivered)
	assert.False(t, registry.IsOnline("user-1"))
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	registry := NewRegistry(nil)
	first := &fakeConn{}
	second := &fakeConn{}
	registry.Connect(first, "user-1")
	registry.Connect(second, "user-1")

	// connection ack arrives on connect
	assert.Equal(t, 1, first.received())
	assert.Equal(t, 1, second.received())

	delivered := registry.SendToUser("user-1", []byte("payload"))

	assert.True(t, delivered)
	assert.Equal(t, 2, first.received())
	assert.Equal(t, 2, second.received())
}

func TestDisconnectLeavesOtherConnectionsReachable(t *testing.T) {
	registry := NewRegistry(nil)
	first := &fakeConn{}
	second := &fakeConn{}
	registry.Connect(first, "user-1")
	registry.Connect(second, "user-1")

	registry.Disconnect(first)

	assert.True(t, registry.IsOnline("user-1"))
	assert.Equal(t, 1, registry.ConnectionCount("user-1"))

	delivered := registry.SendToUser("user-1", []byte("payload"))
	assert.True(t, delivered)
	assert.Equal(t, 1, first.received()) // only the connect ack
	assert.Equal(t, 2, second.received())
}

func TestDisconnectLastConnectionRemovesUser(t *testing.T) {
	registry := NewRegistry(nil)
	conn := &fakeConn{}
	registry.Connect(conn, "user-1")

	registry.Disconnect(conn)

	assert.False(t, registry.IsOnline("user-1"))
	assert.Empty(t, registry.ActiveUsers())
}

func TestDisconnectUnknownConnectionIsNoop(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Connect(&fakeConn{}, "user-1")

	registry.Disconnect(&fakeConn{})

	assert.True(t, registry.IsOnline("user-1"))
}

func TestFailedSendDropsConnection(t *testing.T) {
	registry := NewRegistry(nil)
	healthy := &fakeConn{}
	broken := &fakeConn{}
	registry.Connect(healthy, "user-1")
	registry.Connect(broken, "user-1")
	broken.breakWrites()

	delivered := registry.SendToUser("user-1", []byte("payload"))

	// one connection still took the message
	assert.True(t, delivered)
	assert.Equal(t, 1, registry.ConnectionCount("user-1"))

	registry.SendToUser("user-1", []byte("again"))
	assert.Equal(t, 3, healthy.received())
}

func TestSendToUsersSkipsOfflineUsers(t *testing.T) {
	registry := NewRegistry(nil)
	online := &fakeConn{}
	registry.Connect(online, "user-1")

	registry.SendToUsers([]string{"user-1", "user-2"}, []byte("payload"))

	assert.Equal(t, 2, online.received())
}

func TestBroadcastReachesEveryUser(t *testing.T) {
	registry := NewRegistry(nil)
	a := &fakeConn{}
	b := &fakeConn{}
	registry.Connect(a, "user-1")
	registry.Connect(b, "user-2")

	registry.Broadcast([]byte("announcement"))

	assert.Equal(t, 2, a.received())
	assert.Equal(t, 2, b.received())
}

func TestConnectIsIdempotent(t *testing.T) {
	registry := NewRegistry(nil)
	conn := &fakeConn{}
	registry.Connect(conn, "user-1")
	registry.Connect(conn, "user-1")

	assert.Equal(t, 1, registry.ConnectionCount("user-1"))
}

func TestCloseAllEmptiesRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	a := &fakeConn{}
	b := &fakeConn{}
	registry.Connect(a, "user-1")
	registry.Connect(b, "user-2")

	registry.CloseAll()

	assert.Empty(t, registry.ActiveUsers())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestConcurrentConnectAndSend(t *testing.T) {
	registry := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := &fakeConn{}
			registry.Connect(conn, "user-1")
			registry.SendToUser("user-1", []byte("payload"))
			registry.Disconnect(conn)
		}()
	}
	wg.Wait()

	assert.False(t, registry.IsOnline("user-1"))
}
