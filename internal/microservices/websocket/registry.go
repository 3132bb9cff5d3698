package websocket

import (
	"log/slog"
	"sync"
)

// Conn is the minimal connection surface the registry needs. The gorilla
// Client implements it; tests substitute in-memory fakes.
type Conn interface {
	Send(message []byte) error
	Close() error
}

// Registry maps user identity to the set of live connections for that user.
// A user may hold zero or many simultaneous connections (multi-device).
// All state is process-local; a multi-process deployment needs an external
// fan-out layer to reach every connection of a user.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[Conn]struct{} // userID -> live connections
	owners      map[Conn]string              // reverse index: connection -> userID
	logger      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connections: make(map[string]map[Conn]struct{}),
		owners:      make(map[Conn]string),
		logger:      logger,
	}
}

// Connect registers the connection under the user and acknowledges it on
// that connection only. Adding the same connection twice has no effect.
func (r *Registry) Connect(conn Conn, userID string) {
	r.mu.Lock()
	if r.connections[userID] == nil {
		r.connections[userID] = make(map[Conn]struct{})
	}
	r.connections[userID][conn] = struct{}{}
	r.owners[conn] = userID
	r.mu.Unlock()

	r.logger.Info("ws_connected", "user_id", userID)

	if err := conn.Send(NewConnectionEstablishedMessage()); err != nil {
		r.logger.Warn("ws_ack_failed", "user_id", userID, "error", err.Error())
		r.Disconnect(conn)
	}
}

// Disconnect removes the connection via the reverse index. Removing an
// already-removed connection is a no-op.
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	userID, known := r.owners[conn]
	if known {
		delete(r.owners, conn)
		if set := r.connections[userID]; set != nil {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.connections, userID)
			}
		}
	}
	r.mu.Unlock()

	if known {
		r.logger.Info("ws_disconnected", "user_id", userID)
	}
}

// SendToUser writes the message to every live connection of the user.
// Per-connection write failures are treated as disconnect signals and do not
// abort delivery to the user's other connections. Returns true if at least
// one write succeeded.
func (r *Registry) SendToUser(userID string, message []byte) bool {
	// snapshot-then-iterate: never hold the lock across a network write
	r.mu.RLock()
	set := r.connections[userID]
	conns := make([]Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		r.logger.Warn("ws_no_active_connections", "user_id", userID)
		return false
	}

	delivered := false
	for _, conn := range conns {
		if err := conn.Send(message); err != nil {
			r.logger.Error("ws_send_failed", "user_id", userID, "error", err.Error())
			r.Disconnect(conn)
			continue
		}
		delivered = true
	}
	return delivered
}

// SendToUsers fans the message out to the given users concurrently; each
// recipient's failure is isolated from the others.
func (r *Registry) SendToUsers(userIDs []string, message []byte) {
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.SendToUser(id, message)
		}(userID)
	}
	wg.Wait()
}

// Broadcast sends to every connection of every user with the same
// per-connection isolation as SendToUser.
func (r *Registry) Broadcast(message []byte) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.owners))
	for conn := range r.owners {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(message); err != nil {
			r.logger.Error("ws_broadcast_send_failed", "error", err.Error())
			r.Disconnect(conn)
		}
	}
}

// ActiveUsers returns the ids of users with at least one live connection
func (r *Registry) ActiveUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.connections))
	for userID := range r.connections {
		users = append(users, userID)
	}
	return users
}

// ConnectionCount returns the number of live connections for the user
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[userID])
}

// IsOnline reports whether the user has at least one live connection
func (r *Registry) IsOnline(userID string) bool {
	return r.ConnectionCount(userID) > 0
}

// CloseAll closes every connection and resets the registry. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn := range r.owners {
		conn.Close()
	}
	r.connections = make(map[string]map[Conn]struct{})
	r.owners = make(map[Conn]string)
}
