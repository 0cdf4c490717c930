package ws

import "sync"

// Registry is the process-wide map of currently reachable users. It is
// the single source of truth for "is this user connected right now".
// A user resolves to at most one connection; registering a second
// connection for the same user overwrites the first (last connection
// wins). The superseded connection is not closed here, it stays open
// until its own transport notices.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]*Conn),
	}
}

// Register binds the connection to the user id and returns the
// connection it displaced, if any.
func (r *Registry) Register(userID int64, c *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	r.conns[userID] = c
	return prev
}

// CompareAndRemove removes the entry for userID only if it still points
// at this exact connection. A close handler for a superseded connection
// must never evict the newer one registered after it.
func (r *Registry) CompareAndRemove(userID int64, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != c {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the connection currently bound to the user id.
func (r *Registry) Lookup(userID int64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[userID]
	return c, ok
}

// Count reports the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
