package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

type connection struct {
	sink    contract.EventSink
	session *domain.Session
}

// Registry is the session registry.
// The authoritative map goes from user id to the connection currently
// bound to it; usernames are only a secondary index onto user ids.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*connection // every open connection
	sessions    map[string]domain.ConnectionID      // user id -> bound connection
	usernames   map[string]string                   // username -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]*connection),
		sessions:    make(map[string]domain.ConnectionID),
		usernames:   make(map[string]string),
	}
}

// Attach records an open, not yet authenticated connection and the sink
// its events must go to.
func (r *Registry) Attach(conn domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connections[conn]; ok {
		c.sink = sink
		return
	}
	r.connections[conn] = &connection{sink: sink}
}

// Detach forgets a connection. Session bindings must be released with
// Unbind beforehand.
func (r *Registry) Detach(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, conn)
}

// Bind makes conn the live connection of userID (last writer wins) and
// points username at userID. When another connection was bound to the same
// user it is returned; that connection keeps its own session fields but no
// longer receives deliveries addressed to the user.
func (r *Registry) Bind(conn domain.ConnectionID, userID, username string) *domain.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[conn]
	if !ok {
		c = &connection{}
		r.connections[conn] = c
	}

	var superseded *domain.ConnectionID
	if previous, ok := r.sessions[userID]; ok && previous != conn {
		superseded = &previous
		if pc, ok := r.connections[previous]; ok && pc.session != nil &&
			pc.session.Username != username && r.usernames[pc.session.Username] == userID {
			delete(r.usernames, pc.session.Username)
		}
	}

	if c.session != nil && c.session.UserID == userID && c.session.Username != username &&
		r.usernames[c.session.Username] == userID {
		delete(r.usernames, c.session.Username)
	}

	r.sessions[userID] = conn
	r.usernames[username] = userID
	c.session = &domain.Session{ConnectionID: conn, UserID: userID, Username: username}
	return superseded
}

// Unbind clears the session carried by conn. The user binding and the
// username entry are only removed while they still point at conn, so a
// stale disconnect cannot evict a newer session. It reports whether the
// authoritative binding was removed.
func (r *Registry) Unbind(conn domain.ConnectionID, userID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connections[conn]; ok && c.session != nil && c.session.UserID == userID {
		c.session = nil
	}

	current, ok := r.sessions[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.sessions, userID)
	if r.usernames[username] == userID {
		delete(r.usernames, username)
	}
	return true
}

// Resolve finds the live connection of a username.
func (r *Registry) Resolve(username string) (domain.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.usernames[username]
	if !ok {
		return "", false
	}
	conn, ok := r.sessions[userID]
	return conn, ok
}

// ResolveUser finds the live connection of a user id.
func (r *Registry) ResolveUser(userID string) (domain.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

// Rekey moves the username index entry to newUsername, keeping the same
// connection. The bound session follows the new name.
func (r *Registry) Rekey(oldUsername, newUsername string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.usernames[oldUsername]
	if !ok {
		return false
	}
	delete(r.usernames, oldUsername)
	r.usernames[newUsername] = userID

	if conn, ok := r.sessions[userID]; ok {
		if c, ok := r.connections[conn]; ok && c.session != nil {
			c.session.Username = newUsername
		}
	}
	return true
}

// SessionOf returns the identity attached to conn, if authenticated.
func (r *Registry) SessionOf(conn domain.ConnectionID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[conn]
	if !ok || c.session == nil {
		return domain.Session{}, false
	}
	return *c.session, true
}

func (r *Registry) Sink(conn domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[conn]
	if !ok || c.sink == nil {
		return nil, false
	}
	return c.sink, true
}

// SinksExcept returns the sinks of every open connection but conn,
// authenticated or not.
func (r *Registry) SinksExcept(conn domain.ConnectionID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.connections))
	for id, c := range r.connections {
		if id == conn || c.sink == nil {
			continue
		}
		sinks = append(sinks, c.sink)
	}
	return sinks
}

func (r *Registry) AllSinks() []contract.EventSink {
	return r.SinksExcept("")
}
