package runtime

import (
	"duochat/contract"
	"duochat/domain"
	"duochat/errors"
	"sort"
	"sync"
	"time"
)

type Set map[domain.ConnectionID]struct{}

type session struct {
	identity domain.Identity
	sink     contract.EventSink
}

type presence struct {
	connectedAt time.Time
	conns       Set
}

var _ contract.IRegistry = (*Registry)(nil)

// Registry is the presence registry.
// It maps an identity to its live connection handles and keeps a directory
// of every identity that ever registered, so that offline peers can still be described.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]session     // map connection -> identity and sink
	online   map[domain.Identity]*presence       // map identity -> live connections
	known    map[domain.Identity]domain.UserInfo // map identity -> last known info
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]session),
		online:   make(map[domain.Identity]*presence),
		known:    make(map[domain.Identity]domain.UserInfo),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register attaches a connection handle to an identity.
// It is idempotent for the same (identity, connection) pair; a handle previously
// registered under another identity is moved, a handle belongs to one identity only.
// The display name follows "last register wins", a blank one keeps the previous value.
func (r *Registry) Register(identity domain.Identity, displayName string,
	conn domain.ConnectionID, sink contract.EventSink) (domain.UserInfo, error) {
	if !identity.Valid() {
		return domain.UserInfo{}, errors.ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.sessions[conn]; ok && previous.identity != identity {
		r.detach(conn, previous.identity)
	}
	r.sessions[conn] = session{identity: identity, sink: sink}

	p, ok := r.online[identity]
	if !ok {
		p = &presence{conns: make(Set)}
		r.online[identity] = p
	}
	p.conns[conn] = struct{}{}
	p.connectedAt = r.now()

	info := r.known[identity]
	info.Identity = identity
	if displayName != "" {
		info.DisplayName = displayName
	} else if info.DisplayName == "" {
		info.DisplayName = string(identity)
	}
	info.ConnectedAt = p.connectedAt
	r.known[identity] = info

	return r.infoLocked(identity), nil
}

// Remember records an identity in the directory without any connection.
func (r *Registry) Remember(identity domain.Identity, displayName string) {
	if !identity.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[identity]; ok {
		return
	}
	if displayName == "" {
		displayName = string(identity)
	}
	r.known[identity] = domain.UserInfo{Identity: identity, DisplayName: displayName}
}

// Lookup returns every live connection of an identity, empty when offline.
func (r *Registry) Lookup(identity domain.Identity) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.online[identity]
	if !ok {
		return nil
	}
	subscribers := make([]contract.Subscriber, 0, len(p.conns))
	for conn := range p.conns {
		if s, exists := r.sessions[conn]; exists {
			subscribers = append(subscribers, contract.Subscriber{Conn: conn, Sink: s.sink})
		}
	}
	sortSubscribers(subscribers)
	return subscribers
}

// All returns every registered connection, whatever its identity.
func (r *Registry) All() []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscribers := make([]contract.Subscriber, 0, len(r.sessions))
	for conn, s := range r.sessions {
		subscribers = append(subscribers, contract.Subscriber{Conn: conn, Sink: s.sink})
	}
	sortSubscribers(subscribers)
	return subscribers
}

// RemoveConnection detaches a handle from whichever identity holds it.
// It reports the identity and whether it went offline. Safe to call repeatedly.
func (r *Registry) RemoveConnection(conn domain.ConnectionID) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conn]
	if !ok {
		return "", false
	}
	return s.identity, r.detach(conn, s.identity)
}

// detach must be called with the write lock held.
func (r *Registry) detach(conn domain.ConnectionID, identity domain.Identity) bool {
	delete(r.sessions, conn)
	p, ok := r.online[identity]
	if !ok {
		return false
	}
	delete(p.conns, conn)

	// No handle left: the presence entry goes away, the directory entry stays
	if len(p.conns) == 0 {
		delete(r.online, identity)
		return true
	}
	return false
}

// ListOnline returns online identities sorted by identity.
func (r *Registry) ListOnline() []domain.UserInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]domain.UserInfo, 0, len(r.online))
	for identity := range r.online {
		infos = append(infos, r.infoLocked(identity))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Identity < infos[j].Identity })
	return infos
}

// Get describes an identity, online or not. It reports false for an identity never seen.
func (r *Registry) Get(identity domain.Identity) (domain.UserInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.known[identity]; !ok {
		return domain.UserInfo{}, false
	}
	return r.infoLocked(identity), true
}

// IsOnline reports whether identity holds at least one live connection.
func (r *Registry) IsOnline(identity domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.online[identity]
	return ok
}

func (r *Registry) infoLocked(identity domain.Identity) domain.UserInfo {
	info := r.known[identity]
	info.Identity = identity
	if p, ok := r.online[identity]; ok {
		info.Online = true
		info.Connections = len(p.conns)
		info.ConnectedAt = p.connectedAt
	}
	return info
}

func sortSubscribers(subscribers []contract.Subscriber) {
	sort.Slice(subscribers, func(i, j int) bool { return subscribers[i].Conn < subscribers[j].Conn })
}
