package relay

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/bounceboard/internal/snapshot"
)

// Conn is the part of a peer connection the relay needs for fan-out.
// *wire.Conn satisfies it.
type Conn interface {
	Send(s *snapshot.Snapshot) error
	Close() error
	// Crossed reports whether the remote sent its last update before it had
	// handled everything sent to it.
	Crossed() bool
}

// Member is one active connection in the registry.
type Member struct {
	id          string
	remote      string
	conn        Conn
	connectedAt time.Time
	lastSeen    atomic.Int64 // UnixNano
}

// ID returns the connection identifier.
func (m *Member) ID() string { return m.id }

// Touch records inbound activity.
func (m *Member) Touch() { m.lastSeen.Store(time.Now().UnixNano()) }

// Info returns the member's status view.
func (m *Member) Info() PeerInfo {
	return PeerInfo{
		ID:          m.id,
		Remote:      m.remote,
		ConnectedAt: m.connectedAt,
		LastSeen:    time.Unix(0, m.lastSeen.Load()),
	}
}

// Registry is the set of active connections, keyed by connection ID.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Member
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*Member)}
}

// Add registers conn under id.
func (r *Registry) Add(id, remote string, conn Conn) *Member {
	now := time.Now()
	m := &Member{id: id, remote: remote, conn: conn, connectedAt: now}
	m.lastSeen.Store(now.UnixNano())

	r.mu.Lock()
	r.members[id] = m
	r.mu.Unlock()
	return m
}

// Remove unregisters id and returns its connection. ok is false if id was
// not registered, so concurrent removers agree on who saw it last.
func (r *Registry) Remove(id string) (conn Conn, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	delete(r.members, id)
	return m.conn, true
}

// Others returns a copy of every member except the one with id except.
// Callers iterate the copy without holding the registry lock.
func (r *Registry) Others(except string) []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, 0, len(r.members))
	for id, m := range r.members {
		if id != except {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of active connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Peers returns status views of all members, oldest connection first.
func (r *Registry) Peers() []PeerInfo {
	members := r.Others("")
	out := make([]PeerInfo, 0, len(members))
	for _, m := range members {
		out = append(out, m.Info())
	}
	slices.SortFunc(out, func(a, b PeerInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return out
}
