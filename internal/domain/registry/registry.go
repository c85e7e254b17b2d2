// Package registry holds the live-connection state of the matching engine:
// the connection registry (connection_id -> user record + transport) and the
// four FIFO waiting pools.
//
// Neither structure carries its own lock. The matchmaker serializes every
// compound operation (match, teardown, enqueue, remove) under a single coarse
// mutex so that partner symmetry and queue membership are never observably
// inconsistent. Keeping the data structures passive avoids lock-ordering
// hazards between registry and queues.
package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
)

type entry struct {
	user *model.User
	conn Connector
}

// Registry maps connection_id to the user record and its transport channel.
type Registry struct {
	entries   map[uuid.UUID]*entry
	startedAt time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[uuid.UUID]*entry),
		startedAt: time.Now(),
	}
}

// Register creates an Idle user record for a freshly accepted connection.
func (r *Registry) Register(conn Connector) *model.User {
	u := &model.User{
		ConnID: conn.GetID(),
		State:  model.Idle,
	}
	r.entries[u.ConnID] = &entry{user: u, conn: conn}
	return u
}

// Lookup resolves a connection_id to its user record, nil when gone.
func (r *Registry) Lookup(connID uuid.UUID) *model.User {
	if e, ok := r.entries[connID]; ok {
		return e.user
	}
	return nil
}

// Conn resolves a connection_id to its transport channel, nil when gone.
func (r *Registry) Conn(connID uuid.UUID) Connector {
	if e, ok := r.entries[connID]; ok {
		return e.conn
	}
	return nil
}

// Remove drops the record. The caller reconciles queues and partner pointers
// first; the connector is closed by the caller, not here.
func (r *Registry) Remove(connID uuid.UUID) {
	delete(r.entries, connID)
}

func (r *Registry) Len() int { return len(r.entries) }

// ForEach visits every registered user record.
func (r *Registry) ForEach(fn func(*model.User)) {
	for _, e := range r.entries {
		fn(e.user)
	}
}

// Snapshot counts records per state for diagnostics.
func (r *Registry) Snapshot() model.HubStats {
	st := model.HubStats{
		Connections: len(r.entries),
		Uptime:      time.Since(r.startedAt),
	}
	for _, e := range r.entries {
		switch e.user.State {
		case model.Idle:
			st.Idle++
		case model.Waiting:
			st.Waiting++
		case model.Paired:
			st.Paired++
		}
	}
	return st
}
