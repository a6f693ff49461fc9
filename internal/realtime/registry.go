package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is one live client connection. Write must be safe for concurrent use.
type Conn interface {
	ID() string
	Write(frame []byte) error
}

// ConnectionRegistry maps users to their live connections. The in-memory
// implementation only reaches connections of this process; a multi-instance
// deployment needs a registry backed by shared pub/sub.
type ConnectionRegistry interface {
	Join(userID uuid.UUID, conn Conn)
	Leave(userID uuid.UUID, connID string)
	// LeaveAll drops connID from every user it is registered under.
	LeaveAll(connID string)
	// Broadcast writes frame to every connection of userID and returns how
	// many writes succeeded.
	Broadcast(userID uuid.UUID, frame []byte) int
	Connections(userID uuid.UUID) int
}

// MemoryRegistry is the process-local ConnectionRegistry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[string]Conn // userID -> connID -> conn
	log   logrus.FieldLogger
}

func NewMemoryRegistry(log logrus.FieldLogger) *MemoryRegistry {
	return &MemoryRegistry{
		rooms: make(map[uuid.UUID]map[string]Conn),
		log:   log,
	}
}

// Join adds conn to the user's room. A connection belongs to at most one user,
// so any earlier membership under another user is dropped.
func (r *MemoryRegistry) Join(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for other := range r.rooms {
		if other != userID {
			r.remove(other, conn.ID())
		}
	}
	if r.rooms[userID] == nil {
		r.rooms[userID] = make(map[string]Conn)
	}
	r.rooms[userID][conn.ID()] = conn
	r.log.WithFields(logrus.Fields{"userId": userID, "connId": conn.ID(), "total": len(r.rooms[userID])}).
		Debug("WS register")
}

func (r *MemoryRegistry) Leave(userID uuid.UUID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(userID, connID)
}

func (r *MemoryRegistry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID := range r.rooms {
		r.remove(userID, connID)
	}
}

// remove deletes connID from a room and prunes the room once empty. Caller holds mu.
func (r *MemoryRegistry) remove(userID uuid.UUID, connID string) {
	conns, ok := r.rooms[userID]
	if !ok {
		return
	}
	if _, ok := conns[connID]; !ok {
		return
	}
	delete(conns, connID)
	r.log.WithFields(logrus.Fields{"userId": userID, "connId": connID, "remaining": len(conns)}).
		Debug("WS unregister")
	if len(conns) == 0 {
		delete(r.rooms, userID)
	}
}

func (r *MemoryRegistry) Broadcast(userID uuid.UUID, frame []byte) int {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.rooms[userID]))
	for _, c := range r.rooms[userID] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Write(frame); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"userId": userID, "connId": c.ID()}).Warn("WS write error")
			continue
		}
		delivered++
	}
	return delivered
}

func (r *MemoryRegistry) Connections(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userID])
}

// Users returns the number of users with at least one live connection.
func (r *MemoryRegistry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
