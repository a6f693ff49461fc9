package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// SessionState tracks a connection through the handshake and subscriptions.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateRejected
	StateSubscribed
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the gateway's view of one connection. The user ID is fixed at
// handshake for the lifetime of the connection.
type Session struct {
	conn Conn

	mu     sync.Mutex
	userID uuid.UUID
	state  SessionState
}

func newSession(conn Conn) *Session {
	return &Session{conn: conn, state: StateAuthenticating}
}

func (s *Session) ID() string { return s.conn.ID() }

func (s *Session) UserID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) authenticate(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.state = StateAuthenticated
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) leaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubscribed {
		s.state = StateAuthenticated
	}
}
