package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func newTestRegistry() *MemoryRegistry {
	log, _ := test.NewNullLogger()
	return NewMemoryRegistry(log)
}

func TestRegistryJoinLeavePrunesEmptyUsers(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	a, b := newFakeConn(), newFakeConn()

	r.Join(user, a)
	r.Join(user, b)
	assert.Equal(t, 2, r.Connections(user))

	r.Leave(user, a.ID())
	assert.Equal(t, 1, r.Connections(user))

	r.Leave(user, b.ID())
	assert.Equal(t, 0, r.Connections(user))
	assert.Equal(t, 0, r.Users())

	// leaving again is a no-op
	r.Leave(user, b.ID())
	assert.Equal(t, 0, r.Users())
}

func TestRegistryConnectionBelongsToOneUser(t *testing.T) {
	r := newTestRegistry()
	first, second := uuid.New(), uuid.New()
	conn := newFakeConn()

	r.Join(first, conn)
	r.Join(second, conn)

	assert.Equal(t, 0, r.Connections(first))
	assert.Equal(t, 1, r.Connections(second))
	assert.Equal(t, 1, r.Users())
}

func TestRegistryLeaveAllScansEveryUser(t *testing.T) {
	r := newTestRegistry()
	user, other := uuid.New(), uuid.New()
	conn, keep := newFakeConn(), newFakeConn()

	r.Join(user, conn)
	r.Join(other, keep)
	r.LeaveAll(conn.ID())

	assert.Equal(t, 0, r.Connections(user))
	assert.Equal(t, 1, r.Connections(other))
	assert.Equal(t, 1, r.Users())
}

func TestRegistryBroadcastCountsSuccessfulWrites(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	ok, broken := newFakeConn(), newFakeConn()
	broken.err = errors.New("connection reset")

	r.Join(user, ok)
	r.Join(user, broken)

	assert.Equal(t, 1, r.Broadcast(user, []byte(`{"event":"x"}`)))
	assert.Len(t, ok.received(), 1)
	assert.Equal(t, 0, r.Broadcast(uuid.New(), []byte(`{}`)))
}
