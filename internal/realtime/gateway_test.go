package realtime

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts tokens listed in users and counts every call.
type stubVerifier struct {
	users map[string]uuid.UUID
	calls atomic.Int32
}

func (v *stubVerifier) VerifyToken(token string) (uuid.UUID, error) {
	v.calls.Add(1)
	if id, ok := v.users[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("bad token")
}

type testGateway struct {
	*Gateway
	registry *MemoryRegistry
	verifier *stubVerifier
	metrics  *metrics.Metrics
}

func newTestGateway(origins []string, users map[string]uuid.UUID) *testGateway {
	log, _ := test.NewNullLogger()
	registry := NewMemoryRegistry(log)
	verifier := &stubVerifier{users: users}
	m := metrics.New(prometheus.NewRegistry())
	return &testGateway{
		Gateway:  NewGateway(registry, verifier, origins, m, log),
		registry: registry,
		verifier: verifier,
		metrics:  m,
	}
}

func decodeFrame(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var f map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestAuthenticateRejectsOriginBeforeVerifyingToken(t *testing.T) {
	user := uuid.New()
	g := newTestGateway([]string{"https://app.partnerhub.io"}, map[string]uuid.UUID{"good": user})

	_, err := g.Authenticate("https://evil.example", "good")
	assert.ErrorIs(t, err, ErrOriginNotAllowed)
	assert.Zero(t, g.verifier.calls.Load())

	got, err := g.Authenticate("https://app.partnerhub.io", "good")
	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Equal(t, int32(1), g.verifier.calls.Load())
}

func TestAuthenticateTokenChecks(t *testing.T) {
	user := uuid.New()
	g := newTestGateway(nil, map[string]uuid.UUID{"good": user})

	_, err := g.Authenticate("https://anywhere.example", "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Zero(t, g.verifier.calls.Load())

	_, err = g.Authenticate("", "forged")
	assert.ErrorIs(t, err, middleware.ErrInvalidToken)

	got, err := g.Authenticate("", "good")
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestUpgradeHandshake(t *testing.T) {
	user := uuid.New()
	g := newTestGateway([]string{"https://app.partnerhub.io"}, map[string]uuid.UUID{"good": user})

	app := fiber.New()
	app.Use("/ws", g.Upgrade())
	app.Get("/ws/notifications", func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetUserID(c).String())
	})

	tests := []struct {
		name   string
		origin string
		target string
		auth   string
		plain  bool
		status int
	}{
		{name: "not an upgrade", plain: true, origin: "https://app.partnerhub.io", target: "/ws/notifications?token=good", status: fiber.StatusUpgradeRequired},
		{name: "origin mismatch", origin: "https://evil.example", target: "/ws/notifications?token=good", status: fiber.StatusForbidden},
		{name: "missing token", origin: "https://app.partnerhub.io", target: "/ws/notifications", status: fiber.StatusUnauthorized},
		{name: "invalid token", origin: "https://app.partnerhub.io", target: "/ws/notifications?token=forged", status: fiber.StatusUnauthorized},
		{name: "query token", origin: "https://app.partnerhub.io", target: "/ws/notifications?token=good", status: fiber.StatusOK},
		{name: "auth param", origin: "https://app.partnerhub.io", target: "/ws/notifications?auth=good", status: fiber.StatusOK},
		{name: "bearer header", origin: "https://app.partnerhub.io", target: "/ws/notifications", auth: "Bearer good", status: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if !tt.plain {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			req.Header.Set("Origin", tt.origin)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.HandshakeRejects.WithLabelValues("origin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.HandshakeRejects.WithLabelValues("missing_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.HandshakeRejects.WithLabelValues("invalid_token")))
}

func TestSubscribeToOtherUserIsRejected(t *testing.T) {
	g := newTestGateway(nil, nil)
	owner, victim := uuid.New(), uuid.New()
	conn := newFakeConn()
	sess := g.Open(owner, conn)

	result := g.Subscribe(sess, victim.String())
	assert.Equal(t, AckResult{Error: "Cannot subscribe to other users"}, result)
	assert.Equal(t, 0, g.registry.Users())
	assert.Equal(t, StateAuthenticated, sess.State())

	g.SendToUser(victim, &models.InAppNotification{Title: "secret"})
	assert.Empty(t, conn.received())
	assert.False(t, g.IsUserConnected(victim))
}

func TestSubscribeWithoutIdentity(t *testing.T) {
	g := newTestGateway(nil, nil)
	sess := g.Open(uuid.Nil, newFakeConn())

	result := g.Subscribe(sess, uuid.NewString())
	assert.Equal(t, AckResult{Error: "Not authenticated"}, result)
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.SubscribeRejects))
}

func TestSubscribeAndPush(t *testing.T) {
	g := newTestGateway(nil, nil)
	user := uuid.New()
	phone, laptop := newFakeConn(), newFakeConn()

	for _, c := range []*fakeConn{phone, laptop} {
		sess := g.Open(user, c)
		require.True(t, g.Subscribe(sess, user.String()).Success)
		assert.Equal(t, StateSubscribed, sess.State())
	}
	assert.True(t, g.IsUserConnected(user))

	n := &models.InAppNotification{ID: uuid.New(), UserID: user, Type: models.KindDeadline, Title: "Due soon"}
	g.SendToUser(user, n)
	g.SendUnreadCount(user, 3)

	for _, c := range []*fakeConn{phone, laptop} {
		frames := c.received()
		require.Len(t, frames, 2)

		first := decodeFrame(t, frames[0])
		assert.Equal(t, EventNotification, first["event"])
		data := first["data"].(map[string]interface{})
		assert.Equal(t, "Due soon", data["title"])
		assert.Equal(t, n.ID.String(), data["id"])

		second := decodeFrame(t, frames[1])
		assert.Equal(t, EventUnreadCount, second["event"])
		assert.Equal(t, map[string]interface{}{"count": 3.0}, second["data"])
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(g.metrics.PushedEvents.WithLabelValues(EventNotification)))
}

func TestPushWithoutConnectionsIsNoop(t *testing.T) {
	g := newTestGateway(nil, nil)
	g.SendToUser(uuid.New(), &models.InAppNotification{Title: "nobody home"})
	g.SendUnreadCount(uuid.New(), 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(g.metrics.PushedEvents.WithLabelValues(EventNotification)))
}

func TestUnsubscribeAndClose(t *testing.T) {
	g := newTestGateway(nil, nil)
	user := uuid.New()
	conn := newFakeConn()
	sess := g.Open(user, conn)
	require.True(t, g.Subscribe(sess, user.String()).Success)

	assert.Equal(t, AckResult{Success: true}, g.Unsubscribe(sess, user.String()))
	assert.False(t, g.IsUserConnected(user))
	assert.Equal(t, StateAuthenticated, sess.State())

	// idempotent
	assert.Equal(t, AckResult{Success: true}, g.Unsubscribe(sess, user.String()))

	require.True(t, g.Subscribe(sess, user.String()).Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(g.metrics.LiveConnections))
	g.Close(sess)
	assert.False(t, g.IsUserConnected(user))
	assert.Equal(t, StateDisconnected, sess.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(g.metrics.LiveConnections))
}

func TestHandleFrameWritesAck(t *testing.T) {
	g := newTestGateway(nil, nil)
	user := uuid.New()
	conn := newFakeConn()
	sess := g.Open(user, conn)

	g.HandleFrame(sess, []byte(`{"event":"subscribe","ack":7,"data":"`+uuid.NewString()+`"}`))
	g.HandleFrame(sess, []byte(`{"event":"subscribe","ack":8,"data":"`+user.String()+`"}`))
	g.HandleFrame(sess, []byte(`{"event":"unsubscribe","data":"`+user.String()+`"}`))
	g.HandleFrame(sess, []byte(`not json`))

	frames := conn.received()
	require.Len(t, frames, 2)

	rejected := decodeFrame(t, frames[0])
	assert.Equal(t, EventAck, rejected["event"])
	assert.Equal(t, 7.0, rejected["ack"])
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Cannot subscribe to other users"}, rejected["data"])

	accepted := decodeFrame(t, frames[1])
	assert.Equal(t, 8.0, accepted["ack"])
	assert.Equal(t, map[string]interface{}{"success": true}, accepted["data"])

	assert.False(t, g.IsUserConnected(user))
}
