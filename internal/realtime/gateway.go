// Package realtime is the websocket push gateway. Clients authenticate during
// the handshake, subscribe to their own user room and receive notification and
// unreadCount events.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/arnold/partnerhub-api/internal/metrics"
	"github.com/arnold/partnerhub-api/internal/middleware"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event names on the wire.
const (
	EventSubscribe    = "subscribe"
	EventUnsubscribe  = "unsubscribe"
	EventAck          = "ack"
	EventNotification = "notification"
	EventUnreadCount  = "unreadCount"
)

var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrMissingToken     = errors.New("missing authentication token")
)

// Frame is a client-to-server message. Ack, when set, is echoed on the reply.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int            `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string      `json:"event"`
	Ack   *int        `json:"ack,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// AckResult answers subscribe and unsubscribe.
type AckResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type unreadCountPayload struct {
	Count int64 `json:"count"`
}

// Gateway authenticates websocket clients and pushes events to user rooms.
type Gateway struct {
	registry ConnectionRegistry
	verifier middleware.TokenVerifier
	origins  map[string]struct{}
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// NewGateway builds a gateway. An empty origins list disables origin checks.
func NewGateway(registry ConnectionRegistry, verifier middleware.TokenVerifier, origins []string, m *metrics.Metrics, log logrus.FieldLogger) *Gateway {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}
	return &Gateway{
		registry: registry,
		verifier: verifier,
		origins:  set,
		metrics:  m,
		log:      log,
	}
}

// Authenticate runs the handshake checks in order: origin, token presence,
// token validity. The origin check never consults the verifier.
func (g *Gateway) Authenticate(origin, token string) (uuid.UUID, error) {
	if len(g.origins) > 0 {
		if _, ok := g.origins[origin]; !ok {
			return uuid.Nil, ErrOriginNotAllowed
		}
	}
	if token == "" {
		return uuid.Nil, ErrMissingToken
	}
	userID, err := g.verifier.VerifyToken(token)
	if err != nil {
		return uuid.Nil, middleware.ErrInvalidToken
	}
	return userID, nil
}

// Upgrade is the handshake middleware mounted in front of Handler.
func (g *Gateway) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// Browsers pass the token as a query param, other clients may use the header.
		token := c.Query("token")
		if token == "" {
			token = c.Query("auth")
		}
		if token == "" {
			token = middleware.BearerToken(c.Get("Authorization"))
		}

		userID, err := g.Authenticate(c.Get("Origin"), token)
		if err != nil {
			return g.reject(c, err)
		}

		c.Locals("userId", userID)
		return c.Next()
	}
}

func (g *Gateway) reject(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	reason := "invalid_token"
	switch {
	case errors.Is(err, ErrOriginNotAllowed):
		status, reason = fiber.StatusForbidden, "origin"
	case errors.Is(err, ErrMissingToken):
		reason = "missing_token"
	}
	g.metrics.HandshakeRejects.WithLabelValues(reason).Inc()
	g.log.WithFields(logrus.Fields{"origin": c.Get("Origin"), "reason": reason}).Warn("WS handshake rejected")

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Handler serves authenticated websocket connections.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(g.serve)
}

func (g *Gateway) serve(c *websocket.Conn) {
	userID, ok := c.Locals("userId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}

	sess := g.Open(userID, &wsConn{id: uuid.NewString(), c: c})
	defer g.Close(sess)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		g.HandleFrame(sess, raw)
	}
}

// Open registers a new authenticated session. Nothing is joined until the
// client subscribes.
func (g *Gateway) Open(userID uuid.UUID, conn Conn) *Session {
	sess := newSession(conn)
	if userID != uuid.Nil {
		sess.authenticate(userID)
		g.metrics.LiveConnections.Inc()
	}
	g.log.WithFields(logrus.Fields{"userId": userID, "connId": conn.ID()}).Info("WS client connected")
	return sess
}

// Close removes the session from every room it may be in.
func (g *Gateway) Close(sess *Session) {
	if sess.UserID() != uuid.Nil {
		g.metrics.LiveConnections.Dec()
	}
	sess.setState(StateDisconnected)
	g.registry.LeaveAll(sess.ID())
	g.log.WithFields(logrus.Fields{"userId": sess.UserID(), "connId": sess.ID()}).Info("WS client disconnected")
}

// HandleFrame decodes one client frame and answers it.
func (g *Gateway) HandleFrame(sess *Session, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		g.log.WithError(err).WithField("connId", sess.ID()).Debug("WS ignoring malformed frame")
		return
	}

	var target string
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &target); err != nil {
			target = ""
		}
	}

	var result AckResult
	switch f.Event {
	case EventSubscribe:
		result = g.Subscribe(sess, target)
	case EventUnsubscribe:
		result = g.Unsubscribe(sess, target)
	default:
		result = AckResult{Error: "Unknown event"}
	}

	if f.Ack == nil {
		return
	}
	frame, err := json.Marshal(outFrame{Event: EventAck, Ack: f.Ack, Data: result})
	if err != nil {
		return
	}
	if err := sess.conn.Write(frame); err != nil {
		g.log.WithError(err).WithField("connId", sess.ID()).Warn("WS ack write error")
	}
}

// Subscribe joins the session to the claimed user's room. Only the identity
// proven at handshake may be claimed.
func (g *Gateway) Subscribe(sess *Session, claimed string) AckResult {
	userID := sess.UserID()
	if userID == uuid.Nil {
		g.metrics.SubscribeRejects.Inc()
		return AckResult{Error: "Not authenticated"}
	}

	claimedID, err := uuid.Parse(claimed)
	if err != nil || claimedID != userID {
		g.metrics.SubscribeRejects.Inc()
		g.log.WithFields(logrus.Fields{"userId": userID, "claimed": claimed}).Warn("WS subscribe to other user rejected")
		return AckResult{Error: "Cannot subscribe to other users"}
	}

	g.registry.Join(userID, sess.conn)
	sess.setState(StateSubscribed)
	return AckResult{Success: true}
}

// Unsubscribe leaves the room. Leaving a room the session is not in is a no-op.
func (g *Gateway) Unsubscribe(sess *Session, userID string) AckResult {
	if id, err := uuid.Parse(userID); err == nil {
		g.registry.Leave(id, sess.ID())
		if id == sess.UserID() {
			sess.leaveRoom()
		}
	}
	return AckResult{Success: true}
}

// SendToUser pushes a notification event to every live connection of userID.
func (g *Gateway) SendToUser(userID uuid.UUID, n *models.InAppNotification) {
	g.push(userID, EventNotification, n)
}

// SendUnreadCount pushes the user's current unread count.
func (g *Gateway) SendUnreadCount(userID uuid.UUID, count int64) {
	g.push(userID, EventUnreadCount, unreadCountPayload{Count: count})
}

func (g *Gateway) IsUserConnected(userID uuid.UUID) bool {
	return g.registry.Connections(userID) > 0
}

func (g *Gateway) push(userID uuid.UUID, event string, data interface{}) {
	if g.registry.Connections(userID) == 0 {
		return
	}
	frame, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		g.log.WithError(err).WithField("event", event).Error("WS marshal error")
		return
	}
	delivered := g.registry.Broadcast(userID, frame)
	g.metrics.PushedEvents.WithLabelValues(event).Add(float64(delivered))
}

// wsConn serializes writes on a fiber websocket connection.
type wsConn struct {
	id string
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) ID() string { return w.id }

func (w *wsConn) Write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteMessage(websocket.TextMessage, frame)
}
