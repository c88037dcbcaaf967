package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/metrics"
)

// HandshakeTimeout bounds the wait for the client's connect frame.
const HandshakeTimeout = 10 * time.Second

// authFailedMessage is the only detail a rejected client sees.
const authFailedMessage = "Auth failed"

var errNoIdentity = errors.New("token carries no identity")

// AccessVerifier resolves an access token to an identity.
type AccessVerifier interface {
	VerifyAccess(raw string) (string, error)
}

// Options configures a Gateway.
type Options struct {
	// AllowOrigin decides whether a browser Origin may connect. Nil allows
	// every origin.
	AllowOrigin func(origin string) bool
	// AuthDisabled joins every connection to the anonymous room without
	// checking a token. Local development only.
	AuthDisabled bool
	Debug        bool
}

// Gateway authenticates WebSocket handshakes and routes events to
// per-identity rooms.
type Gateway struct {
	verifier AccessVerifier
	opts     Options
	upgrader websocket.Upgrader
	hub      *hub
	log      *logger.Scoped
	closed   atomic.Bool
}

func NewGateway(verifier AccessVerifier, opts Options) *Gateway {
	g := &Gateway{
		verifier: verifier,
		opts:     opts,
		hub:      newHub(),
		log:      logger.Named("ws", opts.Debug),
	}
	g.upgrader = websocket.Upgrader{
		HandshakeTimeout: HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowOrigin == nil {
				return true
			}
			return opts.AllowOrigin(r.Header.Get("Origin"))
		},
	}
	if opts.AuthDisabled {
		g.log.Warnf("realtime auth is disabled; every socket joins %s", RoomFor(AnonymousIdentity))
	}
	return g
}

// Handler adapts the gateway to a gin route.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		g.ServeHTTP(c.Writer, c.Request)
	}
}

// ServeHTTP upgrades the request and blocks until the socket is gone.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		g.log.Debugf("upgrade failed: %v", err)
		return
	}

	identity, err := g.authenticate(ws, r)
	if err != nil {
		g.log.Debugf("handshake rejected from %s: %v", r.RemoteAddr, err)
		metrics.RealtimeHandshakeFailures.Inc()
		g.reject(ws)
		return
	}

	c := newConn(uuid.NewString(), identity, ws)
	g.hub.join(c)
	if g.closed.Load() {
		// lost a race with Close
		g.hub.leave(c)
		c.close(websocket.CloseGoingAway, "shutting down")
		return
	}
	go c.writePump()

	g.log.Infof("connected user=%s sid=%s room=%s", identity, c.id, c.room)
	g.emitRoom(c.room, EventConnected, gin.H{
		"type":   EventConnected,
		"userId": identity,
		"ts":     time.Now().UnixMilli(),
	})

	c.readPump()

	g.hub.leave(c)
	c.close(0, "")
	g.log.Infof("disconnected user=%s sid=%s", identity, c.id)
}

// authenticate reads the connect frame and resolves the identity.
func (g *Gateway) authenticate(ws *websocket.Conn, r *http.Request) (string, error) {
	_ = ws.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	ws.SetReadLimit(maxFrameSize)
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return "", err
	}
	_ = ws.SetReadDeadline(time.Time{})

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", errors.New("malformed connect frame")
	}
	if env.Event != EventConnect {
		return "", errors.New("first frame must be connect, got " + env.Event)
	}

	if g.opts.AuthDisabled {
		g.log.Debugf("skipping auth")
		return AnonymousIdentity, nil
	}

	var payload connectData
	if len(env.Data) > 0 {
		// a non-object payload simply carries no token
		_ = json.Unmarshal(env.Data, &payload)
	}
	token := handshakeToken(payload, r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	if token == "" {
		return "", errors.New("no token source")
	}
	identity, err := g.verifier.VerifyAccess(token)
	if err != nil {
		return "", err
	}
	if identity == "" {
		return "", errNoIdentity
	}
	g.log.Debugf("authorized %s", identity)
	return identity, nil
}

// reject reports a generic failure and closes with policy violation.
func (g *Gateway) reject(ws *websocket.Conn) {
	if frame, err := encode(EventConnectError, gin.H{"message": authFailedMessage}); err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, authFailedMessage)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}

// EmitToIdentity delivers an event to every connection joined to the
// identity's room and returns how many connections it was queued to.
// Delivery is at-most-once; sockets that are not connected miss it.
func (g *Gateway) EmitToIdentity(identity, event string, payload interface{}) int {
	if identity == "" {
		return 0
	}
	return g.emitRoom(RoomFor(identity), event, payload)
}

func (g *Gateway) emitRoom(room, event string, payload interface{}) int {
	frame, err := encode(event, payload)
	if err != nil {
		g.log.Errorf("encode %s: %v", event, err)
		return 0
	}
	n := g.hub.broadcast(room, frame)
	if n > 0 {
		metrics.RealtimeEventsEmitted.WithLabelValues(event).Add(float64(n))
	}
	g.log.Debugf("emit %s to %s (%d sockets)", event, room, n)
	return n
}

// RoomSize returns the number of connections currently joined for identity.
func (g *Gateway) RoomSize(identity string) int {
	return g.hub.size(RoomFor(identity))
}

// IsOnline reports whether identity has at least one live connection.
func (g *Gateway) IsOnline(identity string) bool {
	return g.RoomSize(identity) > 0
}

// Close stops accepting sockets and disconnects every joined connection.
func (g *Gateway) Close() {
	if g.closed.Swap(true) {
		return
	}
	conns := g.hub.snapshot()
	for _, c := range conns {
		g.hub.leave(c)
		c.close(websocket.CloseGoingAway, "server shutdown")
	}
	g.log.Infof("gateway closed, %d sockets disconnected", len(conns))
}
