package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]string

func (f fakeVerifier) VerifyAccess(raw string) (string, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

var testTokens = fakeVerifier{"tok-alice": "alice", "tok-bob": "bob"}

func newTestGateway(t *testing.T, opts Options) (*Gateway, string) {
	t.Helper()
	g := NewGateway(testTokens, opts)
	srv := httptest.NewServer(g)
	t.Cleanup(func() {
		g.Close()
		srv.Close()
	})
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// dial opens a socket and sends the connect frame.
func dial(t *testing.T, url, token string, header http.Header) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	data := map[string]string{}
	if token != "" {
		data["token"] = token
	}
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"event": "connect", "data": data}))
	return ws
}

// readUntil skips frames until one carries event, e.g. the "connected"
// broadcasts caused by other tabs joining.
func readUntil(t *testing.T, ws *websocket.Conn, event string) map[string]interface{} {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env Envelope
		require.NoError(t, ws.ReadJSON(&env))
		if env.Event != event {
			continue
		}
		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		return data
	}
}

func requireRejected(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	data := readUntil(t, ws, EventConnectError)
	require.Equal(t, "Auth failed", data["message"])
	_, _, err := ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestGateway_ConnectedAck(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	ws := dial(t, url, "Bearer tok-alice", nil)

	data := readUntil(t, ws, EventConnected)
	require.Equal(t, "connected", data["type"])
	require.Equal(t, "alice", data["userId"])
	require.NotZero(t, data["ts"])
	require.Equal(t, 1, g.RoomSize("alice"))
	require.True(t, g.IsOnline("alice"))
}

func TestGateway_MultiTabDelivery(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	tab1 := dial(t, url, "tok-alice", nil)
	readUntil(t, tab1, EventConnected)
	tab2 := dial(t, url, "tok-alice", nil)
	readUntil(t, tab2, EventConnected)

	n := g.EmitToIdentity("alice", "message:new", map[string]string{"text": "hi"})
	require.Equal(t, 2, n)

	for _, ws := range []*websocket.Conn{tab1, tab2} {
		data := readUntil(t, ws, "message:new")
		require.Equal(t, "hi", data["text"])
	}
}

func TestGateway_RoomIsolation(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	alice := dial(t, url, "tok-alice", nil)
	readUntil(t, alice, EventConnected)
	bob := dial(t, url, "tok-bob", nil)
	readUntil(t, bob, EventConnected)

	require.Equal(t, 1, g.EmitToIdentity("alice", "message:new", map[string]string{"text": "for-alice"}))
	require.Equal(t, 1, g.EmitToIdentity("bob", "message:new", map[string]string{"text": "for-bob"}))

	// bob's first message:new must be his own
	require.Equal(t, "for-bob", readUntil(t, bob, "message:new")["text"])
	require.Equal(t, "for-alice", readUntil(t, alice, "message:new")["text"])
}

func TestGateway_EmitToNobody(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	require.Zero(t, g.EmitToIdentity("ghost", "message:new", nil))
	require.Zero(t, g.EmitToIdentity("", "message:new", nil))
	require.False(t, g.IsOnline("ghost"))
}

func TestGateway_AnonymousRejectedByDefault(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	ws := dial(t, url, "", nil)
	requireRejected(t, ws)
	require.Zero(t, g.RoomSize(AnonymousIdentity))
}

func TestGateway_InvalidTokenRejected(t *testing.T) {
	_, url := newTestGateway(t, Options{})
	requireRejected(t, dial(t, url, "Bearer garbage", nil))
}

func TestGateway_FirstFrameMustBeConnect(t *testing.T) {
	_, url := newTestGateway(t, Options{})
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteJSON(map[string]interface{}{"event": "message:new", "data": map[string]string{"token": "tok-alice"}}))
	requireRejected(t, ws)
}

func TestGateway_AuthDisabledJoinsAnonymous(t *testing.T) {
	g, url := newTestGateway(t, Options{AuthDisabled: true})
	ws := dial(t, url, "", nil)
	data := readUntil(t, ws, EventConnected)
	require.Equal(t, AnonymousIdentity, data["userId"])
	require.Equal(t, 1, g.RoomSize(AnonymousIdentity))
}

func TestGateway_TokenFromHeader(t *testing.T) {
	_, url := newTestGateway(t, Options{})
	ws := dial(t, url, "", http.Header{"Authorization": []string{"Bearer tok-bob"}})
	require.Equal(t, "bob", readUntil(t, ws, EventConnected)["userId"])
}

func TestGateway_TokenFromQuery(t *testing.T) {
	_, url := newTestGateway(t, Options{})
	ws := dial(t, url+"?token=tok-bob", "", nil)
	require.Equal(t, "bob", readUntil(t, ws, EventConnected)["userId"])
}

func TestGateway_PayloadTokenWins(t *testing.T) {
	_, url := newTestGateway(t, Options{})
	ws := dial(t, url+"?token=tok-bob", "tok-alice", http.Header{"Authorization": []string{"Bearer tok-bob"}})
	require.Equal(t, "alice", readUntil(t, ws, EventConnected)["userId"])
}

func TestGateway_OriginRejected(t *testing.T) {
	_, url := newTestGateway(t, Options{AllowOrigin: func(o string) bool { return o == "http://localhost:5173" }})

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws := dial(t, url, "tok-alice", http.Header{"Origin": []string{"http://localhost:5173"}})
	readUntil(t, ws, EventConnected)
}

func TestGateway_DisconnectLeavesRoom(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	ws := dial(t, url, "tok-alice", nil)
	readUntil(t, ws, EventConnected)
	require.Equal(t, 1, g.RoomSize("alice"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return g.RoomSize("alice") == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestGateway_CloseDisconnectsEveryone(t *testing.T) {
	g, url := newTestGateway(t, Options{})
	ws := dial(t, url, "tok-alice", nil)
	readUntil(t, ws, EventConnected)

	g.Close()

	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var err error
	for err == nil {
		_, _, err = ws.ReadMessage()
	}
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Zero(t, g.RoomSize("alice"))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandshakeToken(t *testing.T) {
	cases := []struct {
		payload, header, query, want string
	}{
		{"Bearer a", "Bearer b", "c", "a"},
		{"", "Bearer b", "c", "b"},
		{"", "", "c", "c"},
		{"", "", "Bearer c", "c"},
		{"  ", "", "", ""},
		{"raw", "", "", "raw"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, handshakeToken(connectData{Token: tc.payload}, tc.header, tc.query))
	}
	require.Equal(t, "user:anonymous", RoomFor(""))
	require.Equal(t, "user:42", RoomFor("42"))
}
