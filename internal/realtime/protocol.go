package realtime

import (
	"encoding/json"
	"strings"
)

// Event names used on the wire.
const (
	EventConnect      = "connect"
	EventConnected    = "connected"
	EventConnectError = "connect_error"
)

// AnonymousIdentity joins connections accepted while auth is disabled.
const AnonymousIdentity = "anonymous"

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type connectData struct {
	Token string `json:"token"`
}

// RoomFor names the room an identity's connections join.
func RoomFor(identity string) string {
	if identity == "" {
		identity = AnonymousIdentity
	}
	return "user:" + identity
}

func encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// stripBearer removes an optional "Bearer " prefix.
func stripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimSpace(raw[len("Bearer "):])
	}
	return raw
}

// handshakeToken picks the access token from the connect payload, the
// Authorization header or the token query parameter, in that order.
func handshakeToken(payload connectData, header, query string) string {
	for _, raw := range []string{payload.Token, header, query} {
		if tok := stripBearer(raw); tok != "" {
			return tok
		}
	}
	return ""
}
