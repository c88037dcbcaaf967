package messages

import "time"

// Message is a direct message between two identities.
type Message struct {
	ID        string     `json:"_id" bson:"_id,omitempty"`
	From      string     `json:"from" bson:"from"`
	To        string     `json:"to" bson:"to"`
	Text      string     `json:"text" bson:"text"`
	ReadAt    *time.Time `json:"readAt" bson:"readAt"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Realtime events emitted for messages.
const (
	EventNew       = "message:new"
	EventDelivered = "message:delivered"
	EventRead      = "message:read"
)
