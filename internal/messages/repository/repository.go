package repository

import (
	"context"
	"errors"
	"time"

	"github.com/socialhub/socialhub/backend/go-services/internal/messages"
)

var ErrNotFound = errors.New("message not found")

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, m *messages.Message) error
	// GetForRecipient returns message id only when it was sent to recipient.
	GetForRecipient(ctx context.Context, id, recipient string) (*messages.Message, error)
	// MarkRead sets ReadAt if unset and reports whether this call set it.
	MarkRead(ctx context.Context, id, recipient string, at time.Time) (bool, error)
	// Conversation lists messages exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b string) ([]*messages.Message, error)
}
