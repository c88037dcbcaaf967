package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/socialhub/socialhub/backend/go-services/internal/messages"
	"github.com/socialhub/socialhub/backend/go-services/internal/messages/repository"
	"github.com/socialhub/socialhub/backend/go-services/internal/models"
	"github.com/socialhub/socialhub/backend/go-services/internal/users"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxTextLength bounds a message body, in characters.
const MaxTextLength = 5000

var (
	ErrNotFound          = errors.New("Message not found")
	ErrRecipientNotFound = errors.New("Recipient not found")
)

// InputError is a client mistake; its text is returned as is.
type InputError string

func (e InputError) Error() string { return string(e) }

// Emitter pushes events to the realtime rooms of an identity.
type Emitter interface {
	EmitToIdentity(identity, event string, payload interface{}) int
	IsOnline(identity string) bool
}

// UserLookup resolves recipients. Unknown ids yield users.ErrNotFound.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Service stores messages and fans the matching events out to both parties.
type Service struct {
	repo    repository.Repository
	emitter Emitter
	users   UserLookup
	now     func() time.Time
}

// New builds a Service. lookup may be nil, in which case recipients are not
// checked for existence.
func New(repo repository.Repository, emitter Emitter, lookup UserLookup) *Service {
	return &Service{
		repo:    repo,
		emitter: emitter,
		users:   lookup,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(emitter Emitter, lookup UserLookup) *Service {
	return New(repository.NewMemoryRepo(), emitter, lookup)
}

// Send persists a message then emits message:new to both parties and, when
// the recipient has a live connection, message:delivered to the sender.
func (s *Service) Send(ctx context.Context, from, to, text string) (*messages.Message, error) {
	to = strings.TrimSpace(to)
	text = strings.TrimSpace(text)
	if !primitive.IsValidObjectID(to) {
		return nil, InputError("Recipient is required")
	}
	if text == "" {
		return nil, InputError("text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, InputError("Text exceeds 5000 characters")
	}
	if to == from {
		return nil, InputError("Cannot message yourself")
	}
	if s.users != nil {
		if _, err := s.users.GetByID(ctx, to); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return nil, ErrRecipientNotFound
			}
			return nil, fmt.Errorf("lookup recipient: %w", err)
		}
	}

	msg := &messages.Message{From: from, To: to, Text: text}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"_id":       msg.ID,
		"from":      msg.From,
		"to":        msg.To,
		"text":      msg.Text,
		"createdAt": msg.CreatedAt,
	}
	s.emitter.EmitToIdentity(to, messages.EventNew, payload)
	s.emitter.EmitToIdentity(from, messages.EventNew, payload)
	if s.emitter.IsOnline(to) {
		s.emitter.EmitToIdentity(from, messages.EventDelivered, map[string]interface{}{
			"messageId": msg.ID,
			"to":        to,
			"ts":        s.now().UnixMilli(),
		})
	}
	return msg, nil
}

// MarkRead sets readAt on a message addressed to by. Only the first call
// sets it and notifies the sender with message:read.
func (s *Service) MarkRead(ctx context.Context, id, by string) (*messages.Message, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, InputError("Invalid message id")
	}
	msg, err := s.repo.GetForRecipient(ctx, id, by)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	at := s.now()
	won, err := s.repo.MarkRead(ctx, id, by, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !won {
		// a concurrent request set it first
		return s.repo.GetForRecipient(ctx, id, by)
	}
	msg.ReadAt = &at
	s.emitter.EmitToIdentity(msg.From, messages.EventRead, map[string]interface{}{
		"messageId": msg.ID,
		"by":        by,
		"readAt":    at,
	})
	return msg, nil
}

// Conversation lists the messages exchanged between me and other.
func (s *Service) Conversation(ctx context.Context, me, other string) ([]*messages.Message, error) {
	if !primitive.IsValidObjectID(other) {
		return nil, InputError("Invalid user id")
	}
	return s.repo.Conversation(ctx, me, other)
}
