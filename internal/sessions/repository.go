package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("refresh session not found")
	ErrConflict = errors.New("refresh session already exists")
)

// Store provides refresh session persistence. Every mutation touches a single
// row or the rows of a single identity.
type Store interface {
	// Create inserts s with RevokedAt unset. ErrConflict when the session id exists.
	Create(ctx context.Context, s *RefreshSession) error
	// FindActive returns the session when it exists and belongs to identity.
	// Callers must check Revoked and Expired themselves.
	FindActive(ctx context.Context, sessionID, identity string) (*RefreshSession, error)
	// Revoke sets RevokedAt if unset. It reports whether this call made the
	// transition; revoking an already revoked or unknown session is not an error.
	Revoke(ctx context.Context, sessionID string) (bool, error)
	// RevokeAllForIdentity revokes every unrevoked session of identity and
	// returns how many were revoked.
	RevokeAllForIdentity(ctx context.Context, identity string) (int64, error)
}

// MongoStore implements Store using a Mongo collection
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the unique session id index and the identity lookup index.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "identity", Value: 1}, {Key: "revokedAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("refresh session indexes: %w", err)
	}
	return nil
}

func (r *MongoStore) Create(ctx context.Context, s *RefreshSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	s.RevokedAt = nil
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert refresh session: %w", err)
	}
	return nil
}

func (r *MongoStore) FindActive(ctx context.Context, sessionID, identity string) (*RefreshSession, error) {
	var s RefreshSession
	err := r.col.FindOne(ctx, bson.M{"sessionId": sessionID, "identity": identity}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh session: %w", err)
	}
	return &s, nil
}

func (r *MongoStore) Revoke(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"sessionId": sessionID, "revokedAt": nil},
		bson.M{"$set": bson.M{"revokedAt": r.now()}},
	)
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoStore) RevokeAllForIdentity(ctx context.Context, identity string) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"identity": identity, "revokedAt": nil},
		bson.M{"$set": bson.M{"revokedAt": r.now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for identity: %w", err)
	}
	return res.ModifiedCount, nil
}
