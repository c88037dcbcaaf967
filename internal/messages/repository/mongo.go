package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialhub/socialhub/backend/go-services/internal/messages"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed repository for messages.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the conversation and inbox indexes.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "to", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) Create(ctx context.Context, msg *messages.Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	msg.CreatedAt = time.Now().UTC()
	msg.UpdatedAt = msg.CreatedAt
	if _, err := m.col.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (m *MongoRepo) GetForRecipient(ctx context.Context, id, recipient string) (*messages.Message, error) {
	var msg messages.Message
	err := m.col.FindOne(ctx, bson.M{"_id": id, "to": recipient}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (m *MongoRepo) MarkRead(ctx context.Context, id, recipient string, at time.Time) (bool, error) {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": id, "to": recipient, "readAt": nil},
		bson.M{"$set": bson.M{"readAt": at, "updatedAt": at}},
	)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (m *MongoRepo) Conversation(ctx context.Context, a, b string) ([]*messages.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from": a, "to": b},
		bson.M{"from": b, "to": a},
	}}
	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*messages.Message{}
	for cur.Next(ctx) {
		var msg messages.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, cur.Err()
}
