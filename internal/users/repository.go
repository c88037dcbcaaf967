package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/socialhub/socialhub/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("email or username already in use")
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	// Create assigns an ID and inserts u. ErrExists on a duplicate email or username.
	Create(ctx context.Context, u *models.User) error
	// FindByIdentifier looks a user up by email or username.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

// EnsureIndexes creates the unique email and username indexes.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": identifier}, bson.M{"username": identifier}}}
	return r.findOne(ctx, filter)
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// MemoryUserRepository keeps users in process. Used when MongoDB is not
// configured and in tests.
type MemoryUserRepository struct {
	mu   sync.RWMutex
	byID map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[string]*models.User)}
}

func (m *MemoryUserRepository) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrExists
		}
	}
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *MemoryUserRepository) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}
