package sessions

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/socialhub/socialhub/backend/go-services/internal/config"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection holds refresh sessions when they live in MongoDB.
const Collection = "refreshtokens"

// OpenStore returns the backend selected by cfg.Store. A Mongo selection
// falls back to Redis when only Redis is reachable.
func OpenStore(ctx context.Context, cfg config.SessionsConfig, db *mongo.Database, rdb *redis.Client) (Store, error) {
	switch cfg.Store {
	case "redis":
		if rdb == nil {
			return nil, errors.New("SESSION_STORE=redis but Redis is not reachable")
		}
		logger.Infof("refresh sessions stored in Redis")
		return NewRedisStore(rdb, ""), nil
	default:
		if db == nil {
			if rdb != nil {
				logger.Warnf("MongoDB unavailable, refresh sessions fall back to Redis")
				return NewRedisStore(rdb, ""), nil
			}
			return nil, errors.New("SESSION_STORE=mongo but MongoDB is not reachable")
		}
		s := NewMongoStore(db.Collection(Collection))
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		logger.Infof("refresh sessions stored in MongoDB")
		return s, nil
	}
}
