package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// updateFilter returns the filter of the first statement of a captured
// update command.
func updateFilter(mt *mtest.T) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt)
	require.Equal(mt, "update", evt.CommandName)
	return evt.Command.Lookup("updates", "0", "q").Document()
}

func sessionDoc(sid, identity string, revokedAt interface{}, expiresAt time.Time) bson.D {
	return bson.D{
		{Key: "sessionId", Value: sid},
		{Key: "identity", Value: identity},
		{Key: "createdAt", Value: expiresAt.Add(-time.Hour)},
		{Key: "revokedAt", Value: revokedAt},
		{Key: "expiresAt", Value: expiresAt},
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create inserts unrevoked row", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, store.Create(ctx, &RefreshSession{SessionID: "s1", Identity: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
		evt := mt.GetStartedEvent()
		require.Equal(mt, "insert", evt.CommandName)
		doc := evt.Command.Lookup("documents", "0").Document()
		require.Equal(mt, "s1", doc.Lookup("sessionId").StringValue())
		require.Equal(mt, bson.TypeNull, doc.Lookup("revokedAt").Type)
	})

	mt.Run("create duplicate is a conflict", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		err := store.Create(ctx, &RefreshSession{SessionID: "dup", Identity: "u1", ExpiresAt: time.Now().Add(time.Hour)})
		require.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("find active scopes by identity", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		exp := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, sessionDoc("s1", "u1", nil, exp)))

		got, err := store.FindActive(ctx, "s1", "u1")
		require.NoError(mt, err)
		require.Equal(mt, "u1", got.Identity)
		require.False(mt, got.Revoked())
		require.True(mt, exp.Equal(got.ExpiresAt))

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)
		filter := evt.Command.Lookup("filter").Document()
		require.Equal(mt, "s1", filter.Lookup("sessionId").StringValue())
		require.Equal(mt, "u1", filter.Lookup("identity").StringValue())

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err = store.FindActive(ctx, "s1", "someone-else")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("revoke is a compare-and-set on revokedAt", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		won, err := store.Revoke(ctx, "s1")
		require.NoError(mt, err)
		require.True(mt, won)
		filter := updateFilter(mt)
		require.Equal(mt, "s1", filter.Lookup("sessionId").StringValue())
		require.Equal(mt, bson.TypeNull, filter.Lookup("revokedAt").Type)

		// the row is already revoked, so the filter matches nothing
		won, err = store.Revoke(ctx, "s1")
		require.NoError(mt, err)
		require.False(mt, won)
	})

	mt.Run("revoke all only touches unrevoked rows of the identity", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}, bson.E{Key: "nModified", Value: 3}))

		n, err := store.RevokeAllForIdentity(ctx, "u1")
		require.NoError(mt, err)
		require.Equal(mt, int64(3), n)
		filter := updateFilter(mt)
		require.Equal(mt, "u1", filter.Lookup("identity").StringValue())
		require.Equal(mt, bson.TypeNull, filter.Lookup("revokedAt").Type)
	})

	mt.Run("store errors are not auth failures", func(mt *mtest.T) {
		store := NewMongoStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 91, Name: "ShutdownInProgress", Message: "shutting down",
		}))
		_, err := store.Revoke(ctx, "s1")
		require.Error(mt, err)
		require.NotErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("rotation that loses the revoke fails closed", func(mt *mtest.T) {
		svc := newTestService(mt.T, NewMongoStore(mt.Coll))
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		exp := time.Now().UTC().Add(time.Hour)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, sessionDoc("s1", "u1", nil, exp)),
			// another request revoked it after the read
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		_, err := svc.Rotate(ctx, "s1", "u1")
		require.ErrorIs(mt, err, ErrAuthFailed)
	})
}
