package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/databases/mocks"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func TestChatSessionDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", context.Background(), mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.ChatSession)
		*arg = []models.ChatSession{{ID: 1, UserID: "u1", CounselorID: "c1", Status: models.SessionActive}}
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	collectionHelper.On("Find", context.Background(), bson.M{"status": models.SessionActive}).
		Return(cursorHelper, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))

	dbHelper.On("Collection", "chat_sessions").Return(collectionHelper)

	sessionDB := databases.NewChatSessionDatabase(dbHelper)

	sessions, err := sessionDB.Find(context.Background(), bson.M{"status": models.SessionActive})
	assert.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, int64(1), sessions[0].ID)
	cursorHelper.AssertCalled(t, "Close", context.Background())

	sessions, err = sessionDB.Find(context.Background(), bson.M{"error": true})
	assert.Nil(t, sessions)
	assert.EqualError(t, err, "mocked-error")
}

func TestChatSessionDatabase_FindOneAndUpdate(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srNoDocs := &mocks.SingleResultHelper{}
	srCorrect := &mocks.SingleResultHelper{}

	srNoDocs.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	srCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.ChatSession)
		(*arg).ID = 7
		(*arg).Status = models.SessionFinished
	})

	update := bson.M{"$set": bson.M{"status": models.SessionFinished}}
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": int64(7)}, update).
		Return(srCorrect)
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": int64(8)}, update).
		Return(srNoDocs)

	dbHelper.On("Collection", "chat_sessions").Return(collectionHelper)

	sessionDB := databases.NewChatSessionDatabase(dbHelper)

	session, err := sessionDB.FindOneAndUpdate(context.Background(), bson.M{"_id": int64(7)}, update)
	assert.NoError(t, err)
	assert.Equal(t, models.SessionFinished, session.Status)

	session, err = sessionDB.FindOneAndUpdate(context.Background(), bson.M{"_id": int64(8)}, update)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestChatSessionDatabase_LoadByCounselor(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", context.Background(), mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]databases.CounselorLoad)
		*arg = []databases.CounselorLoad{{CounselorID: "c2", Active: 3}}
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	pipeline := bson.A{bson.M{"$match": bson.M{"status": models.SessionActive}}}
	collectionHelper.On("Aggregate", context.Background(), pipeline).Return(cursorHelper, nil)
	dbHelper.On("Collection", "chat_sessions").Return(collectionHelper)

	loads, err := databases.NewChatSessionDatabase(dbHelper).LoadByCounselor(context.Background(), pipeline)
	assert.NoError(t, err)
	assert.Equal(t, []databases.CounselorLoad{{CounselorID: "c2", Active: 3}}, loads)
}
