package assignment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/counsel-relay-api/assignment"
	"github.com/linesmerrill/counsel-relay-api/databases/mocks"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func TestMemoryDirectory(t *testing.T) {
	dir := assignment.NewMemoryDirectory()
	ctx := context.Background()

	_, err := dir.Register(ctx, "c1", nil)
	assert.ErrorIs(t, err, assignment.ErrNoCategories)

	c, err := dir.Register(ctx, "c1", []string{"stress", "family"})
	require.NoError(t, err)
	assert.True(t, c.Active)

	require.NoError(t, dir.SetReplyTarget(ctx, "c1", 12))
	got, err := dir.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ReplyTarget)

	// re-registering replaces categories and keeps the record
	_, err = dir.Register(ctx, "c1", []string{"academic"})
	require.NoError(t, err)
	eligible, err := dir.Eligible(ctx, "stress")
	require.NoError(t, err)
	assert.Empty(t, eligible)

	require.NoError(t, dir.Deregister(ctx, "c1"))
	assert.ErrorIs(t, dir.Deregister(ctx, "c1"), models.ErrNotFound)
	_, err = dir.Get(ctx, "c1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, dir.SetActive(ctx, "c1", true), models.ErrNotFound)
}

func TestMongoDirectory_Register(t *testing.T) {
	db := &mocks.CounselorDatabase{}
	ctx := context.Background()

	db.On("UpdateOne", ctx, bson.M{"_id": "c1"}, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	db.On("FindOne", ctx, bson.M{"_id": "c1"}).Return(&models.Counselor{ID: "c1", Categories: []string{"stress"}, Active: true}, nil)

	dir := assignment.NewMongoDirectory(db)
	c, err := dir.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	assert.Equal(t, []string{"stress"}, c.Categories)
}

func TestMongoDirectory_Eligible(t *testing.T) {
	db := &mocks.CounselorDatabase{}
	ctx := context.Background()

	db.On("Find", ctx, bson.M{"active": true, "categories": "stress"}, mock.Anything).
		Return([]models.Counselor{{ID: "c1"}, {ID: "c2"}}, nil)
	db.On("Find", ctx, bson.M{"active": true, "categories": "broken"}, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	dir := assignment.NewMongoDirectory(db)
	eligible, err := dir.Eligible(ctx, "stress")
	require.NoError(t, err)
	assert.Len(t, eligible, 2)

	_, err = dir.Eligible(ctx, "broken")
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestMongoDirectory_DeregisterAndReplyTarget(t *testing.T) {
	db := &mocks.CounselorDatabase{}
	ctx := context.Background()

	db.On("DeleteOne", ctx, bson.M{"_id": "c1"}).Return(int64(1), nil)
	db.On("DeleteOne", ctx, bson.M{"_id": "nobody"}).Return(int64(0), nil)
	db.On("UpdateOne", ctx, bson.M{"_id": "c1"}, bson.M{"$unset": bson.M{"replyTarget": ""}}).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	db.On("UpdateOne", ctx, bson.M{"_id": "c1"}, bson.M{"$set": bson.M{"replyTarget": int64(5)}}).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)

	dir := assignment.NewMongoDirectory(db)
	assert.NoError(t, dir.Deregister(ctx, "c1"))
	assert.ErrorIs(t, dir.Deregister(ctx, "nobody"), models.ErrNotFound)
	assert.NoError(t, dir.SetReplyTarget(ctx, "c1", 0))
	assert.NoError(t, dir.SetReplyTarget(ctx, "c1", 5))
}
