package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/databases/mocks"
)

func TestSchedulerLockDatabase_TryAcquireLock(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		acquired bool
		wantErr  bool
	}{
		{name: "free lease", acquired: true},
		{name: "held by another instance", err: mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}},
		{name: "database failure", err: errors.New("mocked-error"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbHelper := &mocks.DatabaseHelper{}
			collectionHelper := &mocks.CollectionHelper{}
			collectionHelper.On("UpdateOne", context.Background(), mock.Anything, mock.Anything, mock.Anything).
				Return(&mongo.UpdateResult{}, tt.err)
			dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

			lockDB := databases.NewSchedulerLockDatabase(dbHelper)
			acquired, err := lockDB.TryAcquireLock(context.Background(), "export_job", "instance-a", time.Minute)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.acquired, acquired)
		})
	}
}

func TestSchedulerLockDatabase_ReleaseLock(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": "export_job", "instanceId": "instance-a"}).
		Return(int64(1), nil)
	dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

	err := databases.NewSchedulerLockDatabase(dbHelper).ReleaseLock(context.Background(), "export_job", "instance-a")
	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}
