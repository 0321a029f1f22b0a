package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/databases/mocks"
)

func TestCounterDatabase_NextSequence(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srCorrect := &mocks.SingleResultHelper{}
	srErr := &mocks.SingleResultHelper{}

	srCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		raw, _ := bson.Marshal(bson.M{"_id": "chat_sessions", "seq": int64(42)})
		_ = bson.Unmarshal(raw, args.Get(0))
	})
	srErr.On("Decode", mock.Anything).Return(errors.New("mocked-error"))

	inc := bson.M{"$inc": bson.M{"seq": 1}}
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": "chat_sessions"}, inc, mock.Anything).
		Return(srCorrect)
	collectionHelper.On("FindOneAndUpdate", context.Background(), bson.M{"_id": "broken"}, inc, mock.Anything).
		Return(srErr)
	dbHelper.On("Collection", "counters").Return(collectionHelper)

	counterDB := databases.NewCounterDatabase(dbHelper)

	seq, err := counterDB.NextSequence(context.Background(), "chat_sessions")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	seq, err = counterDB.NextSequence(context.Background(), "broken")
	assert.Zero(t, seq)
	assert.EqualError(t, err, "mocked-error")
}
