package databases_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/counsel-relay-api/databases"
)

func TestPageOptions(t *testing.T) {
	opts := databases.PageOptions(100, 2, "finishedAt", true)
	assert.Equal(t, int64(100), *opts.Limit)
	assert.Equal(t, int64(100), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "finishedAt", Value: -1}}, opts.Sort)

	opts = databases.PageOptions(0, 0, "_id", false)
	assert.Equal(t, int64(100), *opts.Limit)
	assert.Equal(t, int64(0), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, opts.Sort)
}
