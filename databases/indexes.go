package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// EnsureIndexes creates the indexes the stores rely on for atomicity. The
// partial unique index on chat_sessions.userId is what keeps a user at one
// active session when two creates race.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	indexes := map[string][]mongo.IndexModel{
		identityName: {
			{Keys: bson.D{{Key: "realId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("realId_unique")},
			{Keys: bson.D{{Key: "handle", Value: 1}}, Options: options.Index().SetUnique(true).SetName("handle_unique")},
		},
		chatSessionName: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("one_active_per_user").
					SetPartialFilterExpression(bson.M{"status": models.SessionActive}),
			},
			{Keys: bson.D{{Key: "counselorId", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("counselor_status")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}}, Options: options.Index().SetName("status_category")},
		},
		messageName: {
			{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true).SetName("session_seq")},
		},
	}
	for _, name := range []string{identityName, chatSessionName, messageName} {
		if err := db.Collection(name).CreateIndexes(ctx, indexes[name]); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
