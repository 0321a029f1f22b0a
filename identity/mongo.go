package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// MongoStore is the identities collection. Atomic first contact relies on
// the unique indexes on realId and handle created by databases.EnsureIndexes.
type MongoStore struct {
	DB databases.IdentityDatabase
}

// NewMongoStore returns a store backed by db
func NewMongoStore(db databases.IdentityDatabase) *MongoStore {
	return &MongoStore{DB: db}
}

func (m *MongoStore) FindByRealID(ctx context.Context, realID string) (*models.PartyIdentity, error) {
	return m.findOne(ctx, bson.M{"realId": realID})
}

func (m *MongoStore) FindByHandle(ctx context.Context, handle string) (*models.PartyIdentity, error) {
	return m.findOne(ctx, bson.M{"handle": handle})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.PartyIdentity, error) {
	identity, err := m.DB.FindOne(ctx, filter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find identity: %v", models.ErrPersistence, err)
	}
	return identity, nil
}

func (m *MongoStore) Insert(ctx context.Context, identity models.PartyIdentity) error {
	_, err := m.DB.InsertOne(ctx, identity)
	if databases.IsDuplicateKey(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%w: insert identity: %v", models.ErrPersistence, err)
	}
	return nil
}

func (m *MongoStore) set(ctx context.Context, realID string, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	res, err := m.DB.UpdateOne(ctx, bson.M{"realId": realID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("%w: update identity: %v", models.ErrPersistence, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *MongoStore) SetBlocked(ctx context.Context, realID string, blocked bool) error {
	return m.set(ctx, realID, bson.M{"blocked": blocked})
}

func (m *MongoStore) SetState(ctx context.Context, realID string, state models.ConversationState) error {
	return m.set(ctx, realID, bson.M{"state": state})
}

func (m *MongoStore) SetLanguage(ctx context.Context, realID, language string) error {
	return m.set(ctx, realID, bson.M{"language": language})
}

func (m *MongoStore) CountBlocked(ctx context.Context) (int64, error) {
	n, err := m.DB.CountDocuments(ctx, bson.M{"blocked": true})
	if err != nil {
		return 0, fmt.Errorf("%w: count blocked: %v", models.ErrPersistence, err)
	}
	return n, nil
}
