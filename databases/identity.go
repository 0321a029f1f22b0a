package databases

// go generate: mockery --name IdentityDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/counsel-relay-api/models"
)

const identityName = "identities"

// IdentityDatabase contains the methods to use with the identity database
type IdentityDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.PartyIdentity, error)
	InsertOne(ctx context.Context, identity models.PartyIdentity) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

type identityDatabase struct {
	db DatabaseHelper
}

// NewIdentityDatabase initializes a new instance of identity database with the provided db connection
func NewIdentityDatabase(db DatabaseHelper) IdentityDatabase {
	return &identityDatabase{
		db: db,
	}
}

func (i *identityDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PartyIdentity, error) {
	identity := &models.PartyIdentity{}
	err := i.db.Collection(identityName).FindOne(ctx, filter).Decode(&identity)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (i *identityDatabase) InsertOne(ctx context.Context, identity models.PartyIdentity) (InsertOneResultHelper, error) {
	return i.db.Collection(identityName).InsertOne(ctx, identity)
}

func (i *identityDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := i.db.Collection(identityName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (i *identityDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return i.db.Collection(identityName).CountDocuments(ctx, filter)
}
