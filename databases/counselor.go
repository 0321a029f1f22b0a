package databases

// go generate: mockery --name CounselorDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/counsel-relay-api/models"
)

const counselorName = "counselors"

// CounselorDatabase contains the methods to use with the counselor database
type CounselorDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Counselor, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Counselor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
}

type counselorDatabase struct {
	db DatabaseHelper
}

// NewCounselorDatabase initializes a new instance of counselor database with the provided db connection
func NewCounselorDatabase(db DatabaseHelper) CounselorDatabase {
	return &counselorDatabase{
		db: db,
	}
}

func (c *counselorDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Counselor, error) {
	counselor := &models.Counselor{}
	err := c.db.Collection(counselorName).FindOne(ctx, filter).Decode(&counselor)
	if err != nil {
		return nil, err
	}
	return counselor, nil
}

func (c *counselorDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Counselor, error) {
	var counselors []models.Counselor
	cursor, err := c.db.Collection(counselorName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	err = cursor.All(ctx, &counselors)
	if err != nil {
		return nil, err
	}
	return counselors, nil
}

func (c *counselorDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(counselorName).UpdateOne(ctx, filter, update, opts...)
}

func (c *counselorDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(counselorName).DeleteOne(ctx, filter)
}
