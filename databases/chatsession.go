package databases

// go generate: mockery --name ChatSessionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/counsel-relay-api/models"
)

const chatSessionName = "chat_sessions"

// CounselorLoad is one row of the active-session load aggregation
type CounselorLoad struct {
	CounselorID string `bson:"_id"`
	Active      int    `bson:"active"`
}

// ChatSessionDatabase contains the methods to use with the chat session database
type ChatSessionDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ChatSession, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ChatSession, error)
	InsertOne(ctx context.Context, session models.ChatSession) (InsertOneResultHelper, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.ChatSession, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	LoadByCounselor(ctx context.Context, pipeline interface{}) ([]CounselorLoad, error)
}

type chatSessionDatabase struct {
	db DatabaseHelper
}

// NewChatSessionDatabase initializes a new instance of chat session database with the provided db connection
func NewChatSessionDatabase(db DatabaseHelper) ChatSessionDatabase {
	return &chatSessionDatabase{
		db: db,
	}
}

func (c *chatSessionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	err := c.db.Collection(chatSessionName).FindOne(ctx, filter, opts...).Decode(&session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (c *chatSessionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	cursor, err := c.db.Collection(chatSessionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	err = cursor.All(ctx, &sessions)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *chatSessionDatabase) InsertOne(ctx context.Context, session models.ChatSession) (InsertOneResultHelper, error) {
	return c.db.Collection(chatSessionName).InsertOne(ctx, session)
}

// FindOneAndUpdate returns mongo.ErrNoDocuments when the filter matched nothing
func (c *chatSessionDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	err := c.db.Collection(chatSessionName).FindOneAndUpdate(ctx, filter, update, opts...).Decode(&session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (c *chatSessionDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(chatSessionName).CountDocuments(ctx, filter)
}

func (c *chatSessionDatabase) LoadByCounselor(ctx context.Context, pipeline interface{}) ([]CounselorLoad, error) {
	var loads []CounselorLoad
	cursor, err := c.db.Collection(chatSessionName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	err = cursor.All(ctx, &loads)
	if err != nil {
		return nil, err
	}
	return loads, nil
}
