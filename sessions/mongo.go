package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/models"
)

const sessionCounter = "chat_sessions"

// MongoStore keeps sessions in chat_sessions and records in messages. The
// one-active-session rule is the partial unique index on userId created by
// databases.EnsureIndexes; finish and append are conditional updates on
// status.
type MongoStore struct {
	Sessions databases.ChatSessionDatabase
	Messages databases.MessageDatabase
	Counters databases.CounterDatabase

	// Now is the clock used for timestamps
	Now func() time.Time
}

// NewMongoStore returns a store over the given collections
func NewMongoStore(sessions databases.ChatSessionDatabase, messages databases.MessageDatabase, counters databases.CounterDatabase) *MongoStore {
	return &MongoStore{
		Sessions: sessions,
		Messages: messages,
		Counters: counters,
		Now:      time.Now,
	}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrPersistence, op, err)
}

func (m *MongoStore) Create(ctx context.Context, userID, counselorID, category string) (*models.ChatSession, error) {
	id, err := m.Counters.NextSequence(ctx, sessionCounter)
	if err != nil {
		return nil, persistence("allocate session id", err)
	}
	s := models.ChatSession{
		ID:          id,
		UserID:      userID,
		CounselorID: counselorID,
		Category:    category,
		Status:      models.SessionActive,
		CreatedAt:   m.Now().UTC(),
	}
	_, err = m.Sessions.InsertOne(ctx, s)
	if databases.IsDuplicateKey(err) {
		return nil, models.ErrDuplicateActiveSession
	}
	if err != nil {
		return nil, persistence("insert session", err)
	}
	return &s, nil
}

func (m *MongoStore) Get(ctx context.Context, id int64) (*models.ChatSession, error) {
	s, err := m.Sessions.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, persistence("find session", err)
	}
	return s, nil
}

func (m *MongoStore) GetActiveForUser(ctx context.Context, userID string) (*models.ChatSession, error) {
	s, err := m.Sessions.FindOne(ctx, bson.M{"userId": userID, "status": models.SessionActive})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, persistence("find active session", err)
	}
	return s, nil
}

func (m *MongoStore) GetActiveForCounselor(ctx context.Context, counselorID string) ([]models.ChatSession, error) {
	filter := bson.M{"counselorId": counselorID, "status": models.SessionActive}
	sessions, err := m.Sessions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, persistence("find counselor sessions", err)
	}
	return sessions, nil
}

// Finish only matches an active session, so of two concurrent finishers
// exactly one gets the document back.
func (m *MongoStore) Finish(ctx context.Context, id int64) (*models.ChatSession, error) {
	update := bson.M{"$set": bson.M{"status": models.SessionFinished, "finishedAt": m.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	s, err := m.Sessions.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": models.SessionActive}, update, opts)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence("finish session", err)
	}
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, models.ErrAlreadyFinished
}

// AppendMessage allocates the sequence number with the same conditional
// update that checks the session is still active.
func (m *MongoStore) AppendMessage(ctx context.Context, sessionID int64, senderID string, content models.Content) (*models.Message, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	filter := bson.M{
		"_id":    sessionID,
		"status": models.SessionActive,
		"$or":    bson.A{bson.M{"userId": senderID}, bson.M{"counselorId": senderID}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	s, err := m.Sessions.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"messageCount": 1}}, opts)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, getErr := m.Get(ctx, sessionID)
		if getErr != nil {
			return nil, getErr
		}
		if !existing.IsActive() {
			return nil, models.ErrSessionNotActive
		}
		return nil, fmt.Errorf("sender %s is not part of session %d", senderID, sessionID)
	}
	if err != nil {
		return nil, persistence("allocate message seq", err)
	}

	msg := content.ToMessage(sessionID, senderID, m.Now().UTC())
	msg.Seq = s.MessageCount
	res, err := m.Messages.InsertOne(ctx, msg)
	if err != nil {
		zap.S().Errorw("failed to insert message", "sessionId", sessionID, "seq", msg.Seq, "error", err)
		return nil, persistence("insert message", err)
	}
	if res != nil {
		if id, ok := res.Decode().(primitive.ObjectID); ok {
			msg.ID = id
		}
	}
	return &msg, nil
}

func (m *MongoStore) ListMessages(ctx context.Context, sessionID int64) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "sentAt", Value: 1}})
	messages, err := m.Messages.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, persistence("list messages", err)
	}
	return messages, nil
}

func (m *MongoStore) CountActiveByCounselor(ctx context.Context, category string) (map[string]int, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"status": models.SessionActive, "category": category}},
		bson.M{"$group": bson.M{"_id": "$counselorId", "active": bson.M{"$sum": 1}}},
	}
	loads, err := m.Sessions.LoadByCounselor(ctx, pipeline)
	if err != nil {
		return nil, persistence("count active sessions", err)
	}
	counts := make(map[string]int, len(loads))
	for _, l := range loads {
		counts[l.CounselorID] = l.Active
	}
	return counts, nil
}

func (m *MongoStore) ListActive(ctx context.Context) ([]models.ChatSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	sessions, err := m.Sessions.Find(ctx, bson.M{"status": models.SessionActive}, opts)
	if err != nil {
		return nil, persistence("list active sessions", err)
	}
	return sessions, nil
}

func (m *MongoStore) ListFinished(ctx context.Context, limit int) ([]models.ChatSession, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	opts := databases.PageOptions(limit, 1, "finishedAt", true)
	sessions, err := m.Sessions.Find(ctx, bson.M{"status": models.SessionFinished}, opts)
	if err != nil {
		return nil, persistence("list finished sessions", err)
	}
	return sessions, nil
}

func (m *MongoStore) CountByStatus(ctx context.Context, status models.SessionStatus) (int64, error) {
	n, err := m.Sessions.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, persistence("count sessions", err)
	}
	return n, nil
}
