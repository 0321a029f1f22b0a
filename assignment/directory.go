package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// ErrNoCategories is returned when a counselor is registered without a
// category tag
var ErrNoCategories = errors.New("counselor needs at least one category")

// Directory holds counselor registrations. Register is an upsert; lookups of
// unknown ids return models.ErrNotFound.
type Directory interface {
	Register(ctx context.Context, id string, categories []string) (*models.Counselor, error)
	Deregister(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Counselor, error)
	List(ctx context.Context) ([]models.Counselor, error)
	// Eligible returns active counselors carrying category, ordered by id
	Eligible(ctx context.Context, category string) ([]models.Counselor, error)
	SetActive(ctx context.Context, id string, active bool) error
	// SetReplyTarget records the session a counselor is replying to; zero
	// clears it.
	SetReplyTarget(ctx context.Context, id string, sessionID int64) error
}

// MemoryDirectory is a Directory kept in process memory
type MemoryDirectory struct {
	mu         sync.RWMutex
	counselors map[string]*models.Counselor
}

// NewMemoryDirectory returns an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{counselors: make(map[string]*models.Counselor)}
}

func (d *MemoryDirectory) Register(_ context.Context, id string, categories []string) (*models.Counselor, error) {
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counselors[id]
	if !ok {
		c = &models.Counselor{ID: id, CreatedAt: time.Now().UTC()}
		d.counselors[id] = c
	}
	c.Categories = append([]string(nil), categories...)
	c.Active = true
	cp := *c
	return &cp, nil
}

func (d *MemoryDirectory) Deregister(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.counselors[id]; !ok {
		return models.ErrNotFound
	}
	delete(d.counselors, id)
	return nil
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (*models.Counselor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.counselors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]models.Counselor, error) {
	return d.filter(func(*models.Counselor) bool { return true }), nil
}

func (d *MemoryDirectory) Eligible(_ context.Context, category string) ([]models.Counselor, error) {
	return d.filter(func(c *models.Counselor) bool { return c.Active && c.HasCategory(category) }), nil
}

func (d *MemoryDirectory) SetActive(_ context.Context, id string, active bool) error {
	return d.update(id, func(c *models.Counselor) { c.Active = active })
}

func (d *MemoryDirectory) SetReplyTarget(_ context.Context, id string, sessionID int64) error {
	return d.update(id, func(c *models.Counselor) { c.ReplyTarget = sessionID })
}

func (d *MemoryDirectory) update(id string, fn func(*models.Counselor)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counselors[id]
	if !ok {
		return models.ErrNotFound
	}
	fn(c)
	return nil
}

func (d *MemoryDirectory) filter(keep func(*models.Counselor) bool) []models.Counselor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Counselor
	for _, c := range d.counselors {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MongoDirectory is a Directory over the counselors collection
type MongoDirectory struct {
	DB databases.CounselorDatabase
}

// NewMongoDirectory returns a directory backed by db
func NewMongoDirectory(db databases.CounselorDatabase) *MongoDirectory {
	return &MongoDirectory{DB: db}
}

var byID = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

func (d *MongoDirectory) Register(ctx context.Context, id string, categories []string) (*models.Counselor, error) {
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	update := bson.M{
		"$set":         bson.M{"categories": categories, "active": true},
		"$setOnInsert": bson.M{"createdAt": time.Now().UTC()},
	}
	_, err := d.DB.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("%w: register counselor: %v", models.ErrPersistence, err)
	}
	return d.Get(ctx, id)
}

func (d *MongoDirectory) Deregister(ctx context.Context, id string) error {
	n, err := d.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: deregister counselor: %v", models.ErrPersistence, err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (d *MongoDirectory) Get(ctx context.Context, id string) (*models.Counselor, error) {
	c, err := d.DB.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find counselor: %v", models.ErrPersistence, err)
	}
	return c, nil
}

func (d *MongoDirectory) List(ctx context.Context) ([]models.Counselor, error) {
	counselors, err := d.DB.Find(ctx, bson.M{}, byID)
	if err != nil {
		return nil, fmt.Errorf("%w: list counselors: %v", models.ErrPersistence, err)
	}
	return counselors, nil
}

func (d *MongoDirectory) Eligible(ctx context.Context, category string) ([]models.Counselor, error) {
	counselors, err := d.DB.Find(ctx, bson.M{"active": true, "categories": category}, byID)
	if err != nil {
		return nil, fmt.Errorf("%w: find eligible counselors: %v", models.ErrPersistence, err)
	}
	return counselors, nil
}

func (d *MongoDirectory) SetActive(ctx context.Context, id string, active bool) error {
	return d.update(ctx, id, bson.M{"$set": bson.M{"active": active}})
}

func (d *MongoDirectory) SetReplyTarget(ctx context.Context, id string, sessionID int64) error {
	update := bson.M{"$set": bson.M{"replyTarget": sessionID}}
	if sessionID == 0 {
		update = bson.M{"$unset": bson.M{"replyTarget": ""}}
	}
	return d.update(ctx, id, update)
}

func (d *MongoDirectory) update(ctx context.Context, id string, update bson.M) error {
	res, err := d.DB.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("%w: update counselor: %v", models.ErrPersistence, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
