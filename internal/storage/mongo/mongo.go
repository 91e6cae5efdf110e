// Package mongo stores categories and chain sessions in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type Storage struct {
	categories *mongo.Collection
	chains     *mongo.Collection
	ttl        time.Duration
	logger     *zap.Logger
	seq        sequence
}

// sequence hands out strictly increasing values close to the wall clock, so
// appends within one clock tick keep their order.
type sequence struct {
	last atomic.Int64
}

func (q *sequence) next(now time.Time) int64 {
	for {
		last := q.last.Load()
		n := now.UnixNano()
		if n <= last {
			n = last + 1
		}
		if q.last.CompareAndSwap(last, n) {
			return n
		}
	}
}

type categoryDoc struct {
	ID            string                 `bson:"_id"`
	ParentID      string                 `bson:"parent_id"`
	Name          string                 `bson:"name"`
	Description   []models.SegmentRecord `bson:"description"`
	Subcategories []string               `bson:"subcategories"`
	Extra         any                    `bson:"extra"`
	CreatedAt     time.Time              `bson:"created_at"`
}

type chainDoc struct {
	Key      string               `bson:"key"`
	Seq      int64                `bson:"seq"`
	Segment  models.SegmentRecord `bson:"segment"`
	ExpireAt time.Time            `bson:"expire_at"`
}

var (
	_ storage.CategoryStore = (*Storage)(nil)
	_ storage.ChainStore    = (*Storage)(nil)
)

// New uses collection <prefix> for categories and <prefix>_chain for capture
// sessions, creating their indexes if needed.
func New(ctx context.Context, db *mongo.Database, prefix string, ttl time.Duration, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Storage{
		categories: db.Collection(prefix),
		chains:     db.Collection(prefix + "_chain"),
		ttl:        ttl,
		logger:     logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.categories.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parent_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create category indexes: %w", storage.Unavailable(err))
	}

	// The TTL monitor only runs about once a minute, so reads also filter on expire_at.
	_, err = s.chains.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "expire_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("create chain indexes: %w", storage.Unavailable(err))
	}

	s.logger.Debug("mongo indexes ready",
		zap.String("categories", s.categories.Name()),
		zap.String("chains", s.chains.Name()))
	return nil
}

func toDoc(c *models.Category) categoryDoc {
	doc := categoryDoc{
		ID:            c.ID,
		ParentID:      c.ParentID,
		Name:          c.Name,
		Description:   toRecords(c.Description),
		Subcategories: append([]string{}, c.Subcategories...),
		Extra:         c.Extra,
	}
	return doc
}

func toRecords(segments []models.Segment) []models.SegmentRecord {
	records := make([]models.SegmentRecord, len(segments))
	for i, seg := range segments {
		records[i] = seg.Record()
	}
	return records
}

func (d categoryDoc) category() (*models.Category, error) {
	c := &models.Category{
		ID:            d.ID,
		ParentID:      d.ParentID,
		Name:          d.Name,
		Subcategories: append([]string{}, d.Subcategories...),
		Extra:         d.Extra,
	}
	for _, rec := range d.Description {
		seg, err := rec.Segment()
		if err != nil {
			return nil, fmt.Errorf("decode description of %s: %w", d.ID, err)
		}
		c.Description = append(c.Description, seg)
	}
	return c, nil
}

func wrap(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return storage.Unavailable(err)
}

func (s *Storage) Get(ctx context.Context, id string) (*models.Category, error) {
	if id == models.RootID {
		return nil, storage.ErrNotFound
	}
	var doc categoryDoc
	if err := s.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, wrap(err)
	}
	return doc.category()
}

func (s *Storage) Children(ctx context.Context, parentID string) ([]*models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.categories.Find(ctx, bson.M{"parent_id": parentID}, opts)
	if err != nil {
		return nil, wrap(err)
	}

	var docs []categoryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap(err)
	}

	children := make([]*models.Category, 0, len(docs))
	for _, doc := range docs {
		c, err := doc.category()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

func (s *Storage) Branch(ctx context.Context, rootID string) ([]*models.Category, error) {
	return storage.CollectBranch(ctx, s, rootID)
}

func (s *Storage) Insert(ctx context.Context, c *models.Category) (*models.Category, error) {
	stored := c.Clone()
	stored.ID = bson.NewObjectID().Hex()
	if stored.ParentID == "" {
		stored.ParentID = models.RootID
	}
	if stored.Subcategories == nil {
		stored.Subcategories = []string{}
	}

	doc := toDoc(stored)
	doc.CreatedAt = time.Now()
	if _, err := s.categories.InsertOne(ctx, doc); err != nil {
		return nil, wrap(err)
	}
	return stored, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) UpdateField(ctx context.Context, id string, field storage.Field, value any) (*models.Category, error) {
	// Validate against a scratch record so type errors never reach the database.
	scratch := &models.Category{ID: id}
	if err := storage.ApplyField(scratch, field, value); err != nil {
		return nil, err
	}

	var stored any
	switch field {
	case storage.FieldName:
		stored = scratch.Name
	case storage.FieldDescription:
		stored = toRecords(scratch.Description)
	case storage.FieldParentID:
		stored = scratch.ParentID
	case storage.FieldSubcategories:
		stored = scratch.Subcategories
	case storage.FieldExtra:
		stored = scratch.Extra
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc categoryDoc
	err := s.categories.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{string(field): stored}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, wrap(err)
	}
	return doc.category()
}

func (s *Storage) Clear(ctx context.Context, key string) error {
	if _, err := s.chains.DeleteMany(ctx, bson.M{"key": key}); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Storage) Append(ctx context.Context, key string, segment models.Segment) error {
	now := time.Now()
	_, err := s.chains.InsertOne(ctx, chainDoc{
		Key:      key,
		Seq:      s.seq.next(now),
		Segment:  segment.Record(),
		ExpireAt: now.Add(s.ttl),
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Storage) Segments(ctx context.Context, key string) ([]models.Segment, error) {
	filter := bson.M{"key": key, "expire_at": bson.M{"$gt": time.Now()}}
	// _id breaks ties between writers on different hosts.
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.chains.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err)
	}

	var docs []chainDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap(err)
	}

	segments := make([]models.Segment, 0, len(docs))
	for _, doc := range docs {
		seg, err := doc.Segment.Segment()
		if err != nil {
			return nil, fmt.Errorf("decode segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
