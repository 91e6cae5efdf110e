// Package redis stores categories and chain sessions in Redis.
//
// Layout under the configured prefix:
//
//	<prefix>:category:<id>      JSON category record
//	<prefix>:children:<parent>  list of child ids in insertion order
//	<prefix>:chain:<key>        list of JSON segments, expiring ttl after the last append
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Storage struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var (
	_ storage.CategoryStore = (*Storage)(nil)
	_ storage.ChainStore    = (*Storage)(nil)
)

func New(client goredis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (s *Storage) categoryKey(id string) string {
	return fmt.Sprintf("%s:category:%s", s.prefix, id)
}

func (s *Storage) childrenKey(parentID string) string {
	return fmt.Sprintf("%s:children:%s", s.prefix, parentID)
}

func (s *Storage) chainKey(key string) string {
	return fmt.Sprintf("%s:chain:%s", s.prefix, key)
}

func (s *Storage) Get(ctx context.Context, id string) (*models.Category, error) {
	if id == models.RootID {
		return nil, storage.ErrNotFound
	}
	data, err := s.client.Get(ctx, s.categoryKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return decodeCategory(data)
}

func (s *Storage) Children(ctx context.Context, parentID string) ([]*models.Category, error) {
	ids, err := s.client.LRange(ctx, s.childrenKey(parentID), 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	if len(ids) == 0 {
		return []*models.Category{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.categoryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	children := make([]*models.Category, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.logger.Warn("children index points at missing category",
				zap.String("parent_id", parentID), zap.String("id", ids[i]))
			continue
		}
		c, err := decodeCategory([]byte(raw))
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
	stored.ID = uuid.New().String()
	if stored.ParentID == "" {
		stored.ParentID = models.RootID
	}
	if stored.Subcategories == nil {
		stored.Subcategories = []string{}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode category: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.categoryKey(stored.ID), data, 0)
		pipe.RPush(ctx, s.childrenKey(stored.ParentID), stored.ID)
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return stored, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.categoryKey(id))
		pipe.LRem(ctx, s.childrenKey(c.ParentID), 0, id)
		return nil
	})
	return storage.Unavailable(err)
}

func (s *Storage) UpdateField(ctx context.Context, id string, field storage.Field, value any) (*models.Category, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldParent := c.ParentID

	if err := storage.ApplyField(c, field, value); err != nil {
		return nil, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode category: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.categoryKey(id), data, 0)
		if c.ParentID != oldParent {
			pipe.LRem(ctx, s.childrenKey(oldParent), 0, id)
			pipe.RPush(ctx, s.childrenKey(c.ParentID), id)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return c, nil
}

func (s *Storage) Clear(ctx context.Context, key string) error {
	return storage.Unavailable(s.client.Del(ctx, s.chainKey(key)).Err())
}

func (s *Storage) Append(ctx context.Context, key string, segment models.Segment) error {
	data, err := json.Marshal(segment)
	if err != nil {
		return fmt.Errorf("encode segment: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, s.chainKey(key), data)
		pipe.Expire(ctx, s.chainKey(key), s.ttl)
		return nil
	})
	return storage.Unavailable(err)
}

func (s *Storage) Segments(ctx context.Context, key string) ([]models.Segment, error) {
	raw, err := s.client.LRange(ctx, s.chainKey(key), 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	segments := make([]models.Segment, 0, len(raw))
	for _, item := range raw {
		var seg models.Segment
		if err := json.Unmarshal([]byte(item), &seg); err != nil {
			return nil, fmt.Errorf("decode segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func decodeCategory(data []byte) (*models.Category, error) {
	var c models.Category
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode category: %w", err)
	}
	if c.Subcategories == nil {
		c.Subcategories = []string{}
	}
	return &c, nil
}
