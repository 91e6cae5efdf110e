package metrics

import (
	"context"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"
)

type categoryStore struct {
	inner   storage.CategoryStore
	metrics *Collector
	backend string
}

// NewCategoryStore wraps inner so every call is counted and timed under backend.
func NewCategoryStore(inner storage.CategoryStore, c *Collector, backend string) storage.CategoryStore {
	return &categoryStore{inner: inner, metrics: c, backend: backend}
}

func (s *categoryStore) observe(op string, started time.Time, err error) {
	s.metrics.Observe(op, s.backend, started, err)
}

func (s *categoryStore) Get(ctx context.Context, id string) (*models.Category, error) {
	started := time.Now()
	c, err := s.inner.Get(ctx, id)
	s.observe("get", started, err)
	return c, err
}

func (s *categoryStore) Children(ctx context.Context, parentID string) ([]*models.Category, error) {
	started := time.Now()
	children, err := s.inner.Children(ctx, parentID)
	s.observe("children", started, err)
	return children, err
}

func (s *categoryStore) Branch(ctx context.Context, rootID string) ([]*models.Category, error) {
	started := time.Now()
	branch, err := s.inner.Branch(ctx, rootID)
	s.observe("branch", started, err)
	return branch, err
}

func (s *categoryStore) Insert(ctx context.Context, c *models.Category) (*models.Category, error) {
	started := time.Now()
	created, err := s.inner.Insert(ctx, c)
	s.observe("insert", started, err)
	if err == nil {
		s.metrics.CategoriesCreated.Inc()
	}
	return created, err
}

func (s *categoryStore) Delete(ctx context.Context, id string) error {
	started := time.Now()
	err := s.inner.Delete(ctx, id)
	s.observe("delete", started, err)
	if err == nil {
		s.metrics.CategoriesDeleted.Inc()
	}
	return err
}

func (s *categoryStore) UpdateField(ctx context.Context, id string, field storage.Field, value any) (*models.Category, error) {
	started := time.Now()
	c, err := s.inner.UpdateField(ctx, id, field, value)
	s.observe("update_"+string(field), started, err)
	return c, err
}

type chainStore struct {
	inner   storage.ChainStore
	metrics *Collector
	backend string
}

func NewChainStore(inner storage.ChainStore, c *Collector, backend string) storage.ChainStore {
	return &chainStore{inner: inner, metrics: c, backend: backend}
}

func (s *chainStore) Clear(ctx context.Context, key string) error {
	started := time.Now()
	err := s.inner.Clear(ctx, key)
	s.metrics.Observe("chain_clear", s.backend, started, err)
	return err
}

func (s *chainStore) Append(ctx context.Context, key string, segment models.Segment) error {
	started := time.Now()
	err := s.inner.Append(ctx, key, segment)
	s.metrics.Observe("chain_append", s.backend, started, err)
	if err == nil {
		s.metrics.SegmentsCaptured.Inc()
	}
	return err
}

func (s *chainStore) Segments(ctx context.Context, key string) ([]models.Segment, error) {
	started := time.Now()
	segments, err := s.inner.Segments(ctx, key)
	s.metrics.Observe("chain_segments", s.backend, started, err)
	return segments, err
}
