// Package memory keeps categories and chain sessions in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	DefaultCacheSize       = 1000
	DefaultCleanupInterval = 5 * time.Minute
)

type Storage struct {
	mu sync.RWMutex

	categories map[string]*models.Category
	inserted   map[string]uint64
	seq        uint64

	// Capture sessions are bounded: the least recently touched ones are evicted first.
	chains *lru.Cache[string, *chainEntry]
	ttl    time.Duration

	logger *zap.Logger
	stop   chan struct{}
	once   sync.Once
}

type chainEntry struct {
	segments []timedSegment
}

type timedSegment struct {
	segment   models.Segment
	expiresAt time.Time
}

var (
	_ storage.CategoryStore = (*Storage)(nil)
	_ storage.ChainStore    = (*Storage)(nil)
)

// New creates the storage and starts the background sweep of expired chain segments.
func New(ttl time.Duration, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	chains, err := lru.New[string, *chainEntry](DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		categories: make(map[string]*models.Category),
		inserted:   make(map[string]uint64),
		chains:     chains,
		ttl:        ttl,
		logger:     logger,
		stop:       make(chan struct{}),
	}

	go s.startCleanupRoutine(DefaultCleanupInterval)

	return s, nil
}

func (s *Storage) startCleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-s.stop:
			return
		}
	}
}

// CleanupExpired drops expired segments and empty sessions.
func (s *Storage) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range s.chains.Keys() {
		entry, ok := s.chains.Peek(key)
		if !ok {
			continue
		}
		entry.segments = liveSegments(entry.segments, now)
		if len(entry.segments) == 0 {
			s.chains.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("expired chain sessions removed", zap.Int("count", removed))
	}
}

func (s *Storage) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Storage) Get(_ context.Context, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Storage) Children(_ context.Context, parentID string) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*models.Category
	for _, c := range s.categories {
		if c.ParentID == parentID {
			children = append(children, c.Clone())
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return s.inserted[children[i].ID] < s.inserted[children[j].ID]
	})
	return children, nil
}

func (s *Storage) Branch(ctx context.Context, rootID string) ([]*models.Category, error) {
	return storage.CollectBranch(ctx, s, rootID)
}

func (s *Storage) Insert(_ context.Context, c *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	stored.ID = uuid.New().String()
	if stored.ParentID == "" {
		stored.ParentID = models.RootID
	}
	if stored.Subcategories == nil {
		stored.Subcategories = []string{}
	}

	s.seq++
	s.categories[stored.ID] = stored
	s.inserted[stored.ID] = s.seq

	return stored.Clone(), nil
}

func (s *Storage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.categories, id)
	delete(s.inserted, id)
	return nil
}

func (s *Storage) UpdateField(_ context.Context, id string, field storage.Field, value any) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	updated := c.Clone()
	if err := storage.ApplyField(updated, field, value); err != nil {
		return nil, err
	}
	s.categories[id] = updated

	return updated.Clone(), nil
}

func (s *Storage) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chains.Remove(key)
	return nil
}

func (s *Storage) Append(_ context.Context, key string, segment models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.chains.Get(key)
	if !ok {
		entry = &chainEntry{}
	}
	entry.segments = append(entry.segments, timedSegment{
		segment:   segment.Clone(),
		expiresAt: time.Now().Add(s.ttl),
	})
	s.chains.Add(key, entry)
	return nil
}

func (s *Storage) Segments(_ context.Context, key string) ([]models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.chains.Get(key)
	if !ok {
		return []models.Segment{}, nil
	}

	entry.segments = liveSegments(entry.segments, time.Now())
	out := make([]models.Segment, len(entry.segments))
	for i, ts := range entry.segments {
		out[i] = ts.segment.Clone()
	}
	return out, nil
}

func liveSegments(segments []timedSegment, now time.Time) []timedSegment {
	live := segments[:0]
	for _, ts := range segments {
		if now.Before(ts.expiresAt) {
			live = append(live, ts)
		}
	}
	return live
}

// Stats reports sizes for periodic monitoring.
func (s *Storage) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"categories":     len(s.categories),
		"chain_sessions": s.chains.Len(),
		"cache_capacity": DefaultCacheSize,
		"chain_ttl":      s.ttl.String(),
	}
}
