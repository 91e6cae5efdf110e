package memory

import (
	"context"
	"testing"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/internal/storage/storagetest"
	"CatalogBot/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 50 * time.Millisecond

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(testTTL, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestCategoryStore(t *testing.T) {
	storagetest.RunCategoryStoreTests(t, func(t *testing.T) storage.CategoryStore {
		return newTestStorage(t)
	})
}

func TestChainStore(t *testing.T) {
	storagetest.RunChainStoreTests(t,
		func(t *testing.T) storage.ChainStore { return newTestStorage(t) },
		func(t *testing.T) { time.Sleep(2 * testTTL) },
	)
}

func TestReturnedCategoriesAreCopies(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c, err := s.Insert(ctx, models.NewCategory(models.RootID, "orig", nil))
	require.NoError(t, err)
	c.Name = "mutated"
	c.Subcategories = append(c.Subcategories, "ghost")

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "orig", got.Name)
	assert.Empty(t, got.Subcategories)
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "k", models.NewTextSegment("x")))
	assert.Equal(t, 1, s.Stats()["chain_sessions"])

	time.Sleep(2 * testTTL)
	s.CleanupExpired()
	assert.Equal(t, 0, s.Stats()["chain_sessions"])
}
