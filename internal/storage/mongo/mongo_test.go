package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"CatalogBot/internal/storage"
	"CatalogBot/internal/storage/storagetest"
	"CatalogBot/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const testTTL = 200 * time.Millisecond

// These tests need a live server: MONGO_TEST_URI=mongodb://localhost:27017
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("catalog_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		db.Drop(ctx)
		client.Disconnect(ctx)
	})
	return db
}

func newTestStorage(t *testing.T) *Storage {
	s, err := New(context.Background(), testDatabase(t), "categories", testTTL, nil)
	require.NoError(t, err)
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

func TestSequenceIsStrictlyIncreasing(t *testing.T) {
	var q sequence
	now := time.Now()

	first := q.next(now)
	second := q.next(now)
	third := q.next(now.Add(-time.Second))
	assert.Equal(t, now.UnixNano(), first)
	assert.Greater(t, second, first)
	assert.Greater(t, third, second)

	later := now.Add(time.Hour)
	assert.Equal(t, later.UnixNano(), q.next(later))
}

func TestAppendKeepsOrderWithinOneTick(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	want := make([]models.Segment, 0, 50)
	for i := 0; i < 50; i++ {
		seg := models.NewTextSegment(fmt.Sprintf("part %d", i))
		require.NoError(t, s.Append(ctx, "burst", seg))
		want = append(want, seg)
	}

	got, err := s.Segments(ctx, "burst")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
