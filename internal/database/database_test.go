package database

import (
	"context"
	"testing"
	"time"

	"CatalogBot/internal/category"
	"CatalogBot/internal/database/models"
	"CatalogBot/internal/storage"
	"CatalogBot/internal/storage/storagetest"
	domain "CatalogBot/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

const testTTL = 50 * time.Millisecond

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	db, err := Open(context.Background(), sqlite.Open("file::memory:"), nil)
	require.NoError(t, err)

	// Every pooled connection to :memory: would get its own empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := New(db, testTTL, nil)
	require.NoError(t, s.AutoMigrate())
	t.Cleanup(func() { s.Close() })
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

func TestConnectionDSN(t *testing.T) {
	conn := Connection{Username: "bot", Password: "secret", Host: "db", Port: "3306", Database: "catalog"}
	assert.Equal(t, "bot:secret@tcp(db:3306)/catalog?charset=utf8mb4&parseTime=True&loc=Local", conn.DSN())
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Append(ctx, "old", domain.NewTextSegment("a")))
	require.NoError(t, s.Append(ctx, "old", domain.NewTextSegment("b")))
	time.Sleep(2 * testTTL)
	require.NoError(t, s.Append(ctx, "fresh", domain.NewTextSegment("c")))

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	var left int64
	require.NoError(t, s.db.Model(&models.ChainSegment{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestUpdateKeepsOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	first, err := s.Insert(ctx, domain.NewCategory(domain.RootID, "first", nil))
	require.NoError(t, err)
	second, err := s.Insert(ctx, domain.NewCategory(domain.RootID, "second", nil))
	require.NoError(t, err)

	_, err = s.UpdateField(ctx, first.ID, storage.FieldName, "renamed")
	require.NoError(t, err)

	children, err := s.Children(ctx, domain.RootID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, first.ID, children[0].ID)
	assert.Equal(t, second.ID, children[1].ID)
	assert.Equal(t, "renamed", children[0].Name)
}

func TestUpdateFieldWithoutExtra(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	c, err := s.Insert(ctx, domain.NewCategory(domain.RootID, "plain", nil))
	require.NoError(t, err)
	require.Nil(t, c.Extra)

	updated, err := s.UpdateField(ctx, c.ID, storage.FieldSubcategories, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, updated.Subcategories)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Extra)
	assert.Equal(t, []string{"x"}, got.Subcategories)

	_, err = s.UpdateField(ctx, c.ID, storage.FieldExtra, map[string]any{"icon": "cup"})
	require.NoError(t, err)
	_, err = s.UpdateField(ctx, c.ID, storage.FieldExtra, nil)
	require.NoError(t, err)

	got, err = s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Extra)
}

func TestRepositoryNestsCategories(t *testing.T) {
	ctx := context.Background()
	repo := category.NewRepository(newTestStorage(t), nil)

	parent, err := repo.AddCategory(ctx, domain.RootID, "parent", nil)
	require.NoError(t, err)
	child, err := repo.AddCategory(ctx, parent.ID, "child", []domain.Segment{domain.NewTextSegment("<b>hi</b>")})
	require.NoError(t, err)

	got, ok := repo.GetCategory(ctx, parent.ID)
	require.True(t, ok)
	assert.Equal(t, []string{child.ID}, got.Subcategories)

	subs := repo.Subcategories(ctx, parent.ID)
	require.Len(t, subs, 1)
	assert.Equal(t, []domain.Segment{domain.NewTextSegment("<b>hi</b>")}, subs[0].Description)
}

func TestLoggerRoutesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core), gormlogger.Warn)
	ctx := context.Background()

	l.Info(ctx, "ignored %d", 1)
	l.Warn(ctx, "careful %s", "now")
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 0 }, assert.AnError)
	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 3", 0 }, nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "careful now", entries[0].Message)
	assert.Equal(t, "query failed", entries[1].Message)
	assert.Equal(t, "SELECT 2", entries[1].ContextMap()["sql"])
	assert.Equal(t, "slow query", entries[2].Message)

	quiet := l.LogMode(gormlogger.Silent)
	quiet.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 4", 0 }, assert.AnError)
	assert.Len(t, logs.AllUntimed(), 3)
}
