// Package storagetest holds the behaviour every storage adapter must share.
// Adapter packages call these from their own tests.
package storagetest

import (
	"context"
	"testing"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(categories []*models.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.ID
	}
	return out
}

func insert(t *testing.T, s storage.CategoryStore, parentID, name string) *models.Category {
	t.Helper()
	c, err := s.Insert(context.Background(), models.NewCategory(parentID, name, nil))
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	return c
}

// RunCategoryStoreTests exercises a CategoryStore; newStore must return an empty store.
func RunCategoryStoreTests(t *testing.T, newStore func(t *testing.T) storage.CategoryStore) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		s := newStore(t)
		desc := []models.Segment{
			models.NewTextSegment("intro"),
			models.NewMediaGroupSegment(
				[]models.ContentType{models.ContentTypePhoto, models.ContentTypeVideo},
				[]string{"p1", "v1"}, "album"),
		}
		created, err := s.Insert(ctx, models.NewCategory(models.RootID, "Books", desc))
		require.NoError(t, err)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, models.RootID, got.ParentID)
		assert.Equal(t, "Books", got.Name)
		assert.Equal(t, desc, got.Description)
		assert.Empty(t, got.Subcategories)
	})

	t.Run("IdsAreUnique", func(t *testing.T) {
		s := newStore(t)
		a := insert(t, s, models.RootID, "a")
		b := insert(t, s, models.RootID, "b")
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("RootNeverResolves", func(t *testing.T) {
		s := newStore(t)
		insert(t, s, models.RootID, "a")
		_, err := s.Get(ctx, models.RootID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ChildrenInInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		parent := insert(t, s, models.RootID, "parent")
		first := insert(t, s, parent.ID, "first")
		second := insert(t, s, parent.ID, "second")
		third := insert(t, s, parent.ID, "third")
		insert(t, s, models.RootID, "elsewhere")

		children, err := s.Children(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID, second.ID, third.ID}, ids(children))

		top, err := s.Children(ctx, models.RootID)
		require.NoError(t, err)
		assert.Len(t, top, 2)
	})

	t.Run("UpdateFields", func(t *testing.T) {
		s := newStore(t)
		parent := insert(t, s, models.RootID, "parent")
		c := insert(t, s, models.RootID, "c")

		updated, err := s.UpdateField(ctx, c.ID, storage.FieldName, "renamed")
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Name)

		desc := []models.Segment{models.NewMediaSegment(models.ContentTypeVoice, "v", "")}
		_, err = s.UpdateField(ctx, c.ID, storage.FieldDescription, desc)
		require.NoError(t, err)

		_, err = s.UpdateField(ctx, parent.ID, storage.FieldSubcategories, []string{c.ID})
		require.NoError(t, err)

		_, err = s.UpdateField(ctx, c.ID, storage.FieldParentID, parent.ID)
		require.NoError(t, err)

		_, err = s.UpdateField(ctx, c.ID, storage.FieldExtra, "note")
		require.NoError(t, err)

		got, err := s.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, desc, got.Description)
		assert.Equal(t, parent.ID, got.ParentID)
		assert.Equal(t, "note", got.Extra)

		gotParent, err := s.Get(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID}, gotParent.Subcategories)

		children, err := s.Children(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID}, ids(children))
		top, err := s.Children(ctx, models.RootID)
		require.NoError(t, err)
		assert.Equal(t, []string{parent.ID}, ids(top))
	})

	t.Run("UpdateRejectsBadValues", func(t *testing.T) {
		s := newStore(t)
		c := insert(t, s, models.RootID, "c")

		_, err := s.UpdateField(ctx, c.ID, storage.FieldName, 7)
		assert.ErrorIs(t, err, storage.ErrInvalidField)
		_, err = s.UpdateField(ctx, "missing", storage.FieldName, "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteDoesNotCascade", func(t *testing.T) {
		s := newStore(t)
		parent := insert(t, s, models.RootID, "parent")
		child := insert(t, s, parent.ID, "child")

		require.NoError(t, s.Delete(ctx, parent.ID))

		_, err := s.Get(ctx, parent.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.Get(ctx, child.ID)
		assert.NoError(t, err)
	})

	t.Run("Branch", func(t *testing.T) {
		s := newStore(t)
		x := insert(t, s, models.RootID, "x")
		a := insert(t, s, x.ID, "a")
		b := insert(t, s, x.ID, "b")
		c := insert(t, s, a.ID, "c")
		insert(t, s, models.RootID, "y")

		branch, err := s.Branch(ctx, x.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{x.ID, a.ID, c.ID, b.ID}, ids(branch))
	})
}

// RunChainStoreTests exercises a ChainStore. elapse must move the store past its TTL.
func RunChainStoreTests(t *testing.T, newStore func(t *testing.T) storage.ChainStore, elapse func(t *testing.T)) {
	ctx := context.Background()

	t.Run("AppendPreservesOrder", func(t *testing.T) {
		s := newStore(t)
		segs := []models.Segment{
			models.NewTextSegment("one"),
			models.NewMediaSegment(models.ContentTypePhoto, "p", "two"),
			models.NewMediaGroupSegment(
				[]models.ContentType{models.ContentTypePhoto, models.ContentTypeDocument},
				[]string{"p1", "d1"}, ""),
		}
		for _, seg := range segs {
			require.NoError(t, s.Append(ctx, "user:1", seg))
		}

		got, err := s.Segments(ctx, "user:1")
		require.NoError(t, err)
		assert.Equal(t, segs, got)
	})

	t.Run("KeysAreIsolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "a", models.NewTextSegment("for a")))
		require.NoError(t, s.Append(ctx, "b", models.NewTextSegment("for b")))

		got, err := s.Segments(ctx, "a")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "for a", got[0].Text)
	})

	t.Run("ClearEmptiesSession", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "k", models.NewTextSegment("old")))
		require.NoError(t, s.Clear(ctx, "k"))

		got, err := s.Segments(ctx, "k")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("UnknownKeyIsEmpty", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Segments(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SegmentsExpire", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, "k", models.NewTextSegment("soon gone")))
		elapse(t)

		got, err := s.Segments(ctx, "k")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
