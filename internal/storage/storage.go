// Package storage defines the contract every category/chain backend implements.
//
// Adapters only ever touch one record per mutating call. Linking a child into
// its parent, cascading deletes and reparenting are the category repository's job.
package storage

import (
	"context"

	"CatalogBot/pkg/models"
)

type CategoryStore interface {
	// Get returns ErrNotFound for unknown ids and for models.RootID.
	Get(ctx context.Context, id string) (*models.Category, error)
	// Children lists categories whose parent_id is parentID, in insertion order.
	Children(ctx context.Context, parentID string) ([]*models.Category, error)
	// Branch returns rootID and all of its descendants, depth-first preorder.
	Branch(ctx context.Context, rootID string) ([]*models.Category, error)
	// Insert stores a copy of c under a freshly assigned id and returns it.
	Insert(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, id string) error
	UpdateField(ctx context.Context, id string, field Field, value any) (*models.Category, error)
}

// ChainStore buffers capture sessions. Segments expire on their own after the
// TTL the adapter was built with.
type ChainStore interface {
	Clear(ctx context.Context, key string) error
	Append(ctx context.Context, key string, segment models.Segment) error
	Segments(ctx context.Context, key string) ([]models.Segment, error)
}
