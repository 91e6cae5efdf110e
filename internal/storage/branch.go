package storage

import (
	"context"
	"fmt"

	"CatalogBot/pkg/models"
)

// MaxBranchDepth bounds how deep CollectBranch descends before giving up.
const MaxBranchDepth = 64

// ChildLister is the part of CategoryStore that branch traversal needs.
type ChildLister interface {
	Get(ctx context.Context, id string) (*models.Category, error)
	Children(ctx context.Context, parentID string) ([]*models.Category, error)
}

// CollectBranch walks rootID's subtree depth-first, preorder. A node reached
// twice or a path longer than MaxBranchDepth aborts with ErrInconsistentTree.
func CollectBranch(ctx context.Context, store ChildLister, rootID string) ([]*models.Category, error) {
	root, err := store.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{root.ID: true}
	branch := []*models.Category{root}

	var walk func(node *models.Category, depth int) error
	walk = func(node *models.Category, depth int) error {
		if depth > MaxBranchDepth {
			return fmt.Errorf("%w: branch under %s deeper than %d", ErrInconsistentTree, rootID, MaxBranchDepth)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		children, err := store.Children(ctx, node.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if visited[child.ID] {
				return fmt.Errorf("%w: category %s reached twice under %s", ErrInconsistentTree, child.ID, rootID)
			}
			visited[child.ID] = true
			branch = append(branch, child)
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, 1); err != nil {
		return nil, err
	}
	return branch, nil
}
