// Package category maintains the catalog tree on top of a storage.CategoryStore.
//
// parent_id is the authoritative link between a category and its parent. A
// parent's subcategories list is only an ordering index: it is kept in step
// by link and unlink below, and readers tolerate it being stale.
package category

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrParentMissing = errors.New("parent category does not exist")
	ErrCycle         = errors.New("category cannot be placed inside its own branch")
	ErrTopLevelOrder = errors.New("top-level categories keep insertion order")
)

type Repository struct {
	store    storage.CategoryStore
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRepository(store storage.CategoryStore, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type nameInput struct {
	Name string `validate:"required,max=255"`
}

func (r *Repository) checkName(name string) error {
	if err := r.validate.Struct(nameInput{Name: name}); err != nil {
		return fmt.Errorf("invalid category name: %w", err)
	}
	return nil
}

func checkDescription(description []models.Segment) error {
	for i, seg := range description {
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("description segment %d: %w", i, err)
		}
	}
	return nil
}

func normalizeParent(parentID string) string {
	if parentID == "" {
		return models.RootID
	}
	return parentID
}

// AddCategory creates a category under parentID and links it into the parent's index.
func (r *Repository) AddCategory(ctx context.Context, parentID, name string, description []models.Segment) (*models.Category, error) {
	parentID = normalizeParent(parentID)
	if err := r.checkName(name); err != nil {
		return nil, err
	}
	if err := checkDescription(description); err != nil {
		return nil, err
	}

	if parentID != models.RootID {
		if _, err := r.store.Get(ctx, parentID); err != nil {
			if storage.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrParentMissing, parentID)
			}
			return nil, fmt.Errorf("lookup parent %s: %w", parentID, err)
		}
	}

	created, err := r.store.Insert(ctx, models.NewCategory(parentID, name, description))
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	if parentID != models.RootID {
		if err := r.link(ctx, parentID, created.ID); err != nil {
			// Roll back so a failed add leaves nothing behind.
			if delErr := r.store.Delete(ctx, created.ID); delErr != nil {
				r.logger.Error("failed to roll back category insert",
					zap.String("id", created.ID), zap.Error(delErr))
			}
			return nil, fmt.Errorf("link %s into %s: %w", created.ID, parentID, err)
		}
	}

	r.logger.Info("category added",
		zap.String("id", created.ID),
		zap.String("parent_id", parentID),
		zap.String("name", name))
	return created, nil
}

// GetCategory reports false both for missing ids and for storage failures.
func (r *Repository) GetCategory(ctx context.Context, id string) (*models.Category, bool) {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		if !storage.IsNotFound(err) {
			r.logger.Error("failed to get category", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	return c, true
}

// Subcategories returns the children of parentID, ordered by the parent's
// index with any unindexed children appended in insertion order.
func (r *Repository) Subcategories(ctx context.Context, parentID string) []*models.Category {
	parentID = normalizeParent(parentID)
	children, err := r.store.Children(ctx, parentID)
	if err != nil {
		r.logger.Error("failed to list subcategories", zap.String("parent_id", parentID), zap.Error(err))
		return []*models.Category{}
	}
	if parentID == models.RootID || len(children) < 2 {
		return children
	}

	parent, err := r.store.Get(ctx, parentID)
	if err != nil {
		if !storage.IsNotFound(err) {
			r.logger.Warn("failed to read subcategory index", zap.String("parent_id", parentID), zap.Error(err))
		}
		return children
	}
	return orderChildren(parent.Subcategories, children)
}

func (r *Repository) MainCategories(ctx context.Context) []*models.Category {
	return r.Subcategories(ctx, models.RootID)
}

func orderChildren(index []string, children []*models.Category) []*models.Category {
	byID := make(map[string]*models.Category, len(children))
	for _, c := range children {
		byID[c.ID] = c
	}

	ordered := make([]*models.Category, 0, len(children))
	placed := make(map[string]bool, len(children))
	for _, id := range index {
		if c, ok := byID[id]; ok && !placed[id] {
			ordered = append(ordered, c)
			placed[id] = true
		}
	}
	for _, c := range children {
		if !placed[c.ID] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func childIDs(children []*models.Category) []string {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids
}

func (r *Repository) Rename(ctx context.Context, id, name string) (*models.Category, error) {
	if err := r.checkName(name); err != nil {
		return nil, err
	}
	c, err := r.store.UpdateField(ctx, id, storage.FieldName, name)
	if err != nil {
		return nil, fmt.Errorf("rename %s: %w", id, err)
	}
	return c, nil
}

func (r *Repository) SetDescription(ctx context.Context, id string, description []models.Segment) (*models.Category, error) {
	if err := checkDescription(description); err != nil {
		return nil, err
	}
	if description == nil {
		description = []models.Segment{}
	}
	c, err := r.store.UpdateField(ctx, id, storage.FieldDescription, description)
	if err != nil {
		return nil, fmt.Errorf("set description of %s: %w", id, err)
	}
	return c, nil
}

func (r *Repository) SetExtra(ctx context.Context, id string, extra any) (*models.Category, error) {
	c, err := r.store.UpdateField(ctx, id, storage.FieldExtra, extra)
	if err != nil {
		return nil, fmt.Errorf("set extra of %s: %w", id, err)
	}
	return c, nil
}

// Move reparents id under newParentID, refusing to create a cycle.
func (r *Repository) Move(ctx context.Context, id, newParentID string) (*models.Category, error) {
	newParentID = normalizeParent(newParentID)
	if newParentID == id {
		return nil, ErrCycle
	}

	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}
	if c.ParentID == newParentID {
		return c, nil
	}

	if newParentID != models.RootID {
		if err := r.checkNotAncestor(ctx, id, newParentID); err != nil {
			return nil, err
		}
	}

	oldParentID := c.ParentID
	moved, err := r.store.UpdateField(ctx, id, storage.FieldParentID, newParentID)
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}
	if newParentID != models.RootID {
		if err := r.link(ctx, newParentID, id); err != nil {
			return nil, fmt.Errorf("link %s into %s: %w", id, newParentID, err)
		}
	}
	if oldParentID != models.RootID {
		if err := r.unlink(ctx, oldParentID, id); err != nil {
			return nil, fmt.Errorf("unlink %s from %s: %w", id, oldParentID, err)
		}
	}

	r.logger.Info("category moved",
		zap.String("id", id),
		zap.String("from", oldParentID),
		zap.String("to", newParentID))
	return moved, nil
}

// checkNotAncestor walks up from target and fails if it meets id.
func (r *Repository) checkNotAncestor(ctx context.Context, id, target string) error {
	current := target
	for depth := 0; current != models.RootID; depth++ {
		if depth > storage.MaxBranchDepth {
			return fmt.Errorf("%w: ancestry of %s deeper than %d", storage.ErrInconsistentTree, target, storage.MaxBranchDepth)
		}
		if current == id {
			return fmt.Errorf("%w: %s is inside the branch of %s", ErrCycle, target, id)
		}
		node, err := r.store.Get(ctx, current)
		if err != nil {
			if storage.IsNotFound(err) {
				if current == target {
					return fmt.Errorf("%w: %s", ErrParentMissing, target)
				}
				return fmt.Errorf("%w: ancestor %s of %s is missing", storage.ErrInconsistentTree, current, target)
			}
			return err
		}
		current = node.ParentID
	}
	return nil
}

// Shift moves id by offset positions among its siblings.
func (r *Repository) Shift(ctx context.Context, id string, offset int) error {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("shift %s: %w", id, err)
	}
	if c.IsTopLevel() {
		return ErrTopLevelOrder
	}

	parent, err := r.store.Get(ctx, c.ParentID)
	if err != nil {
		return fmt.Errorf("shift %s: parent: %w", id, err)
	}
	children, err := r.store.Children(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("shift %s: %w", id, err)
	}

	order := childIDs(orderChildren(parent.Subcategories, children))
	from := slices.Index(order, id)
	if from < 0 {
		return fmt.Errorf("%w: %s not among children of %s", storage.ErrInconsistentTree, id, parent.ID)
	}
	to := min(max(from+offset, 0), len(order)-1)
	if to == from {
		return nil
	}

	order = slices.Delete(order, from, from+1)
	order = slices.Insert(order, to, id)
	if _, err := r.store.UpdateField(ctx, parent.ID, storage.FieldSubcategories, order); err != nil {
		return fmt.Errorf("shift %s: %w", id, err)
	}
	return nil
}

// DeleteCategory removes id. With saveChildren its direct children move up to
// its parent and take its place in the parent's order; otherwise the whole
// branch is deleted. Links are rewritten before anything is deleted and the
// branch goes leaves first, so an interrupted delete leaves extra nodes
// rather than dangling references.
func (r *Repository) DeleteCategory(ctx context.Context, id string, saveChildren bool) error {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	children, err := r.store.Children(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	switch {
	case len(children) == 0:
		if err := r.detach(ctx, c, nil); err != nil {
			return err
		}
		if err := r.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}

	case saveChildren:
		promoted := childIDs(orderChildren(c.Subcategories, children))
		for _, childID := range promoted {
			if _, err := r.store.UpdateField(ctx, childID, storage.FieldParentID, c.ParentID); err != nil {
				return fmt.Errorf("reparent %s to %s: %w", childID, c.ParentID, err)
			}
		}
		if err := r.detach(ctx, c, promoted); err != nil {
			return err
		}
		if err := r.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}

	default:
		branch, err := r.store.Branch(ctx, id)
		if err != nil {
			return fmt.Errorf("collect branch of %s: %w", id, err)
		}
		if err := r.detach(ctx, c, nil); err != nil {
			return err
		}
		for i := len(branch) - 1; i >= 0; i-- {
			if err := r.store.Delete(ctx, branch[i].ID); err != nil && !storage.IsNotFound(err) {
				return fmt.Errorf("delete %s in branch of %s: %w", branch[i].ID, id, err)
			}
		}
	}

	r.logger.Info("category deleted",
		zap.String("id", id),
		zap.Int("children", len(children)),
		zap.Bool("save_children", saveChildren))
	return nil
}

// detach removes c from its parent's index, putting replacements in its slot.
func (r *Repository) detach(ctx context.Context, c *models.Category, replacements []string) error {
	if c.IsTopLevel() {
		return nil
	}
	parent, err := r.store.Get(ctx, c.ParentID)
	if err != nil {
		if storage.IsNotFound(err) {
			r.logger.Warn("parent of deleted category is gone", zap.String("id", c.ID), zap.String("parent_id", c.ParentID))
			return nil
		}
		return fmt.Errorf("detach %s: %w", c.ID, err)
	}

	index := make([]string, 0, len(parent.Subcategories)+len(replacements))
	spliced := false
	for _, sub := range parent.Subcategories {
		if sub == c.ID {
			if !spliced {
				index = append(index, replacements...)
				spliced = true
			}
			continue
		}
		if !slices.Contains(replacements, sub) {
			index = append(index, sub)
		}
	}
	if !spliced {
		index = append(index, replacements...)
	}

	if _, err := r.store.UpdateField(ctx, parent.ID, storage.FieldSubcategories, index); err != nil {
		return fmt.Errorf("detach %s from %s: %w", c.ID, parent.ID, err)
	}
	return nil
}

func (r *Repository) link(ctx context.Context, parentID, childID string) error {
	parent, err := r.store.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.HasSubcategory(childID) {
		return nil
	}
	_, err = r.store.UpdateField(ctx, parentID, storage.FieldSubcategories, append(parent.Subcategories, childID))
	return err
}

func (r *Repository) unlink(ctx context.Context, parentID, childID string) error {
	parent, err := r.store.Get(ctx, parentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !parent.HasSubcategory(childID) {
		return nil
	}
	index := slices.DeleteFunc(slices.Clone(parent.Subcategories), func(s string) bool { return s == childID })
	_, err = r.store.UpdateField(ctx, parentID, storage.FieldSubcategories, index)
	return err
}

// Branch returns id and all its descendants in depth-first preorder.
func (r *Repository) Branch(ctx context.Context, id string) ([]*models.Category, error) {
	return r.store.Branch(ctx, id)
}
