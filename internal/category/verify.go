package category

import (
	"context"
	"fmt"

	"CatalogBot/internal/storage"
	"CatalogBot/pkg/models"

	"go.uber.org/zap"
)

type ProblemKind string

const (
	// A child whose id is absent from its parent's subcategories.
	ProblemUnindexed ProblemKind = "unindexed_child"
	// An id in subcategories that is not a child of that category.
	ProblemDanglingIndex ProblemKind = "dangling_index"
	ProblemDuplicateIndex ProblemKind = "duplicate_index"
	ProblemRevisited      ProblemKind = "revisited"
	ProblemTooDeep        ProblemKind = "too_deep"
)

type Problem struct {
	Kind       ProblemKind
	CategoryID string
	Detail     string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s: %s", p.Kind, p.CategoryID, p.Detail)
}

// Verify audits every category reachable from the root. Nodes whose parent_id
// points at a missing category are not reachable and so are not reported.
func (r *Repository) Verify(ctx context.Context) ([]Problem, error) {
	var problems []Problem
	visited := map[string]bool{}

	type frame struct {
		id    string
		depth int
	}
	queue := []frame{{id: models.RootID}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return problems, err
		}
		f := queue[0]
		queue = queue[1:]

		children, err := r.store.Children(ctx, f.id)
		if err != nil {
			return problems, fmt.Errorf("verify children of %s: %w", f.id, err)
		}

		if f.id != models.RootID {
			parent, err := r.store.Get(ctx, f.id)
			if err != nil && !storage.IsNotFound(err) {
				return problems, fmt.Errorf("verify %s: %w", f.id, err)
			}
			if parent != nil {
				problems = append(problems, checkIndex(parent, children)...)
			}
		}

		for _, c := range children {
			if visited[c.ID] {
				problems = append(problems, Problem{ProblemRevisited, c.ID, "reached twice while walking the tree"})
				continue
			}
			visited[c.ID] = true
			if f.depth+1 > storage.MaxBranchDepth {
				problems = append(problems, Problem{ProblemTooDeep, c.ID, fmt.Sprintf("deeper than %d", storage.MaxBranchDepth)})
				continue
			}
			queue = append(queue, frame{id: c.ID, depth: f.depth + 1})
		}
	}

	if len(problems) > 0 {
		r.logger.Warn("category tree has problems", zap.Int("count", len(problems)))
	}
	return problems, nil
}

func checkIndex(parent *models.Category, children []*models.Category) []Problem {
	var problems []Problem
	isChild := make(map[string]bool, len(children))
	for _, c := range children {
		isChild[c.ID] = true
	}

	seen := make(map[string]bool, len(parent.Subcategories))
	for _, id := range parent.Subcategories {
		if seen[id] {
			problems = append(problems, Problem{ProblemDuplicateIndex, parent.ID, "lists " + id + " more than once"})
			continue
		}
		seen[id] = true
		if !isChild[id] {
			problems = append(problems, Problem{ProblemDanglingIndex, parent.ID, "lists " + id + " which is not its child"})
		}
	}
	for _, c := range children {
		if !seen[c.ID] {
			problems = append(problems, Problem{ProblemUnindexed, c.ID, "missing from subcategories of " + parent.ID})
		}
	}
	return problems
}

// Repair rewrites each reachable parent's index to exactly its children,
// keeping existing order where it is valid.
func (r *Repository) Repair(ctx context.Context) (int, error) {
	problems, err := r.Verify(ctx)
	if err != nil {
		return 0, err
	}

	parents := map[string]bool{}
	for _, p := range problems {
		switch p.Kind {
		case ProblemDanglingIndex, ProblemDuplicateIndex:
			parents[p.CategoryID] = true
		case ProblemUnindexed:
			c, ok := r.GetCategory(ctx, p.CategoryID)
			if ok {
				parents[c.ParentID] = true
			}
		}
	}

	repaired := 0
	for parentID := range parents {
		parent, err := r.store.Get(ctx, parentID)
		if err != nil {
			return repaired, fmt.Errorf("repair %s: %w", parentID, err)
		}
		children, err := r.store.Children(ctx, parentID)
		if err != nil {
			return repaired, fmt.Errorf("repair %s: %w", parentID, err)
		}
		index := childIDs(orderChildren(parent.Subcategories, children))
		if _, err := r.store.UpdateField(ctx, parentID, storage.FieldSubcategories, index); err != nil {
			return repaired, fmt.Errorf("repair %s: %w", parentID, err)
		}
		repaired++
	}

	if repaired > 0 {
		r.logger.Info("category index repaired", zap.Int("parents", repaired))
	}
	return repaired, nil
}
