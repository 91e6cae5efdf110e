package models

// RootID marks a top-level category's parent. It never resolves to a stored category.
const RootID = "root"

type Category struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id"`
	Name          string    `json:"name"`
	Description   []Segment `json:"description"`
	Subcategories []string  `json:"subcategories"`
	Extra         any       `json:"extra"`
}

func NewCategory(parentID, name string, description []Segment) *Category {
	if parentID == "" {
		parentID = RootID
	}
	return &Category{
		ParentID:      parentID,
		Name:          name,
		Description:   CloneSegments(description),
		Subcategories: []string{},
	}
}

func (c *Category) IsTopLevel() bool {
	return c.ParentID == RootID
}

func (c *Category) HasSubcategory(id string) bool {
	for _, sub := range c.Subcategories {
		if sub == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, except for Extra which is treated as an immutable value.
func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	out := *c
	out.Description = CloneSegments(c.Description)
	out.Subcategories = append([]string{}, c.Subcategories...)
	return &out
}
