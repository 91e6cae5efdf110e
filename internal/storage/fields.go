package storage

import (
	"fmt"

	"CatalogBot/pkg/models"
)

type Field string

const (
	FieldName          Field = "name"
	FieldDescription   Field = "description"
	FieldParentID      Field = "parent_id"
	FieldSubcategories Field = "subcategories"
	FieldExtra         Field = "extra"
)

// ApplyField checks value against field's type and writes it into c.
func ApplyField(c *models.Category, field Field, value any) error {
	switch field {
	case FieldName:
		name, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: name wants string, got %T", ErrInvalidField, value)
		}
		c.Name = name
	case FieldDescription:
		segments, ok := value.([]models.Segment)
		if !ok && value != nil {
			return fmt.Errorf("%w: description wants []models.Segment, got %T", ErrInvalidField, value)
		}
		c.Description = models.CloneSegments(segments)
	case FieldParentID:
		parentID, ok := value.(string)
		if !ok || parentID == "" {
			return fmt.Errorf("%w: parent_id wants non-empty string, got %v", ErrInvalidField, value)
		}
		if parentID == c.ID {
			return fmt.Errorf("%w: category %s cannot be its own parent", ErrInvalidField, c.ID)
		}
		c.ParentID = parentID
	case FieldSubcategories:
		ids, ok := value.([]string)
		if !ok && value != nil {
			return fmt.Errorf("%w: subcategories wants []string, got %T", ErrInvalidField, value)
		}
		c.Subcategories = append([]string{}, ids...)
	case FieldExtra:
		c.Extra = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
	}
	return nil
}
