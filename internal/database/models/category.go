package models

import (
	"encoding/json"
	"fmt"
	"time"

	domain "CatalogBot/pkg/models"
)

// Category is the row form of a category. Description, Subcategories and
// Extra hold JSON text; Extra is NULL when the category has none.
type Category struct {
	ID            string  `gorm:"primaryKey;size:64"`
	ParentID      string  `gorm:"size:64;not null;index:idx_parent_seq,priority:1"`
	Seq           int64   `gorm:"not null;index:idx_parent_seq,priority:2"`
	Name          string  `gorm:"size:255;not null"`
	Description   string  `gorm:"type:text;not null"`
	Subcategories string  `gorm:"type:text;not null"`
	Extra         *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewCategory(c *domain.Category) (*Category, error) {
	description, err := EncodeDescription(c.Description)
	if err != nil {
		return nil, err
	}
	subcategories, err := EncodeSubcategories(c.Subcategories)
	if err != nil {
		return nil, err
	}
	extra, err := EncodeExtra(c.Extra)
	if err != nil {
		return nil, err
	}
	return &Category{
		ID:            c.ID,
		ParentID:      c.ParentID,
		Name:          c.Name,
		Description:   description,
		Subcategories: subcategories,
		Extra:         extra,
	}, nil
}

func (c *Category) Domain() (*domain.Category, error) {
	out := &domain.Category{
		ID:            c.ID,
		ParentID:      c.ParentID,
		Name:          c.Name,
		Subcategories: []string{},
	}

	var records []domain.SegmentRecord
	if err := decode(c.Description, &records); err != nil {
		return nil, fmt.Errorf("category %s description: %w", c.ID, err)
	}
	for _, rec := range records {
		seg, err := rec.Segment()
		if err != nil {
			return nil, err
		}
		out.Description = append(out.Description, seg)
	}

	if err := decode(c.Subcategories, &out.Subcategories); err != nil {
		return nil, fmt.Errorf("category %s subcategories: %w", c.ID, err)
	}
	if out.Subcategories == nil {
		out.Subcategories = []string{}
	}

	if c.Extra != nil {
		if err := decode(*c.Extra, &out.Extra); err != nil {
			return nil, fmt.Errorf("category %s extra: %w", c.ID, err)
		}
	}
	return out, nil
}

func EncodeDescription(description []domain.Segment) (string, error) {
	records := make([]domain.SegmentRecord, len(description))
	for i, seg := range description {
		records[i] = seg.Record()
	}
	return encode(records)
}

func EncodeSubcategories(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	return encode(ids)
}

// EncodeExtra returns nil for a nil value so the column stays NULL.
func EncodeExtra(extra any) (*string, error) {
	if extra == nil {
		return nil, nil
	}
	s, err := encode(extra)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
