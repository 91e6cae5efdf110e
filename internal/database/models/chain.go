package models

import domain "CatalogBot/pkg/models"

// ChainSegment is one captured message of a capture session. ExpiresAt is unix nanoseconds.
type ChainSegment struct {
	ID         uint                 `gorm:"primaryKey"`
	SessionKey string               `gorm:"size:255;not null;index"`
	Segment    domain.SegmentRecord `gorm:"serializer:json"`
	ExpiresAt  int64                `gorm:"not null;index"`
}
