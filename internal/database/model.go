package database

import (
	"time"

	"sprout/internal/media"
)

// Attachment is a stored media item. File duplicates Metadata.File so it
// can be indexed for path lookups.
type Attachment struct {
	ID         uint           `gorm:"primaryKey"`
	File       string         `gorm:"index;type:text"`
	MimeType   string         `gorm:"index;type:text"`
	ParentType string         `gorm:"type:text"`
	Metadata   media.Metadata `gorm:"serializer:json;type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (a *Attachment) toAsset() *media.Asset {
	return &media.Asset{
		ID:         a.ID,
		ParentType: a.ParentType,
		Metadata:   a.Metadata,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// Option is a named setting persisted next to the attachments.
type Option struct {
	Name      string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
