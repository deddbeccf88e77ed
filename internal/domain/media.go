package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MediaStatus represents the indexing status of a media item.
type MediaStatus string

const (
	MediaStatusPending MediaStatus = "pending"
	MediaStatusActive  MediaStatus = "active"
	// MediaStatusNoVectors marks an item whose visual and style vectors both failed.
	// It is excluded from search candidacy until it is re-processed.
	MediaStatusNoVectors MediaStatus = "no_vectors"
	MediaStatusFailed    MediaStatus = "failed"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// MediaItem is the relational record of a professional service media item.
// Vectors live in the record store; this row tracks identity and indexing state.
type MediaItem struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	ServiceID    string      `gorm:"type:text;not null;index:idx_media_service" json:"service_id"`
	ProviderID   string      `gorm:"type:text;not null;index:idx_media_provider" json:"provider_id"`
	StorageKey   string      `gorm:"type:text" json:"storage_key"`
	Title        string      `gorm:"type:text" json:"title,omitempty"`
	Description  string      `gorm:"type:text" json:"description,omitempty"`
	Category     string      `gorm:"type:text;index:idx_media_category" json:"category"`
	Tags         StringArray `gorm:"type:text" json:"tags"`
	Format       string      `json:"format"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	MD5Hash      string      `gorm:"type:text;index:idx_media_md5" json:"md5_hash"`
	Status       MediaStatus `gorm:"type:text;index:idx_media_status;default:pending" json:"status"`
	SlotFailures string      `gorm:"type:text" json:"slot_failures,omitempty"`
	IndexedAt    *time.Time  `json:"indexed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for MediaItem.
func (MediaItem) TableName() string {
	return "media_items"
}

// ImageAnalysis is what the vision language model reports about one image.
type ImageAnalysis struct {
	Tags           []string `json:"tags"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	MoodTags       []string `json:"mood_tags,omitempty"`
	DominantColors []string `json:"dominant_colors,omitempty"`
}
