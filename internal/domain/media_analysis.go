package domain

import "time"

// MediaAnalysis caches a VLM analysis for an image so re-indexing the same bytes
// with the same model yields the same tags and description.
type MediaAnalysis struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	MediaID        string      `gorm:"type:text;not null;index:idx_media_analyses_media" json:"media_id"`
	MD5Hash        string      `gorm:"type:text;not null;uniqueIndex:idx_media_analyses_md5_model" json:"md5_hash"`
	VLMModel       string      `gorm:"type:text;not null;uniqueIndex:idx_media_analyses_md5_model" json:"vlm_model"`
	Tags           StringArray `gorm:"type:text" json:"tags"`
	Description    string      `gorm:"type:text" json:"description"`
	Category       string      `gorm:"type:text" json:"category"`
	MoodTags       StringArray `gorm:"type:text" json:"mood_tags"`
	DominantColors StringArray `gorm:"type:text" json:"dominant_colors"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TableName returns the database table name for MediaAnalysis.
func (MediaAnalysis) TableName() string {
	return "media_analyses"
}

// ToImageAnalysis converts the cached row back into an ImageAnalysis.
func (a *MediaAnalysis) ToImageAnalysis() *ImageAnalysis {
	return &ImageAnalysis{
		Tags:           append([]string(nil), a.Tags...),
		Description:    a.Description,
		Category:       a.Category,
		MoodTags:       append([]string(nil), a.MoodTags...),
		DominantColors: append([]string(nil), a.DominantColors...),
	}
}
