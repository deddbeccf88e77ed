package domain

import "time"

// JobStatus represents the status of an indexing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IndexJob records one indexing run and its progress counters.
type IndexJob struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	Source        string     `gorm:"type:text;not null;index" json:"source"`
	Status        JobStatus  `gorm:"default:pending" json:"status"`
	TotalItems    int        `gorm:"default:0" json:"total_items"`
	IndexedItems  int        `gorm:"default:0" json:"indexed_items"`
	PartialItems  int        `gorm:"default:0" json:"partial_items"`
	UnusableItems int        `gorm:"default:0" json:"unusable_items"`
	FailedItems   int        `gorm:"default:0" json:"failed_items"`
	SkippedItems  int        `gorm:"default:0" json:"skipped_items"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorLog      string     `json:"error_log,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IndexJob.
func (IndexJob) TableName() string {
	return "index_jobs"
}
