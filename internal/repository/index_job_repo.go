package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/stylematch/internal/domain"
)

// IndexJobRepository persists indexing runs.
type IndexJobRepository struct {
	db *gorm.DB
}

// NewIndexJobRepository creates a new IndexJobRepository.
func NewIndexJobRepository(db *gorm.DB) *IndexJobRepository {
	return &IndexJobRepository{db: db}
}

// Create inserts a new job.
func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update saves all job fields.
func (r *IndexJobRepository) Update(ctx context.Context, job *domain.IndexJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// GetByID retrieves a job. Unknown IDs return domain.ErrRecordNotFound.
func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	var job domain.IndexJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, domain.ErrRecordNotFound)
		}
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the most recently created jobs.
func (r *IndexJobRepository) ListRecent(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	var jobs []domain.IndexJob
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
