package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/stylematch/internal/domain"
)

// MediaAnalysisRepository caches VLM analyses per image hash and model.
type MediaAnalysisRepository struct {
	db *gorm.DB
}

// NewMediaAnalysisRepository creates a new MediaAnalysisRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *MediaAnalysisRepository: repository instance bound to db.
func NewMediaAnalysisRepository(db *gorm.DB) *MediaAnalysisRepository {
	return &MediaAnalysisRepository{db: db}
}

// Save stores an analysis, keeping the existing row if one already exists for
// the same (md5, model) pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - analysis: analysis record to persist.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *MediaAnalysisRepository) Save(ctx context.Context, analysis *domain.MediaAnalysis) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "md5_hash"}, {Name: "vlm_model"}},
		DoNothing: true,
	}).Create(analysis).Error
}

// GetByMD5AndModel retrieves a cached analysis.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - md5Hash: MD5 hash of the image bytes.
//   - vlmModel: VLM model that produced the analysis.
//
// Returns:
//   - *domain.MediaAnalysis: the cached analysis, or nil when none exists.
//   - error: non-nil if the lookup fails.
func (r *MediaAnalysisRepository) GetByMD5AndModel(ctx context.Context, md5Hash, vlmModel string) (*domain.MediaAnalysis, error) {
	var analysis domain.MediaAnalysis
	err := r.db.WithContext(ctx).
		Where("md5_hash = ? AND vlm_model = ?", md5Hash, vlmModel).
		First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// DeleteByMediaID removes all analyses for a media item.
func (r *MediaAnalysisRepository) DeleteByMediaID(ctx context.Context, mediaID string) error {
	return r.db.WithContext(ctx).Delete(&domain.MediaAnalysis{}, "media_id = ?", mediaID).Error
}
