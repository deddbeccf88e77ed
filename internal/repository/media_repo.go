package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/stylematch/internal/domain"
)

// MediaRepository handles media item rows.
type MediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new MediaRepository.
func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Upsert creates a media item or replaces the stored row with the same ID.
func (r *MediaRepository) Upsert(ctx context.Context, item *domain.MediaItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(item).Error
}

// GetByID retrieves a media item. Unknown IDs return domain.ErrRecordNotFound.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (*domain.MediaItem, error) {
	var item domain.MediaItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("media %s: %w", id, domain.ErrRecordNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// ListByStatus lists media items in a status, oldest first, with pagination.
func (r *MediaRepository) ListByStatus(ctx context.Context, status domain.MediaStatus, limit, offset int) ([]domain.MediaItem, error) {
	var items []domain.MediaItem
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListByProvider lists a provider's media items, newest first.
func (r *MediaRepository) ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]domain.MediaItem, error) {
	var items []domain.MediaItem
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkIndexed records the outcome of an indexing attempt.
func (r *MediaRepository) MarkIndexed(ctx context.Context, id string, status domain.MediaStatus, slotFailures string, indexedAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.MediaItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"slot_failures": slotFailures,
			"indexed_at":    indexedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("media %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}

// CountByStatus counts media items per status.
func (r *MediaRepository) CountByStatus(ctx context.Context) (map[domain.MediaStatus]int64, error) {
	var rows []struct {
		Status domain.MediaStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.MediaItem{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[domain.MediaStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Delete removes a media item by ID.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.MediaItem{}, "id = ?", id).Error
}
