package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/fusion"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/palette"
	"github.com/timmy/stylematch/internal/repository"
	"github.com/timmy/stylematch/internal/source"
	"github.com/timmy/stylematch/internal/storage"
)

// IndexStatus is the outcome of indexing one media item.
type IndexStatus string

const (
	// IndexStatusIndexed means every slot was generated.
	IndexStatusIndexed IndexStatus = "indexed"
	// IndexStatusPartial means the record is searchable but some slots failed.
	IndexStatusPartial IndexStatus = "partial"
	// IndexStatusUnusable means visual and style both failed; the item is not searchable.
	IndexStatusUnusable IndexStatus = "unusable"
	// IndexStatusSkipped means the item was already active and Force was not set.
	IndexStatusSkipped IndexStatus = "skipped"
	// IndexStatusFailed means the item could not be processed at all.
	IndexStatusFailed IndexStatus = "failed"
)

// IndexOutcome reports what happened to one media item.
type IndexOutcome struct {
	MediaID      string            `json:"media_id"`
	Status       IndexStatus       `json:"status"`
	SlotFailures map[string]string `json:"slot_failures,omitempty"`
}

// IndexConfig holds configuration for the index service.
type IndexConfig struct {
	Workers       int
	BatchSize     int
	MaxImageBytes int64
	MaxColors     int
}

// IndexOptions tunes one indexing run.
type IndexOptions struct {
	Limit int  // 0 means no limit
	Force bool // re-index items that are already active
}

// IndexService runs the indexing pipeline: image, analysis, vectors, record.
type IndexService struct {
	mediaRepo    *repository.MediaRepository
	analysisRepo *repository.MediaAnalysisRepository
	jobRepo      *repository.IndexJobRepository
	store        RecordStore
	storage      storage.ObjectStorage
	vlm          ImageAnalyzer
	generator    *MultiVectorGenerator
	metrics      *metrics.Recorder
	cfg          IndexConfig
}

// NewIndexService creates a new index service.
// Parameters:
//   - mediaRepo, analysisRepo, jobRepo: relational repositories.
//   - store: record store receiving embedding records.
//   - objectStorage: storage for media images; may be nil when sources only use local files.
//   - vlm: image analyzer; nil indexes with source metadata only.
//   - generator: multi-vector generator.
//   - rec: metrics recorder; may be nil.
//   - cfg: worker and batch settings.
//
// Returns:
//   - *IndexService: initialized service.
func NewIndexService(
	mediaRepo *repository.MediaRepository,
	analysisRepo *repository.MediaAnalysisRepository,
	jobRepo *repository.IndexJobRepository,
	store RecordStore,
	objectStorage storage.ObjectStorage,
	vlm ImageAnalyzer,
	generator *MultiVectorGenerator,
	rec *metrics.Recorder,
	cfg IndexConfig,
) *IndexService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 20 << 20
	}
	return &IndexService{
		mediaRepo:    mediaRepo,
		analysisRepo: analysisRepo,
		jobRepo:      jobRepo,
		store:        store,
		storage:      objectStorage,
		vlm:          vlm,
		generator:    generator,
		metrics:      rec,
		cfg:          cfg,
	}
}

// IndexMedia processes one media item and replaces its embedding record.
// A usable generation is stored atomically and the item marked active; an
// unusable one removes any stale record and marks the item no_vectors.
func (s *IndexService) IndexMedia(ctx context.Context, item source.MediaItem) (*IndexOutcome, error) {
	ctx = logger.WithField(ctx, logger.FieldMediaID, item.MediaID)
	outcome, err := s.indexMedia(ctx, item)
	if err != nil {
		s.metrics.ItemIndexed(string(IndexStatusFailed))
		if markErr := s.mediaRepo.MarkIndexed(ctx, item.MediaID, domain.MediaStatusFailed, "", nil); markErr != nil && !errors.Is(markErr, domain.ErrRecordNotFound) {
			logger.CtxError(ctx, "Failed to mark media as failed: %v", markErr)
		}
		return &IndexOutcome{MediaID: item.MediaID, Status: IndexStatusFailed}, err
	}
	s.metrics.ItemIndexed(string(outcome.Status))
	return outcome, nil
}

func (s *IndexService) indexMedia(ctx context.Context, item source.MediaItem) (*IndexOutcome, error) {
	if item.MediaID == "" || item.ProviderID == "" {
		return nil, errors.New("media_id and provider_id are required")
	}
	start := time.Now()

	imageData, err := s.readImage(ctx, &item)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	info, err := palette.Inspect(imageData)
	if err != nil {
		return nil, err
	}
	if item.Format == "" {
		item.Format = info.Format
	}
	md5Hash := calculateMD5(imageData)

	storageKey, err := s.ensureStored(ctx, &item, md5Hash, imageData)
	if err != nil {
		return nil, err
	}

	analysis := s.analyze(ctx, item.MediaID, md5Hash, imageData, &item)

	colors := analysis.DominantColors
	if extracted, err := palette.Extract(imageData, s.cfg.MaxColors); err == nil {
		colors = fusion.DedupeStrings(append(append([]string{}, colors...), extracted...))
	}
	tags := fusion.DedupeStrings(append(append([]string{}, item.Tags...), analysis.Tags...))
	category := fusion.NormalizeCategory(item.Category)
	if category == "" {
		category = analysis.Category
	}
	description := item.Description
	if description == "" {
		description = analysis.Description
	}

	row := &domain.MediaItem{
		ID:          item.MediaID,
		ServiceID:   item.ServiceID,
		ProviderID:  item.ProviderID,
		StorageKey:  storageKey,
		Title:       item.Title,
		Description: description,
		Category:    category,
		Tags:        tags,
		Format:      item.Format,
		Width:       info.Width,
		Height:      info.Height,
		MD5Hash:     md5Hash,
		Status:      domain.MediaStatusPending,
	}
	if err := s.mediaRepo.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save media item: %w", err)
	}

	gen := s.generator.Generate(ctx, GenerateInput{
		Image:          imageData,
		Category:       category,
		Title:          item.Title,
		Description:    description,
		Tags:           tags,
		DominantColors: colors,
		MoodTags:       analysis.MoodTags,
	})

	outcome := &IndexOutcome{MediaID: item.MediaID, SlotFailures: gen.Failures.Messages()}
	now := time.Now().UTC()

	if !gen.Usable() {
		if err := s.store.Delete(ctx, item.MediaID); err != nil {
			return nil, fmt.Errorf("failed to remove stale record: %w", err)
		}
		if err := s.mediaRepo.MarkIndexed(ctx, item.MediaID, domain.MediaStatusNoVectors, gen.Failures.String(), nil); err != nil {
			return nil, fmt.Errorf("failed to mark media: %w", err)
		}
		outcome.Status = IndexStatusUnusable
		logger.With(logger.Fields{
			"failed_slots": gen.Failures.String(),
		}).Warn(ctx, "Media has no usable vectors")
		return outcome, nil
	}

	record := &domain.MediaEmbeddingRecord{
		MediaID:     item.MediaID,
		ServiceID:   item.ServiceID,
		ProviderID:  item.ProviderID,
		Category:    category,
		Tags:        tags,
		Description: description,
		IndexedAt:   now,
		Vectors:     gen.Vectors,
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if err := s.mediaRepo.MarkIndexed(ctx, item.MediaID, domain.MediaStatusActive, gen.Failures.String(), &now); err != nil {
		return nil, fmt.Errorf("failed to mark media: %w", err)
	}

	outcome.Status = IndexStatusIndexed
	if len(gen.Failures) > 0 {
		outcome.Status = IndexStatusPartial
	}
	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(outcome.Status),
	}).Debug(ctx, "Media indexed")
	return outcome, nil
}

// analyze returns the cached analysis for (md5, model) or asks the VLM. VLM
// failures degrade to source metadata and are not cached.
func (s *IndexService) analyze(ctx context.Context, mediaID, md5Hash string, imageData []byte, item *source.MediaItem) *domain.ImageAnalysis {
	if s.vlm == nil {
		return &domain.ImageAnalysis{}
	}
	model := s.vlm.GetModel()

	cached, err := s.analysisRepo.GetByMD5AndModel(ctx, md5Hash, model)
	if err != nil {
		logger.CtxWarn(ctx, "Analysis cache lookup failed: %v", err)
	} else if cached != nil {
		return cached.ToImageAnalysis()
	}

	analysis, err := s.vlm.AnalyzeImage(ctx, imageData, item.Format, item.Description, item.Category)
	if err != nil {
		logger.CtxWarn(ctx, "Image analysis failed, indexing with source metadata: %v", err)
		return &domain.ImageAnalysis{}
	}

	row := &domain.MediaAnalysis{
		ID:             uuid.New().String(),
		MediaID:        mediaID,
		MD5Hash:        md5Hash,
		VLMModel:       model,
		Tags:           analysis.Tags,
		Description:    analysis.Description,
		Category:       analysis.Category,
		MoodTags:       analysis.MoodTags,
		DominantColors: analysis.DominantColors,
	}
	if err := s.analysisRepo.Save(ctx, row); err != nil {
		logger.CtxWarn(ctx, "Failed to cache analysis: %v", err)
	}
	return analysis
}

func (s *IndexService) readImage(ctx context.Context, item *source.MediaItem) ([]byte, error) {
	if item.LocalPath != "" {
		data, err := os.ReadFile(item.LocalPath)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > s.cfg.MaxImageBytes {
			return nil, fmt.Errorf("image exceeds %d bytes", s.cfg.MaxImageBytes)
		}
		return data, nil
	}
	if item.StorageKey != "" && s.storage != nil {
		return storage.ReadAll(ctx, s.storage, item.StorageKey, s.cfg.MaxImageBytes)
	}
	return nil, errors.New("item has no readable image")
}

// ensureStored uploads local images under an md5-bucketed key and returns the
// key the item is stored under.
func (s *IndexService) ensureStored(ctx context.Context, item *source.MediaItem, md5Hash string, data []byte) (string, error) {
	if item.StorageKey != "" || s.storage == nil {
		return item.StorageKey, nil
	}

	key := fmt.Sprintf("%s/%s.%s", md5Hash[:2], md5Hash, strings.TrimPrefix(item.Format, "."))
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to check storage existence: %w", err)
	}
	if exists {
		return key, nil
	}
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), storage.ContentType(item.Format)); err != nil {
		return "", fmt.Errorf("failed to upload to storage: %w", err)
	}
	return key, nil
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// CreateJob records a pending indexing run for src.
func (s *IndexService) CreateJob(ctx context.Context, src source.Source) (*domain.IndexJob, error) {
	job := &domain.IndexJob{
		ID:     uuid.New().String(),
		Source: src.GetSourceID(),
		Status: domain.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// IndexFromSource creates a job and runs it to completion.
func (s *IndexService) IndexFromSource(ctx context.Context, src source.Source, opts IndexOptions) (*domain.IndexJob, error) {
	job, err := s.CreateJob(ctx, src)
	if err != nil {
		return nil, err
	}
	return job, s.RunJob(ctx, job, src, opts)
}

// RunJob indexes every item of src with a pool of workers, updating job
// counters as items finish. The job row is saved when the run ends.
func (s *IndexService) RunJob(ctx context.Context, job *domain.IndexJob, src source.Source, opts IndexOptions) error {
	ctx = logger.SetJobID(ctx, job.ID)
	started := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &started
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	logger.With(logger.Fields{
		"source": src.GetSourceID(),
		"limit":  opts.Limit,
		"force":  opts.Force,
	}).Info(ctx, "Starting indexing")

	itemsChan := make(chan source.MediaItem, s.cfg.Workers*2)
	resultsChan := make(chan *IndexOutcome, s.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, resultsChan, opts)
		}()
	}

	done := make(chan struct{})
	var errorLog []string
	go func() {
		defer close(done)
		for result := range resultsChan {
			switch result.Status {
			case IndexStatusIndexed:
				job.IndexedItems++
			case IndexStatusPartial:
				job.IndexedItems++
				job.PartialItems++
			case IndexStatusUnusable:
				job.UnusableItems++
			case IndexStatusSkipped:
				job.SkippedItems++
			default:
				job.FailedItems++
				if len(errorLog) < 20 {
					errorLog = append(errorLog, result.MediaID)
				}
			}
		}
	}()

	fetchErr := s.feed(ctx, src, opts.Limit, itemsChan, job)

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	completed := time.Now().UTC()
	job.CompletedAt = &completed
	job.Status = domain.JobStatusCompleted
	if len(errorLog) > 0 {
		job.ErrorLog = "failed: " + strings.Join(errorLog, ",")
	}
	if fetchErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorLog = strings.TrimSpace(fetchErr.Error() + "; " + job.ErrorLog)
	}

	// the run context may already be cancelled; the final state must still be saved
	if err := s.jobRepo.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.CtxError(ctx, "Failed to save job state: %v", err)
	}

	logger.With(logger.Fields{
		"total":    job.TotalItems,
		"indexed":  job.IndexedItems,
		"partial":  job.PartialItems,
		"unusable": job.UnusableItems,
		"skipped":  job.SkippedItems,
		"failed":   job.FailedItems,
	}).WithDuration(completed.Sub(started).Milliseconds()).Info(ctx, "Indexing completed")

	return fetchErr
}

// feed pages through src and pushes items to the workers.
func (s *IndexService) feed(ctx context.Context, src source.Source, limit int, items chan<- source.MediaItem, job *domain.IndexJob) error {
	cursor := ""
	fetched := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batchLimit := s.cfg.BatchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				return nil
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		batch, next, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		fetched += len(batch)
		job.TotalItems += len(batch)

		for _, item := range batch {
			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *IndexService) worker(ctx context.Context, items <-chan source.MediaItem, results chan<- *IndexOutcome, opts IndexOptions) {
	for item := range items {
		if ctx.Err() != nil {
			results <- &IndexOutcome{MediaID: item.MediaID, Status: IndexStatusFailed}
			continue
		}

		if !opts.Force {
			existing, err := s.mediaRepo.GetByID(ctx, item.MediaID)
			if err == nil && existing.Status == domain.MediaStatusActive {
				results <- &IndexOutcome{MediaID: item.MediaID, Status: IndexStatusSkipped}
				continue
			}
		}

		outcome, err := s.IndexMedia(ctx, item)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldMediaID: item.MediaID,
			}).Error(ctx, "Failed to index media: %v", err)
		}
		results <- outcome
	}
}

// RetryUnusable re-processes up to limit items in no_vectors or failed state
// from their stored images.
func (s *IndexService) RetryUnusable(ctx context.Context, limit int) ([]*IndexOutcome, error) {
	var rows []domain.MediaItem
	for _, status := range []domain.MediaStatus{domain.MediaStatusNoVectors, domain.MediaStatusFailed} {
		remaining := limit - len(rows)
		if remaining <= 0 {
			break
		}
		batch, err := s.mediaRepo.ListByStatus(ctx, status, remaining, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s media: %w", status, err)
		}
		rows = append(rows, batch...)
	}

	outcomes := make([]*IndexOutcome, 0, len(rows))
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.IndexMedia(ctx, source.MediaItem{
			MediaID:     row.ID,
			ServiceID:   row.ServiceID,
			ProviderID:  row.ProviderID,
			Title:       row.Title,
			Description: row.Description,
			Category:    row.Category,
			Tags:        row.Tags,
			Format:      row.Format,
			StorageKey:  row.StorageKey,
		})
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldMediaID: row.ID,
			}).Warn(ctx, "Retry failed: %v", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// DeleteMedia removes a media item's record, cached analyses and row.
// Stored images are kept since other items may share the same bytes.
func (s *IndexService) DeleteMedia(ctx context.Context, mediaID string) error {
	if err := s.store.Delete(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if err := s.analysisRepo.DeleteByMediaID(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete analyses: %w", err)
	}
	if err := s.mediaRepo.Delete(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete media item: %w", err)
	}
	return nil
}

// GetJob returns one indexing job.
func (s *IndexService) GetJob(ctx context.Context, id string) (*domain.IndexJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// ListJobs returns the most recent indexing jobs.
func (s *IndexService) ListJobs(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	return s.jobRepo.ListRecent(ctx, limit)
}

// Stats counts media items per status.
func (s *IndexService) Stats(ctx context.Context) (map[domain.MediaStatus]int64, error) {
	return s.mediaRepo.CountByStatus(ctx)
}

// GetMedia returns a media item row.
func (s *IndexService) GetMedia(ctx context.Context, id string) (*domain.MediaItem, error) {
	return s.mediaRepo.GetByID(ctx, id)
}
