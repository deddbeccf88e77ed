// Package app wires configuration into the services shared by the API server
// and the indexer CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/matching"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/repository"
	"github.com/timmy/stylematch/internal/service"
	"github.com/timmy/stylematch/internal/source"
	"github.com/timmy/stylematch/internal/source/staging"
	"github.com/timmy/stylematch/internal/storage"
)

// App holds the constructed services and the resources they own.
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Store       service.RecordStore
	Storage     storage.ObjectStorage
	Embedder    *service.ResilientEmbedder
	Inspiration *service.InspirationService
	Index       *service.IndexService
	Metrics     *metrics.Recorder

	closers []func() error
}

// New builds every service from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: metrics.New(metrics.DefaultConfig()),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if a.Store, err = a.newRecordStore(ctx); err != nil {
		return err
	}

	a.Storage, err = storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		LocalPath: cfg.Storage.LocalPath,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if s3, ok := a.Storage.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}

	if err := cfg.Embedding.ValidateWithEndpoint(); err != nil {
		return err
	}
	provider := service.NewEmbeddingService(&service.EmbeddingConfig{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		ImageDims: cfg.Embedding.ImageDimensions,
		TextDims:  cfg.Embedding.TextDimensions,
		Timeout:   cfg.Embedding.Timeout,
	})
	a.Embedder, err = service.NewResilientEmbedder(provider, service.ResilienceConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
		MaxRetries:        cfg.Embedding.MaxRetries,
		BreakerFailures:   cfg.Embedding.BreakerFailures,
		BreakerTimeout:    cfg.Embedding.BreakerTimeout,
		CacheSize:         cfg.Embedding.CacheSize,
	}, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	var vlm service.ImageAnalyzer
	if cfg.VLM.APIKey != "" {
		vlm = service.NewVLMService(&service.VLMConfig{
			Model:   cfg.VLM.Model,
			APIKey:  cfg.VLM.APIKey,
			BaseURL: cfg.VLM.BaseURL,
			Timeout: cfg.VLM.Timeout,
		})
	} else {
		logger.CtxWarn(ctx, "VLM API key not set, images are indexed without tag detection")
	}

	resolver, err := matching.NewResolver(cfg.Search.Profiles)
	if err != nil {
		return fmt.Errorf("invalid search profiles: %w", err)
	}

	generator := service.NewMultiVectorGenerator(a.Embedder, service.GeneratorConfig{
		SlotTimeout: cfg.Generator.SlotTimeout,
		TopTags:     cfg.Generator.TopTags,
	}, a.Metrics)

	a.Inspiration = service.NewInspirationService(a.Storage, vlm, generator, a.Store, resolver, a.Metrics, service.InspirationConfig{
		SearchTimeout:     cfg.Search.Timeout,
		DefaultMaxResults: cfg.Search.DefaultMaxResults,
		MaxImageBytes:     cfg.Server.MaxUploadBytes,
		MaxColors:         cfg.Generator.MaxColors,
		Scan: matching.ScanConfig{
			BatchSize:   cfg.Search.ScanBatchSize,
			Parallelism: cfg.Search.Parallelism,
			ANNPrefetch: cfg.Search.ANNPrefetch,
		},
	})

	a.Index = service.NewIndexService(
		repository.NewMediaRepository(db),
		repository.NewMediaAnalysisRepository(db),
		repository.NewIndexJobRepository(db),
		a.Store, a.Storage, vlm, generator, a.Metrics,
		service.IndexConfig{
			Workers:   cfg.Index.Workers,
			BatchSize: cfg.Index.BatchSize,
			MaxColors: cfg.Generator.MaxColors,
		},
	)
	return nil
}

func (a *App) newRecordStore(ctx context.Context) (service.RecordStore, error) {
	cfg := a.Config.Qdrant
	if !cfg.Enabled {
		logger.CtxWarn(ctx, "Qdrant disabled, embedding records are kept in memory only")
		return repository.NewMemoryStore(), nil
	}

	store, err := repository.NewQdrantStore(&repository.QdrantConnectionConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Collection: cfg.Collection,
		APIKey:     cfg.APIKey,
		UseTLS:     cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Qdrant store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}
	return store, nil
}

// Sources lists the staging sources found under the configured staging path,
// keyed by directory name.
func (a *App) Sources() (map[string]source.Source, error) {
	base := a.Config.Index.StagingPath
	names, err := staging.ListStagingSources(base)
	if err != nil {
		return nil, fmt.Errorf("failed to list staging sources: %w", err)
	}
	out := make(map[string]source.Source, len(names))
	for _, name := range names {
		out[name] = staging.NewAdapter(base, name)
	}
	return out, nil
}

// BreakerState reports the embedding provider's circuit breaker state.
func (a *App) BreakerState() string {
	if a.Embedder == nil {
		return "unknown"
	}
	return a.Embedder.BreakerState()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
