package source

import "context"

// MediaItem is one professional service media item offered by a source.
type MediaItem struct {
	MediaID     string // Stable media ID; re-indexing the same ID replaces its record
	ServiceID   string
	ProviderID  string
	Title       string
	Description string
	Category    string
	Tags        []string
	Format      string // File format (jpg, png, webp, ...)
	LocalPath   string // Local file path, when the image is on disk
	StorageKey  string // Object storage key, when the image is already uploaded
}

// Source defines the interface for media sources fed to the indexer.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of media items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of media items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []MediaItem, nextCursor string, err error)
}
