package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/source"
)

const (
	// ManifestFileName is the JSONL manifest file name in staging sources.
	ManifestFileName = "manifest.jsonl"
	// ImagesDir is the directory name for staged images.
	ImagesDir = "images"
)

// ManifestItem is one line of manifest.jsonl.
type ManifestItem struct {
	MediaID     string   `json:"media_id"`
	ServiceID   string   `json:"service_id"`
	ProviderID  string   `json:"provider_id"`
	Filename    string   `json:"filename"`
	StorageKey  string   `json:"storage_key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Format      string   `json:"format"`
}

// Adapter implements source.Source over a staging directory holding a
// manifest and an images folder.
type Adapter struct {
	basePath string
	sourceID string

	once    sync.Once
	loadErr error
	items   []source.MediaItem
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: base path to the staging directory.
//   - sourceID: name of the staging subdirectory.
//
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath, sourceID string) *Adapter {
	return &Adapter{
		basePath: basePath,
		sourceID: sourceID,
	}
}

// GetSourceID returns the source identifier with a "staging:" prefix.
func (a *Adapter) GetSourceID() string {
	return "staging:" + a.sourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Staging (%s)", a.sourceID)
}

// FetchBatch returns items in media ID order. The cursor is an index.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.MediaItem, string, error) {
	a.once.Do(func() { a.loadErr = a.loadItems(ctx) })
	if a.loadErr != nil {
		return nil, "", fmt.Errorf("failed to load staging items: %w", a.loadErr)
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}

	if startIndex >= len(a.items) {
		return []source.MediaItem{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// GetTotalCount returns the total number of items in staging.
func (a *Adapter) GetTotalCount(ctx context.Context) (int, error) {
	a.once.Do(func() { a.loadErr = a.loadItems(ctx) })
	if a.loadErr != nil {
		return 0, a.loadErr
	}
	return len(a.items), nil
}

// loadItems loads all items from the manifest file
func (a *Adapter) loadItems(ctx context.Context) error {
	stagingPath := filepath.Join(a.basePath, a.sourceID)
	manifestPath := filepath.Join(stagingPath, ManifestFileName)
	imagesPath := filepath.Join(stagingPath, ImagesDir)

	file, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	seen := make(map[string]bool)
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			skipped++
			logger.CtxWarn(ctx, "Skipping malformed manifest line %d: %v", lineNo, err)
			continue
		}
		if item.MediaID == "" || item.ProviderID == "" {
			skipped++
			logger.CtxWarn(ctx, "Skipping manifest line %d: media_id and provider_id are required", lineNo)
			continue
		}
		if seen[item.MediaID] {
			skipped++
			logger.CtxWarn(ctx, "Skipping manifest line %d: duplicate media_id %s", lineNo, item.MediaID)
			continue
		}

		mediaItem := source.MediaItem{
			MediaID:     item.MediaID,
			ServiceID:   item.ServiceID,
			ProviderID:  item.ProviderID,
			Title:       item.Title,
			Description: item.Description,
			Category:    item.Category,
			Tags:        item.Tags,
			Format:      strings.ToLower(item.Format),
			StorageKey:  item.StorageKey,
		}
		if item.Filename != "" {
			mediaItem.LocalPath = filepath.Join(imagesPath, item.Filename)
			if _, err := os.Stat(mediaItem.LocalPath); err != nil {
				skipped++
				logger.CtxWarn(ctx, "Skipping manifest line %d: image %s not found", lineNo, item.Filename)
				continue
			}
			if mediaItem.Format == "" {
				mediaItem.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(item.Filename)), ".")
			}
		} else if item.StorageKey == "" {
			skipped++
			logger.CtxWarn(ctx, "Skipping manifest line %d: neither filename nor storage_key set", lineNo)
			continue
		}

		seen[item.MediaID] = true
		a.items = append(a.items, mediaItem)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].MediaID < a.items[j].MediaID
	})

	logger.With(logger.Fields{
		logger.FieldCount: len(a.items),
		"skipped":         skipped,
	}).Info(ctx, "Loaded staging manifest %s", manifestPath)
	return nil
}

// ListStagingSources lists all available staging sources.
func ListStagingSources(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() {
			manifestPath := filepath.Join(basePath, entry.Name(), ManifestFileName)
			if _, err := os.Stat(manifestPath); err == nil {
				sources = append(sources, entry.Name())
			}
		}
	}

	return sources, nil
}
