package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mboard/photoboard/internal/gphotos"
	"github.com/mboard/photoboard/internal/model"
	"github.com/mboard/photoboard/internal/token"
)

// Stats is the per-pass mutation summary, surfaced to logging and telemetry.
type Stats struct {
	Added   int
	Updated int
	Removed int
	Failed  int // items skipped because their fetch failed
}

// Syncer performs a single sync pass against one remote album. It is
// stateless between calls; all persistent state lives in the [Cache].
type Syncer struct {
	provider Provider
	cache    Cache
	albumID  string
	timeout  time.Duration // per network call
	log      *slog.Logger
}

// NewSyncer creates a Syncer wired to the given provider and cache. timeout
// bounds every network call of a pass (the full album listing, each item
// download); a timed-out call counts as a transient failure.
func NewSyncer(provider Provider, cache Cache, albumID string, timeout time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{provider: provider, cache: cache, albumID: albumID, timeout: timeout, log: logger}
}

// fetched pairs a built photo record with its downloaded content until the
// commit stage writes both.
type fetched struct {
	photo   *model.Photo
	content []byte
}

// Run executes one pass: list the remote album, diff against the cache,
// fetch new and changed items, commit upserts and deletes, then record the
// outcome in the sync state.
//
// Failure behavior follows the taxonomy: an authorization failure or a
// listing failure aborts with the cache untouched; a single item's fetch
// failure only skips that item; a cache write failure aborts the commit
// leaving the recorded known state unchanged so the next pass retries the
// same diff. Pass-level failures are recorded in the sync state's error
// field; the committed timestamp and known ID set change only on success.
func (s *Syncer) Run(ctx context.Context) (Stats, error) {
	stats, err := s.run(ctx)
	if err != nil {
		// Best effort: if the cache itself is failing this will too.
		_ = s.cache.SetSyncError(ctx, err.Error())
		return stats, err
	}
	return stats, nil
}

func (s *Syncer) run(ctx context.Context) (Stats, error) {
	var stats Stats

	// --- Listing ---------------------------------------------------------

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	items, err := s.provider.ListMediaItems(listCtx, s.albumID)
	cancel()
	if err != nil {
		if isAuthErr(err) {
			return stats, fmt.Errorf("listing album: %w", err)
		}
		return stats, fmt.Errorf("listing album (transient): %w", err)
	}

	// Deduplicate by ID, keeping first-seen order for display and letting
	// the last occurrence win for metadata.
	order := make([]string, 0, len(items))
	remote := make(map[string]gphotos.MediaItem, len(items))
	for _, item := range items {
		if _, seen := remote[item.ID]; !seen {
			order = append(order, item.ID)
		}
		remote[item.ID] = item
	}

	// --- Diffing ---------------------------------------------------------

	cachedPhotos, err := s.cache.Photos(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading cache: %w", err)
	}
	cached := make(map[string]*model.Photo, len(cachedPhotos))
	for _, p := range cachedPhotos {
		cached[p.ID] = p
	}

	var toRemove []string
	for id := range cached {
		if _, ok := remote[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	// --- Fetching --------------------------------------------------------

	results := make(map[string]fetched, len(order))
	failed := make(map[string]struct{})
	now := time.Now().UTC()

	for _, id := range order {
		item := remote[id]
		prior, exists := cached[id]
		if exists && prior.Fingerprint == item.Fingerprint() {
			continue // unchanged
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		content, err := s.provider.Download(fetchCtx, item)
		cancel()
		if err != nil {
			if isAuthErr(err) {
				return stats, fmt.Errorf("downloading item %s: %w", id, err)
			}
			s.log.Error("item fetch failed, skipping for this pass", "id", id, "error", err)
			failed[id] = struct{}{}
			stats.Failed++
			continue
		}

		name, extra := model.ParseDescription(item.Description)
		results[id] = fetched{
			photo: &model.Photo{
				ID:          id,
				Name:        name,
				ExtraLines:  extra,
				Fingerprint: item.Fingerprint(),
				FileName:    contentFileName(item),
				FetchedAt:   now,
			},
			content: content,
		}
	}

	// --- Committing ------------------------------------------------------

	for _, id := range order {
		r, ok := results[id]
		if !ok {
			continue
		}
		if err := s.cache.UpsertPhoto(ctx, r.photo, r.content); err != nil {
			return stats, fmt.Errorf("cache write: %w", err)
		}
		if _, existed := cached[id]; existed {
			stats.Updated++
		} else {
			stats.Added++
		}
	}

	for _, id := range toRemove {
		if err := s.cache.DeletePhoto(ctx, id); err != nil {
			return stats, fmt.Errorf("cache write: %w", err)
		}
		stats.Removed++
	}

	// The known set mirrors what is actually cached now: every listed item
	// except adds that failed to fetch (an update failure keeps the prior
	// version cached, so the item stays known).
	known := make([]string, 0, len(order))
	for _, id := range order {
		_, wasCached := cached[id]
		_, failedNow := failed[id]
		if failedNow && !wasCached {
			continue
		}
		known = append(known, id)
	}
	if err := s.cache.SetSyncSuccess(ctx, known, now); err != nil {
		return stats, fmt.Errorf("cache write: %w", err)
	}

	s.log.Info("sync pass complete",
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"failed", stats.Failed,
	)
	return stats, nil
}

// isAuthErr reports whether err means the credentials are invalid or
// unrefreshable, which aborts the whole pass.
func isAuthErr(err error) bool {
	var ae *token.AuthError
	return errors.As(err, &ae) || errors.Is(err, gphotos.ErrUnauthorized)
}

// contentFileName derives the cache file name for a media item: the remote
// ID plus an extension from the upload filename, falling back to the MIME
// type.
func contentFileName(item gphotos.MediaItem) string {
	ext := filepath.Ext(item.Filename)
	if ext == "" {
		switch item.MimeType {
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		case "image/gif":
			ext = ".gif"
		case "image/webp":
			ext = ".webp"
		default:
			ext = ".img"
		}
	}
	return item.ID + ext
}
