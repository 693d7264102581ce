// Package sync implements the photo board's synchronization engine. It
// mirrors one remote album into the local cache: list the album, diff it
// against the cached IDs and fingerprints, fetch new and changed items,
// evict removed ones, and commit the result.
//
// The package contains two main components:
//
//   - [Syncer] performs a single list-diff-fetch-commit pass.
//   - [Engine] runs passes on a periodic timer plus an on-demand trigger,
//     behind a single-flight guard.
package sync

import (
	"context"
	"time"

	"github.com/mboard/photoboard/internal/gphotos"
	"github.com/mboard/photoboard/internal/model"
)

// Provider lists the remote album and downloads item content.
// Implemented by [gphotos.Client].
type Provider interface {
	ListMediaItems(ctx context.Context, albumID string) ([]gphotos.MediaItem, error)
	Download(ctx context.Context, item gphotos.MediaItem) ([]byte, error)
}

// Cache is the durable local photo cache plus the sync state record.
// Implemented by [state.Store].
type Cache interface {
	Photos(ctx context.Context) ([]*model.Photo, error)
	UpsertPhoto(ctx context.Context, p *model.Photo, content []byte) error
	DeletePhoto(ctx context.Context, id string) error
	SetSyncSuccess(ctx context.Context, knownIDs []string, at time.Time) error
	SetSyncError(ctx context.Context, message string) error
}
