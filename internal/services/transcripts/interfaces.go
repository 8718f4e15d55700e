package transcripts

import (
	"context"

	"github.com/podletter/newsletter-api/internal/models"
)

// Store persists transcript metadata rows with the unique-per-episode
// invariant. Both operations are idempotent with respect to that invariant.
type Store interface {
	// Insert records the outcome of a processing attempt. A uniqueness
	// conflict is a no-op in normal mode and an overwrite in recheck mode.
	Insert(ctx context.Context, transcript *models.Transcript, recheck bool) error

	// Update rewrites the active row for an episode after a fallback
	// attempt. A missing row is an operational error.
	Update(ctx context.Context, episodeID uint, update FallbackUpdate) error

	// GetByEpisodeID returns the active transcript row, or nil.
	GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcript, error)

	// ActiveEpisodeIDs returns the episode ids that already have an
	// active (non soft-deleted) transcript row.
	ActiveEpisodeIDs(ctx context.Context) (map[uint]struct{}, error)
}

// FallbackUpdate carries the fields the fallback path rewrites in place.
type FallbackUpdate struct {
	Status      models.TranscriptStatus
	Source      models.TranscriptSource
	StoragePath string
	WordCount   int
	ErrorDetail string
}

// Repository defines transcript row persistence
type Repository interface {
	Create(ctx context.Context, transcript *models.Transcript) error
	GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcript, error)
	Save(ctx context.Context, transcript *models.Transcript) error
	ActiveEpisodeIDs(ctx context.Context) ([]uint, error)
}

// BlobStore writes transcript text to durable object storage,
// content-addressed by show id and episode GUID. Writes are idempotent:
// re-running after a partial failure replaces the object.
type BlobStore interface {
	Write(ctx context.Context, showID uint, episodeGUID, text string) (string, error)
}
