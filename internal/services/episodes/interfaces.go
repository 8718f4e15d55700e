package episodes

import (
	"context"
	"time"

	"github.com/podletter/newsletter-api/internal/models"
)

// Repository defines episode persistence. The transcript pipeline reads
// episodes; the feed sync path writes them.
type Repository interface {
	// RecentWithFeedKeys returns episodes published since the cutoff that
	// carry the keys the provider lookup requires (feed URL and GUID),
	// newest first.
	RecentWithFeedKeys(ctx context.Context, since time.Time, limit int) ([]models.Episode, error)

	// Recent returns episodes published since the cutoff without the
	// feed-key filters, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]models.Episode, error)

	// All returns every episode, newest first.
	All(ctx context.Context) ([]models.Episode, error)

	GetByGUID(ctx context.Context, guid string) (*models.Episode, error)

	// Upsert inserts episodes by GUID, refreshing mutable metadata on
	// conflict.
	Upsert(ctx context.Context, episodes []models.Episode) error
}

// SelectorParams configures one candidate-selection pass.
type SelectorParams struct {
	LookbackHours int
	MaxCandidates int
	Recheck       bool
	RecheckCount  int
}
