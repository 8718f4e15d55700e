package transcripts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/podletter/newsletter-api/internal/models"
)

// repository implements Repository using GORM
type repository struct {
	db *gorm.DB
}

// Ensure repository implements Repository
var _ Repository = (*repository)(nil)

// NewRepository creates a new transcript repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts a new transcript row. Uniqueness violations surface as
// gorm.ErrDuplicatedKey for the caller to resolve.
func (r *repository) Create(ctx context.Context, transcript *models.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}

	if err := r.db.WithContext(ctx).Create(transcript).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("creating transcript: %w", err)
	}
	return nil
}

// GetByEpisodeID retrieves the active transcript row for an episode.
// Returns nil when no active row exists.
func (r *repository) GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcript, error) {
	var transcript models.Transcript

	err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).First(&transcript).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting transcript: %w", err)
	}
	return &transcript, nil
}

// Save writes back all fields of an existing row
func (r *repository) Save(ctx context.Context, transcript *models.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}

	if err := r.db.WithContext(ctx).Save(transcript).Error; err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}

// ActiveEpisodeIDs returns episode ids with an active transcript row.
// The default gorm scope already excludes soft-deleted rows.
func (r *repository) ActiveEpisodeIDs(ctx context.Context) ([]uint, error) {
	var ids []uint

	err := r.db.WithContext(ctx).
		Model(&models.Transcript{}).
		Pluck("episode_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing transcribed episode ids: %w", err)
	}
	return ids, nil
}
