package episodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/podletter/newsletter-api/internal/models"
)

type repository struct {
	db *gorm.DB
}

// Ensure repository implements Repository
var _ Repository = (*repository)(nil)

// NewRepository creates a new episode repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecentWithFeedKeys(ctx context.Context, since time.Time, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := r.db.WithContext(ctx).
		Where("published_at >= ?", since).
		Where("feed_url <> ''").
		Where("guid <> ''").
		Order("published_at DESC").
		Limit(limit).
		Find(&episodes).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent episodes: %w", err)
	}
	return episodes, nil
}

func (r *repository) Recent(ctx context.Context, since time.Time, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := r.db.WithContext(ctx).
		Where("published_at >= ?", since).
		Order("published_at DESC").
		Limit(limit).
		Find(&episodes).Error
	if err != nil {
		return nil, fmt.Errorf("querying recent episodes: %w", err)
	}
	return episodes, nil
}

func (r *repository) All(ctx context.Context) ([]models.Episode, error) {
	var episodes []models.Episode
	err := r.db.WithContext(ctx).
		Order("published_at DESC").
		Find(&episodes).Error
	if err != nil {
		return nil, fmt.Errorf("querying all episodes: %w", err)
	}
	return episodes, nil
}

func (r *repository) GetByGUID(ctx context.Context, guid string) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("guid = ?", guid).First(&episode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting episode by GUID: %w", err)
	}
	return &episode, nil
}

// Upsert inserts episodes keyed by GUID, refreshing mutable feed metadata
// on conflict. Episode identity is otherwise immutable once synced.
func (r *repository) Upsert(ctx context.Context, episodes []models.Episode) error {
	if len(episodes) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "audio_url", "duration", "feed_title", "updated_at"}),
	}).Create(&episodes).Error
	if err != nil {
		return fmt.Errorf("upserting %d episodes: %w", len(episodes), err)
	}
	return nil
}
