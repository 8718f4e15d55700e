package podcasts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/podletter/newsletter-api/internal/models"
)

// Repository defines podcast (show) persistence. The transcript pipeline
// only reads shows, to enrich episodes with feed lookup keys; writes come
// from the feed sync path.
type Repository interface {
	GetByID(ctx context.Context, id uint) (*models.Podcast, error)
	GetByFeedURL(ctx context.Context, feedURL string) (*models.Podcast, error)
	ListActive(ctx context.Context) ([]models.Podcast, error)
	Upsert(ctx context.Context, podcast *models.Podcast) error
}

type repository struct {
	db *gorm.DB
}

// Ensure repository implements Repository
var _ Repository = (*repository)(nil)

// NewRepository creates a new podcast repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Podcast, error) {
	var podcast models.Podcast
	if err := r.db.WithContext(ctx).First(&podcast, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting podcast %d: %w", id, err)
	}
	return &podcast, nil
}

func (r *repository) GetByFeedURL(ctx context.Context, feedURL string) (*models.Podcast, error) {
	var podcast models.Podcast
	if err := r.db.WithContext(ctx).Where("feed_url = ?", feedURL).First(&podcast).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting podcast by feed URL: %w", err)
	}
	return &podcast, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Podcast, error) {
	var podcasts []models.Podcast
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&podcasts).Error; err != nil {
		return nil, fmt.Errorf("listing active podcasts: %w", err)
	}
	return podcasts, nil
}

// Upsert inserts the podcast or refreshes its mutable feed metadata when a
// row with the same feed URL already exists.
func (r *repository) Upsert(ctx context.Context, podcast *models.Podcast) error {
	if podcast == nil {
		return errors.New("podcast cannot be nil")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feed_url"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "description", "image_url", "language", "last_sync_at", "updated_at"}),
	}).Create(podcast).Error
	if err != nil {
		return fmt.Errorf("upserting podcast: %w", err)
	}
	return nil
}
