package transcripts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/podletter/newsletter-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transcript{}))
	return db
}

func TestRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	first := &models.Transcript{
		EpisodeID:     1,
		CurrentStatus: models.TranscriptStatusFull,
		Source:        models.TranscriptSourcePrimary,
	}
	require.NoError(t, repo.Create(ctx, first))

	t.Run("second active row for the same episode conflicts", func(t *testing.T) {
		dup := &models.Transcript{EpisodeID: 1, CurrentStatus: models.TranscriptStatusFull}
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("soft-deleted row frees the slot", func(t *testing.T) {
		require.NoError(t, db.Delete(&models.Transcript{}, first.ID).Error)

		replacement := &models.Transcript{EpisodeID: 1, CurrentStatus: models.TranscriptStatusNoMatch}
		assert.NoError(t, repo.Create(ctx, replacement))
	})

	t.Run("nil transcript is rejected", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, nil))
	})
}

func TestRepositoryGetByEpisodeID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	row := &models.Transcript{EpisodeID: 7, CurrentStatus: models.TranscriptStatusPartial}
	require.NoError(t, repo.Create(ctx, row))

	got, err := repo.GetByEpisodeID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TranscriptStatusPartial, got.CurrentStatus)

	t.Run("missing episode returns nil", func(t *testing.T) {
		got, err := repo.GetByEpisodeID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("soft-deleted rows are invisible", func(t *testing.T) {
		require.NoError(t, db.Delete(&models.Transcript{}, row.ID).Error)

		got, err := repo.GetByEpisodeID(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRepositoryActiveEpisodeIDs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	for _, id := range []uint{1, 2, 3} {
		require.NoError(t, repo.Create(ctx, &models.Transcript{
			EpisodeID:     id,
			CurrentStatus: models.TranscriptStatusFull,
		}))
	}

	// Soft-delete one; it must drop out of the active set
	require.NoError(t, db.Where("episode_id = ?", 2).Delete(&models.Transcript{}).Error)

	ids, err := repo.ActiveEpisodeIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 3}, ids)
}

func TestRepositorySave(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	row := &models.Transcript{EpisodeID: 5, CurrentStatus: models.TranscriptStatusNotFound}
	require.NoError(t, repo.Create(ctx, row))

	row.CurrentStatus = models.TranscriptStatusFull
	row.Source = models.TranscriptSourceFallback
	row.WordCount = 321
	require.NoError(t, repo.Save(ctx, row))

	got, err := repo.GetByEpisodeID(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TranscriptStatusFull, got.CurrentStatus)
	assert.Equal(t, models.TranscriptSourceFallback, got.Source)
	assert.Equal(t, 321, got.WordCount)
}
