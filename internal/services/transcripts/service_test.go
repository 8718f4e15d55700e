package transcripts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/podletter/newsletter-api/internal/models"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, transcript *models.Transcript) error {
	args := m.Called(ctx, transcript)
	return args.Error(0)
}

func (m *MockRepository) GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcript, error) {
	args := m.Called(ctx, episodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transcript), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, transcript *models.Transcript) error {
	args := m.Called(ctx, transcript)
	return args.Error(0)
}

func (m *MockRepository) ActiveEpisodeIDs(ctx context.Context) ([]uint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a new row", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, mock.AnythingOfType("*models.Transcript")).Return(nil)

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{
			EpisodeID:     42,
			CurrentStatus: models.TranscriptStatusFull,
		}, false)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("nil transcript is rejected", func(t *testing.T) {
		service := NewService(new(MockRepository))
		err := service.Insert(ctx, nil, false)
		assert.Error(t, err)
	})

	t.Run("duplicate in normal mode is a no-op", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{EpisodeID: 42}, false)

		require.NoError(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("duplicate in recheck mode overwrites and clears error detail", func(t *testing.T) {
		existing := &models.Transcript{
			EpisodeID:     42,
			InitialStatus: models.TranscriptStatusError,
			CurrentStatus: models.TranscriptStatusError,
			ErrorDetail:   "generation_error: connection reset",
		}

		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(existing, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(saved *models.Transcript) bool {
			return saved.CurrentStatus == models.TranscriptStatusFull &&
				saved.StoragePath == "7/ep-42.jsonl.gz" &&
				saved.WordCount == 100 &&
				saved.ErrorDetail == ""
		})).Return(nil)

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{
			EpisodeID:     42,
			CurrentStatus: models.TranscriptStatusFull,
			StoragePath:   "7/ep-42.jsonl.gz",
			WordCount:     100,
			Source:        models.TranscriptSourcePrimary,
		}, true)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("recheck overwrite keeps error detail when new status is error", func(t *testing.T) {
		existing := &models.Transcript{
			EpisodeID:     42,
			CurrentStatus: models.TranscriptStatusFull,
		}

		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey)
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(existing, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(saved *models.Transcript) bool {
			return saved.CurrentStatus == models.TranscriptStatusError &&
				saved.ErrorDetail == "generation_error: timeout"
		})).Return(nil)

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{
			EpisodeID:     42,
			CurrentStatus: models.TranscriptStatusError,
			ErrorDetail:   "generation_error: timeout",
		}, true)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("recheck retries create when conflicting row vanished", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything).Return(gorm.ErrDuplicatedKey).Once()
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(nil, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{EpisodeID: 42}, true)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("non-duplicate errors propagate", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{EpisodeID: 42}, false)
		assert.Error(t, err)
	})

	t.Run("error detail is truncated on the way in", func(t *testing.T) {
		long := strings.Repeat("x", models.MaxErrorDetailLen+50)

		repo := new(MockRepository)
		repo.On("Create", ctx, mock.MatchedBy(func(tr *models.Transcript) bool {
			return len(tr.ErrorDetail) == models.MaxErrorDetailLen
		})).Return(nil)

		service := NewService(repo)
		err := service.Insert(ctx, &models.Transcript{EpisodeID: 42, ErrorDetail: long}, false)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites the existing row", func(t *testing.T) {
		existing := &models.Transcript{
			EpisodeID:     42,
			CurrentStatus: models.TranscriptStatusNotFound,
			Source:        models.TranscriptSourcePrimary,
		}

		repo := new(MockRepository)
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(existing, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(saved *models.Transcript) bool {
			return saved.CurrentStatus == models.TranscriptStatusFull &&
				saved.Source == models.TranscriptSourceFallback &&
				saved.StoragePath == "3/ep-42.jsonl.gz" &&
				saved.WordCount == 250 &&
				saved.ErrorDetail == ""
		})).Return(nil)

		service := NewService(repo)
		err := service.Update(ctx, 42, FallbackUpdate{
			Status:      models.TranscriptStatusFull,
			Source:      models.TranscriptSourceFallback,
			StoragePath: "3/ep-42.jsonl.gz",
			WordCount:   250,
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("keeps existing storage path when update has none", func(t *testing.T) {
		existing := &models.Transcript{
			EpisodeID:   42,
			StoragePath: "3/ep-42.jsonl.gz",
		}

		repo := new(MockRepository)
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(existing, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(saved *models.Transcript) bool {
			return saved.StoragePath == "3/ep-42.jsonl.gz"
		})).Return(nil)

		service := NewService(repo)
		err := service.Update(ctx, 42, FallbackUpdate{
			Status:      models.TranscriptStatusError,
			Source:      models.TranscriptSourceFallback,
			ErrorDetail: "generation_error: primary: no_match; fallback: timeout",
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("missing row is an error", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByEpisodeID", ctx, uint(42)).Return(nil, nil)

		service := NewService(repo)
		err := service.Update(ctx, 42, FallbackUpdate{Status: models.TranscriptStatusFull})

		assert.Error(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestActiveEpisodeIDs(t *testing.T) {
	ctx := context.Background()

	repo := new(MockRepository)
	repo.On("ActiveEpisodeIDs", ctx).Return([]uint{1, 3, 5}, nil)

	service := NewService(repo)
	set, err := service.ActiveEpisodeIDs(ctx)

	require.NoError(t, err)
	assert.Len(t, set, 3)
	_, ok := set[3]
	assert.True(t, ok)
	_, ok = set[2]
	assert.False(t, ok)
}

func TestErrorDetailHelpers(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "download_error: connection refused", DownloadErrorDetail("connection refused"))
		assert.Equal(t, "generation_error: model overloaded", GenerationErrorDetail("model overloaded"))
	})

	t.Run("long strings are bounded with prefix intact", func(t *testing.T) {
		detail := GenerationErrorDetail(strings.Repeat("a", 500))
		assert.Len(t, detail, models.MaxErrorDetailLen)
		assert.True(t, strings.HasPrefix(detail, models.ErrorPrefixGeneration))
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		assert.Equal(t, "boom", TruncateErrorDetail("  boom  "))
	})
}
