package transcripts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/podletter/newsletter-api/internal/models"
)

// Service implements the Store interface
type Service struct {
	repo Repository
}

// Ensure Service implements Store
var _ Store = (*Service)(nil)

// NewService creates a new transcript metadata store
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Insert records the outcome of a processing attempt for an episode.
//
// On a uniqueness conflict (the episode already has an active row, e.g. a
// race with a concurrent run or a second selection pass):
//   - normal mode: idempotent no-op
//   - recheck mode: overwrite the existing row with the new outcome,
//     clearing error detail unless the new status is itself an error
func (s *Service) Insert(ctx context.Context, transcript *models.Transcript, recheck bool) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}

	transcript.ErrorDetail = TruncateErrorDetail(transcript.ErrorDetail)

	err := s.repo.Create(ctx, transcript)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	if !recheck {
		log.Printf("[DEBUG] Transcript for episode %d already exists, skipping insert", transcript.EpisodeID)
		return nil
	}

	existing, getErr := s.repo.GetByEpisodeID(ctx, transcript.EpisodeID)
	if getErr != nil {
		return fmt.Errorf("loading transcript for recheck overwrite: %w", getErr)
	}
	if existing == nil {
		// The conflicting row vanished between insert and load; retry once.
		return s.repo.Create(ctx, transcript)
	}

	existing.StoragePath = transcript.StoragePath
	existing.CurrentStatus = transcript.CurrentStatus
	existing.WordCount = transcript.WordCount
	existing.Source = transcript.Source
	if transcript.CurrentStatus == models.TranscriptStatusError {
		existing.ErrorDetail = transcript.ErrorDetail
	} else {
		existing.ErrorDetail = ""
	}

	log.Printf("[INFO] Recheck overwriting transcript for episode %d (status %s -> %s)",
		transcript.EpisodeID, existing.InitialStatus, transcript.CurrentStatus)
	return s.repo.Save(ctx, existing)
}

// Update rewrites the active row for an episode after a fallback attempt.
// The earlier Insert guarantees a row exists; its absence is an operational
// error, not a silent skip.
func (s *Service) Update(ctx context.Context, episodeID uint, update FallbackUpdate) error {
	existing, err := s.repo.GetByEpisodeID(ctx, episodeID)
	if err != nil {
		return err
	}
	if existing == nil {
		err := fmt.Errorf("no transcript row to update for episode %d", episodeID)
		log.Printf("[ERROR] %v", err)
		return err
	}

	existing.CurrentStatus = update.Status
	existing.Source = update.Source
	existing.WordCount = update.WordCount
	if update.StoragePath != "" {
		existing.StoragePath = update.StoragePath
	}
	existing.ErrorDetail = TruncateErrorDetail(update.ErrorDetail)

	return s.repo.Save(ctx, existing)
}

// GetByEpisodeID returns the active transcript row, or nil
func (s *Service) GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcript, error) {
	return s.repo.GetByEpisodeID(ctx, episodeID)
}

// ActiveEpisodeIDs returns the set of episode ids with an active row
func (s *Service) ActiveEpisodeIDs(ctx context.Context) (map[uint]struct{}, error) {
	ids, err := s.repo.ActiveEpisodeIDs(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// TruncateErrorDetail bounds a persisted error string to
// models.MaxErrorDetailLen characters, prefix included.
func TruncateErrorDetail(detail string) string {
	detail = strings.TrimSpace(detail)
	if len(detail) <= models.MaxErrorDetailLen {
		return detail
	}
	return detail[:models.MaxErrorDetailLen]
}

// DownloadErrorDetail formats a bounded error string for audio download
// failures.
func DownloadErrorDetail(msg string) string {
	return TruncateErrorDetail(fmt.Sprintf("%s %s", models.ErrorPrefixDownload, msg))
}

// GenerationErrorDetail formats a bounded error string for transcript
// generation failures.
func GenerationErrorDetail(msg string) string {
	return TruncateErrorDetail(fmt.Sprintf("%s %s", models.ErrorPrefixGeneration, msg))
}
