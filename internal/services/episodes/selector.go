package episodes

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/internal/services/podcasts"
)

// TranscribedSet reports which episodes already have an active transcript
// record. Implemented by the transcript metadata store.
type TranscribedSet interface {
	ActiveEpisodeIDs(ctx context.Context) (map[uint]struct{}, error)
}

// CutoffSelector picks the episodes a worker run should process: recent
// episodes that carry provider lookup keys and do not yet have an active
// transcript record.
type CutoffSelector struct {
	episodes    Repository
	transcribed TranscribedSet
	shows       podcasts.Repository
	now         func() time.Time
}

// NewCutoffSelector creates a selector over the given stores
func NewCutoffSelector(episodes Repository, transcribed TranscribedSet, shows podcasts.Repository) *CutoffSelector {
	return &CutoffSelector{
		episodes:    episodes,
		transcribed: transcribed,
		shows:       shows,
		now:         time.Now,
	}
}

// Select returns candidate episodes, newest first, capped at
// params.MaxCandidates. A failing query is fatal for the run; an empty
// result is benign and simply yields a zero-episode run.
func (s *CutoffSelector) Select(ctx context.Context, params SelectorParams) ([]models.Episode, error) {
	cutoff := s.now().Add(-time.Duration(params.LookbackHours) * time.Hour)
	// Query twice the cap to leave room for the transcript filter below.
	queryLimit := params.MaxCandidates * 2

	candidates, err := s.episodes.RecentWithFeedKeys(ctx, cutoff, queryLimit)
	if err != nil {
		return nil, fmt.Errorf("selecting candidate episodes: %w", err)
	}

	// Widening fallback: a schema or relationship mismatch must not
	// silently yield zero candidates when episode data exists.
	if len(candidates) == 0 {
		candidates, err = s.widen(ctx, cutoff, queryLimit)
		if err != nil {
			return nil, err
		}
	}

	if len(candidates) == 0 {
		log.Printf("[INFO] No episodes published in the last %dh", params.LookbackHours)
		return nil, nil
	}

	if params.Recheck {
		candidates = mostRecentlyCreated(candidates, params.RecheckCount)
		log.Printf("[INFO] Recheck mode: reprocessing %d most recent episodes", len(candidates))
	} else {
		candidates, err = s.excludeTranscribed(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	if err := s.resolveShowRefs(ctx, candidates); err != nil {
		return nil, err
	}

	if len(candidates) > params.MaxCandidates {
		candidates = candidates[:params.MaxCandidates]
	}
	return candidates, nil
}

// widen retries the selection without the feed-key filters, then falls
// back to a client-side cutoff over all episodes.
func (s *CutoffSelector) widen(ctx context.Context, cutoff time.Time, limit int) ([]models.Episode, error) {
	log.Printf("[WARNING] Filtered episode query returned nothing, widening selection")

	candidates, err := s.episodes.Recent(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("widened episode query: %w", err)
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	all, err := s.episodes.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("full episode scan: %w", err)
	}

	var recent []models.Episode
	for _, ep := range all {
		if !ep.PublishedAt.Before(cutoff) {
			recent = append(recent, ep)
			if len(recent) == limit {
				break
			}
		}
	}
	return recent, nil
}

// excludeTranscribed drops episodes that already have an active record
func (s *CutoffSelector) excludeTranscribed(ctx context.Context, candidates []models.Episode) ([]models.Episode, error) {
	done, err := s.transcribed.ActiveEpisodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transcribed episodes: %w", err)
	}

	remaining := candidates[:0]
	for _, ep := range candidates {
		if _, ok := done[ep.ID]; !ok {
			remaining = append(remaining, ep)
		}
	}
	return remaining, nil
}

// resolveShowRefs fills in missing feed lookup keys from the show row
func (s *CutoffSelector) resolveShowRefs(ctx context.Context, candidates []models.Episode) error {
	for i := range candidates {
		if candidates[i].FeedURL != "" && candidates[i].FeedTitle != "" {
			continue
		}

		show, err := s.shows.GetByID(ctx, candidates[i].PodcastID)
		if err != nil {
			return fmt.Errorf("resolving show for episode %d: %w", candidates[i].ID, err)
		}
		if show == nil {
			log.Printf("[WARNING] Episode %d references missing podcast %d", candidates[i].ID, candidates[i].PodcastID)
			continue
		}

		if candidates[i].FeedURL == "" {
			candidates[i].FeedURL = show.FeedURL
		}
		if candidates[i].FeedTitle == "" {
			candidates[i].FeedTitle = show.Title
		}
	}
	return nil
}

// mostRecentlyCreated truncates to the n episodes synced most recently
func mostRecentlyCreated(episodes []models.Episode, n int) []models.Episode {
	sorted := make([]models.Episode, len(episodes))
	copy(sorted, episodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
