package feedsync

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/internal/services/episodes"
	"github.com/podletter/newsletter-api/internal/services/podcasts"
)

// Config holds feed sync settings
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Service ingests episode metadata from podcast RSS feeds, upserting by
// GUID so repeated syncs are idempotent.
type Service struct {
	parser   *gofeed.Parser
	shows    podcasts.Repository
	episodes episodes.Repository
	timeout  time.Duration
}

// NewService creates a feed sync service
func NewService(shows podcasts.Repository, episodes episodes.Repository, cfg Config) *Service {
	parser := gofeed.NewParser()
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Service{
		parser:   parser,
		shows:    shows,
		episodes: episodes,
		timeout:  cfg.Timeout,
	}
}

// SyncFeed fetches one feed and upserts its show and episodes. Returns the
// number of episodes written.
func (s *Service) SyncFeed(ctx context.Context, feedURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	show := &models.Podcast{
		Title:       feed.Title,
		Description: feed.Description,
		FeedURL:     feedURL,
		ImageURL:    imageURL(feed),
		Language:    feed.Language,
		Active:      true,
		LastSyncAt:  time.Now().UTC(),
	}
	if feed.Author != nil {
		show.Author = feed.Author.Name
	}
	if err := s.shows.Upsert(ctx, show); err != nil {
		return 0, err
	}

	// Upsert may not populate the ID on conflict; resolve the stored row.
	stored, err := s.shows.GetByFeedURL(ctx, feedURL)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return 0, fmt.Errorf("show %s missing after upsert", feedURL)
	}

	batch := make([]models.Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		episode, ok := toEpisode(stored, feedURL, item)
		if !ok {
			continue
		}
		batch = append(batch, episode)
	}

	if err := s.episodes.Upsert(ctx, batch); err != nil {
		return 0, err
	}

	log.Printf("[INFO] Synced feed %s: %d of %d items ingested", feedURL, len(batch), len(feed.Items))
	return len(batch), nil
}

// SyncAll syncs every active show. Per-feed failures are logged and
// skipped so one broken feed does not abort the pass.
func (s *Service) SyncAll(ctx context.Context) error {
	shows, err := s.shows.ListActive(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, show := range shows {
		if _, err := s.SyncFeed(ctx, show.FeedURL); err != nil {
			log.Printf("[WARNING] Feed sync failed for %s: %v", show.FeedURL, err)
			failed++
		}
	}

	if failed > 0 {
		log.Printf("[WARNING] Feed sync pass completed with %d of %d feeds failing", failed, len(shows))
	}
	return nil
}

// toEpisode maps a feed item to an episode row. Items without a GUID or
// audio enclosure cannot be processed downstream and are skipped.
func toEpisode(show *models.Podcast, feedURL string, item *gofeed.Item) (models.Episode, bool) {
	if item.GUID == "" {
		return models.Episode{}, false
	}

	var audioURL, enclosureType string
	var enclosureLength int64
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio/") || enclosureType == "" {
			audioURL = enc.URL
			enclosureType = enc.Type
			enclosureLength, _ = strconv.ParseInt(enc.Length, 10, 64)
			if strings.HasPrefix(enc.Type, "audio/") {
				break
			}
		}
	}
	if audioURL == "" {
		return models.Episode{}, false
	}

	episode := models.Episode{
		PodcastID:       show.ID,
		GUID:            item.GUID,
		Title:           item.Title,
		Description:     item.Description,
		AudioURL:        audioURL,
		EnclosureType:   enclosureType,
		EnclosureLength: enclosureLength,
		FeedURL:         feedURL,
		FeedTitle:       show.Title,
	}

	if item.PublishedParsed != nil {
		episode.PublishedAt = item.PublishedParsed.UTC()
	}
	if item.ITunesExt != nil {
		if seconds, ok := parseDuration(item.ITunesExt.Duration); ok {
			episode.Duration = &seconds
		}
	}

	return episode, true
}

// parseDuration handles both "SS" and "HH:MM:SS" itunes duration formats
func parseDuration(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if !strings.Contains(raw, ":") {
		seconds, err := strconv.Atoi(raw)
		return seconds, err == nil
	}

	parts := strings.Split(raw, ":")
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// imageURL extracts the show image, if any
func imageURL(feed *gofeed.Feed) string {
	if feed.Image != nil {
		return feed.Image.URL
	}
	return ""
}
