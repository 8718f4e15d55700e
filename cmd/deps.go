package cmd

import (
	"fmt"

	"github.com/podletter/newsletter-api/internal/api"
	"github.com/podletter/newsletter-api/internal/database"
	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/internal/services/cache"
	"github.com/podletter/newsletter-api/internal/services/episodes"
	"github.com/podletter/newsletter-api/internal/services/feedsync"
	"github.com/podletter/newsletter-api/internal/services/locks"
	"github.com/podletter/newsletter-api/internal/services/podcasts"
	"github.com/podletter/newsletter-api/internal/services/transcriber"
	"github.com/podletter/newsletter-api/internal/services/transcriptapi"
	"github.com/podletter/newsletter-api/internal/services/transcripts"
	"github.com/podletter/newsletter-api/internal/services/workers"
	"github.com/podletter/newsletter-api/pkg/config"
)

// components is the wired object graph shared by serve and worker commands
type components struct {
	db     *database.DB
	deps   api.Dependencies
	worker *workers.TranscriptWorker
	cache  *cache.MemoryCache
}

// buildComponents wires the full pipeline from configuration
func buildComponents(cfg *config.Config) (*components, error) {
	db, err := database.Initialize(cfg.Database.DSN, cfg.Database.LogQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	episodeRepo := episodes.NewRepository(db.DB)
	podcastRepo := podcasts.NewRepository(db.DB)
	transcriptRepo := transcripts.NewRepository(db.DB)
	store := transcripts.NewService(transcriptRepo)

	selector := episodes.NewCutoffSelector(episodeRepo, store, podcastRepo)

	memCache := cache.NewMemoryCache()
	provider := transcriptapi.NewClient(transcriptapi.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   cfg.Provider.Timeout,
		RateLimit: cfg.Provider.RateLimit,
		CacheTTL:  cfg.Provider.CacheTTL,
	}, memCache)

	blobs := transcripts.NewSupabaseBlobStore(cfg.Storage.URL, cfg.Storage.ServiceKey, cfg.Storage.Bucket)

	var fallback transcriber.Transcriber
	if cfg.Fallback.Enabled {
		fallback = transcriber.NewWhisperTranscriber(transcriber.Config{
			APIURL:        cfg.Fallback.APIURL,
			APIKey:        cfg.Fallback.APIKey,
			Model:         cfg.Fallback.Model,
			Timeout:       cfg.Fallback.Timeout,
			MaxFileSizeMB: cfg.Fallback.MaxFileSizeMB,
			UserAgent:     cfg.Sync.UserAgent,
		})
	}

	// Postgres gets a real cluster-wide advisory lock; sqlite deployments
	// are single-instance so an in-process lock suffices.
	var locker locks.Locker
	if database.IsPostgresDSN(cfg.Database.DSN) {
		locker = locks.NewPostgresLocker(db.DB)
	} else {
		locker = locks.NewMemoryLocker()
	}

	worker := workers.NewTranscriptWorker(
		selector, provider, fallback, blobs, store, locker,
		workerConfig(cfg),
	)

	sync := feedsync.NewService(podcastRepo, episodeRepo, feedsync.Config{
		Timeout:   cfg.Sync.Timeout,
		UserAgent: cfg.Sync.UserAgent,
	})

	return &components{
		db:     db,
		worker: worker,
		cache:  memCache,
		deps: api.Dependencies{
			DB:       db,
			Worker:   worker,
			Episodes: episodeRepo,
			Store:    store,
			Sync:     sync,
		},
	}, nil
}

// workerConfig maps configuration onto the worker's run settings
func workerConfig(cfg *config.Config) workers.Config {
	wc := workers.DefaultConfig()
	wc.LookbackHours = cfg.Worker.LookbackHours
	wc.MaxEpisodes = cfg.Worker.MaxEpisodes
	wc.BatchSize = cfg.Worker.BatchSize
	wc.BatchDelay = cfg.Worker.BatchDelay
	wc.UseLock = cfg.Worker.UseLock
	wc.Recheck = cfg.Worker.Recheck
	wc.RecheckCount = cfg.Worker.RecheckCount
	wc.FallbackEnabled = cfg.Fallback.Enabled
	wc.MaxFallbacksPerRun = cfg.Fallback.MaxPerRun

	if len(cfg.Fallback.Statuses) > 0 {
		kinds := make(map[transcriptapi.Kind]bool, len(cfg.Fallback.Statuses))
		for _, status := range cfg.Fallback.Statuses {
			if kind, ok := transcriptapi.KindForStatus(models.TranscriptStatus(status)); ok {
				kinds[kind] = true
			}
		}
		wc.FallbackKinds = kinds
	}
	return wc
}

// close releases long-lived resources
func (c *components) close() {
	if c.cache != nil {
		c.cache.Stop()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}
