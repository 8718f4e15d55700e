package workers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/internal/services/episodes"
	"github.com/podletter/newsletter-api/internal/services/locks"
	"github.com/podletter/newsletter-api/internal/services/transcriber"
	"github.com/podletter/newsletter-api/internal/services/transcriptapi"
	"github.com/podletter/newsletter-api/internal/services/transcripts"
)

// LockKey names the cluster-wide advisory lock guarding worker runs
const LockKey = "podletter:transcript_worker"

// Selector picks the episodes a run should process
type Selector interface {
	Select(ctx context.Context, params episodes.SelectorParams) ([]models.Episode, error)
}

// Config holds per-run worker settings
type Config struct {
	LookbackHours int
	MaxEpisodes   int
	BatchSize     int
	BatchDelay    time.Duration
	UseLock       bool
	Recheck       bool
	RecheckCount  int

	FallbackEnabled    bool
	FallbackKinds      map[transcriptapi.Kind]bool
	MaxFallbacksPerRun int
}

// DefaultConfig returns the standard nightly-run settings
func DefaultConfig() Config {
	return Config{
		LookbackHours:      48,
		MaxEpisodes:        200,
		BatchSize:          50,
		BatchDelay:         100 * time.Millisecond,
		UseLock:            true,
		RecheckCount:       25,
		MaxFallbacksPerRun: 5,
		FallbackKinds: map[transcriptapi.Kind]bool{
			transcriptapi.KindNotFound: true,
			transcriptapi.KindNoMatch:  true,
			transcriptapi.KindError:    true,
		},
	}
}

// TranscriptWorker orchestrates one transcript acquisition run: acquire
// the lock, select candidates, fan out in bounded batches, aggregate,
// release the lock.
type TranscriptWorker struct {
	selector    Selector
	provider    transcriptapi.Provider
	transcriber transcriber.Transcriber
	blobs       transcripts.BlobStore
	store       transcripts.Store
	locker      locks.Locker
	config      Config
}

// NewTranscriptWorker creates a worker over the given collaborators.
// transcriber may be nil when fallback is disabled.
func NewTranscriptWorker(
	selector Selector,
	provider transcriptapi.Provider,
	fallback transcriber.Transcriber,
	blobs transcripts.BlobStore,
	store transcripts.Store,
	locker locks.Locker,
	config Config,
) *TranscriptWorker {
	return &TranscriptWorker{
		selector:    selector,
		provider:    provider,
		transcriber: fallback,
		blobs:       blobs,
		store:       store,
		locker:      locker,
		config:      config,
	}
}

// Run executes one worker pass. Only a selection failure escapes as an
// error; per-episode failures are folded into the summary and a held lock
// yields a skipped summary rather than an error.
func (w *TranscriptWorker) Run(ctx context.Context) (*RunSummary, error) {
	if w.config.UseLock && w.locker != nil {
		acquired, err := w.locker.TryAcquire(ctx, LockKey)
		if err != nil {
			// Lock-acquisition errors count as "not acquired"; the run
			// is skipped, never crashed.
			log.Printf("[WARNING] Advisory lock check failed, skipping run: %v", err)
			return &RunSummary{Skipped: true, StartedAt: time.Now(), FinishedAt: time.Now()}, nil
		}
		if !acquired {
			log.Printf("[INFO] Another worker instance holds the lock, skipping run")
			return &RunSummary{Skipped: true, StartedAt: time.Now(), FinishedAt: time.Now()}, nil
		}
		defer func() {
			if err := w.locker.Release(context.WithoutCancel(ctx), LockKey); err != nil {
				log.Printf("[ERROR] Failed to release advisory lock: %v", err)
			}
		}()
	}

	selected, err := w.selector.Select(ctx, episodes.SelectorParams{
		LookbackHours: w.config.LookbackHours,
		MaxCandidates: w.config.MaxEpisodes,
		Recheck:       w.config.Recheck,
		RecheckCount:  w.config.RecheckCount,
	})
	if err != nil {
		return nil, fmt.Errorf("episode selection failed: %w", err)
	}

	summary := newRunSummary(len(selected))
	state := newRunState(w.config.MaxFallbacksPerRun)

	log.Printf("[INFO] Transcript worker starting: %d episodes, batch size %d, recheck=%v",
		len(selected), w.config.BatchSize, w.config.Recheck)

	for start := 0; start < len(selected); start += w.config.BatchSize {
		if state.quotaTripped() {
			log.Printf("[WARNING] Provider quota exhausted, stopping after %d of %d episodes",
				summary.Processed, len(selected))
			summary.QuotaExhausted = true
			break
		}

		if start > 0 && w.config.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.BatchDelay):
			}
		}

		end := start + w.config.BatchSize
		if end > len(selected) {
			end = len(selected)
		}

		results := w.processBatch(ctx, selected[start:end], state)

		// Shared run state is only mutated here, after the batch has
		// fully settled.
		for _, result := range results {
			summary.add(result)
			if result.Status == models.TranscriptStatusError && transcriptapi.IsQuotaError(result.Err) {
				state.tripQuota()
			}
		}
	}

	summary.finalize(state.attempts())
	log.Printf("[INFO] Transcript worker finished: %d/%d processed, %d errors, %d fallback attempts (%d ok), quotaExhausted=%v, avg %dms",
		summary.Processed, summary.Total, summary.ErrorCount(),
		summary.FallbackAttempts, summary.FallbackSuccesses, summary.QuotaExhausted, summary.AvgElapsedMs)

	return summary, nil
}

// processBatch dispatches every episode in the batch concurrently and
// waits for all of them to settle. No single episode's failure aborts the
// batch; panics and errors become error results.
func (w *TranscriptWorker) processBatch(ctx context.Context, batch []models.Episode, state *runState) []ProcessingResult {
	results := make([]ProcessingResult, len(batch))

	var group errgroup.Group
	for i := range batch {
		i := i
		group.Go(func() error {
			episode := batch[i]
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[ERROR] Panic processing episode %s: %v", episode.GUID, r)
					results[i] = ProcessingResult{
						EpisodeID: episode.ID,
						GUID:      episode.GUID,
						Status:    models.TranscriptStatusError,
						Err:       fmt.Sprintf("panic: %v", r),
					}
				}
			}()
			results[i] = w.processEpisode(ctx, episode, state)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

// processEpisode runs the per-episode pipeline: provider fetch, optional
// fallback escalation, blob write, metadata upsert.
func (w *TranscriptWorker) processEpisode(ctx context.Context, episode models.Episode, state *runState) ProcessingResult {
	start := time.Now()
	result := ProcessingResult{EpisodeID: episode.ID, GUID: episode.GUID}
	defer func() {
		result.ElapsedMs = time.Since(start).Milliseconds()
	}()

	lookup, err := w.provider.Lookup(ctx, episode.FeedURL, episode.GUID)
	if err != nil {
		lookup = &transcriptapi.Result{Kind: transcriptapi.KindError, Err: err.Error()}
	}

	status, ok := lookup.Kind.Status()
	if !ok {
		status = models.TranscriptStatusError
		lookup.Err = fmt.Sprintf("unknown provider result kind %q", lookup.Kind)
	}
	result.Status = status
	result.Err = lookup.Err
	result.WordCount = lookup.WordCount

	// Persist the primary outcome first; a fallback success updates this
	// row in place.
	record := &models.Transcript{
		EpisodeID:     episode.ID,
		InitialStatus: status,
		CurrentStatus: status,
		WordCount:     lookup.WordCount,
		Source:        models.TranscriptSourcePrimary,
	}

	if lookup.Kind.HasText() {
		path, err := w.blobs.Write(ctx, episode.PodcastID, episode.GUID, lookup.Text)
		if err != nil {
			// Upload failure is fatal for this episode only.
			result.Status = models.TranscriptStatusError
			result.Err = err.Error()
			record.CurrentStatus = models.TranscriptStatusError
			record.InitialStatus = models.TranscriptStatusError
			record.ErrorDetail = transcripts.GenerationErrorDetail(err.Error())
			record.WordCount = 0
		} else {
			record.StoragePath = path
			result.StoragePath = path
		}
	} else if status == models.TranscriptStatusError {
		record.ErrorDetail = transcripts.GenerationErrorDetail(lookup.Err)
	}

	if err := w.store.Insert(ctx, record, w.config.Recheck); err != nil {
		result.Status = models.TranscriptStatusError
		result.Err = fmt.Sprintf("persisting transcript record: %v", err)
		return result
	}

	if w.shouldFallback(episode, lookup, state) {
		w.attemptFallback(ctx, episode, lookup, &result)
	}

	return result
}

// shouldFallback applies the escalation policy: fallback enabled, failure
// kind eligible, not a quota error, budget remaining, breaker not tripped.
// Claiming a budget slot counts as an attempt regardless of outcome.
func (w *TranscriptWorker) shouldFallback(episode models.Episode, lookup *transcriptapi.Result, state *runState) bool {
	if !w.config.FallbackEnabled || w.transcriber == nil {
		return false
	}
	if !w.config.FallbackKinds[lookup.Kind] {
		return false
	}
	if lookup.Kind == transcriptapi.KindError && transcriptapi.IsQuotaError(lookup.Err) {
		return false
	}
	if state.quotaTripped() {
		return false
	}
	if episode.AudioURL == "" {
		log.Printf("[WARNING] Episode %s has no audio URL, skipping fallback", episode.GUID)
		return false
	}
	if !state.reserveFallback() {
		// Budget exhausted is a soft limit, not an error.
		log.Printf("[INFO] Fallback budget exhausted (%d), leaving episode %s with status %s",
			w.config.MaxFallbacksPerRun, episode.GUID, lookup.Kind)
		return false
	}
	return true
}

// attemptFallback runs the paid transcriber and updates the existing
// record in place. On failure the result keeps the original primary
// status so the status taxonomy stays closed.
func (w *TranscriptWorker) attemptFallback(ctx context.Context, episode models.Episode, lookup *transcriptapi.Result, result *ProcessingResult) {
	result.FallbackAttempted = true

	log.Printf("[INFO] Attempting fallback transcription for episode %s (%s)", episode.GUID, lookup.Kind)

	attempt, err := w.transcriber.Transcribe(ctx, episode.AudioURL)
	if err != nil {
		attempt = &transcriber.Result{Success: false, Err: err.Error()}
	}

	if attempt.Success {
		path, err := w.blobs.Write(ctx, episode.PodcastID, episode.GUID, attempt.Transcript)
		if err != nil {
			attempt = &transcriber.Result{Success: false, Err: fmt.Sprintf("storing transcript: %v", err)}
		} else {
			wordCount := len(strings.Fields(attempt.Transcript))
			update := transcripts.FallbackUpdate{
				Status:      models.TranscriptStatusFull,
				Source:      models.TranscriptSourceFallback,
				StoragePath: path,
				WordCount:   wordCount,
			}
			if err := w.store.Update(ctx, episode.ID, update); err != nil {
				log.Printf("[ERROR] Fallback succeeded but record update failed for episode %s: %v", episode.GUID, err)
				result.Err = err.Error()
				return
			}

			result.Status = models.TranscriptStatusFull
			result.StoragePath = path
			result.WordCount = wordCount
			result.Err = ""
			result.FallbackSucceeded = true
			log.Printf("[INFO] Fallback transcription succeeded for episode %s (%d words, %.2f MB, %dms)",
				episode.GUID, wordCount, attempt.FileSizeMB, attempt.ProcessingTimeMs)
			return
		}
	}

	// Fallback failed: record both failure reasons but keep reporting the
	// original primary status externally.
	combined := fmt.Sprintf("primary: %s; fallback: %s", primaryReason(lookup), attempt.Err)
	detail := transcripts.GenerationErrorDetail(combined)
	if attempt.DownloadFailed {
		detail = transcripts.DownloadErrorDetail(combined)
	}
	update := transcripts.FallbackUpdate{
		Status:      models.TranscriptStatusError,
		Source:      models.TranscriptSourceFallback,
		WordCount:   0,
		ErrorDetail: detail,
	}
	if err := w.store.Update(ctx, episode.ID, update); err != nil {
		log.Printf("[ERROR] Failed to record fallback failure for episode %s: %v", episode.GUID, err)
	}

	result.Err = combined
	log.Printf("[WARNING] Fallback transcription failed for episode %s: %s", episode.GUID, attempt.Err)
}

// primaryReason describes why the primary provider yielded no text
func primaryReason(lookup *transcriptapi.Result) string {
	if lookup.Err != "" {
		return lookup.Err
	}
	return string(lookup.Kind)
}
