package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/internal/services/episodes"
	"github.com/podletter/newsletter-api/internal/services/transcriber"
	"github.com/podletter/newsletter-api/internal/services/transcriptapi"
	"github.com/podletter/newsletter-api/internal/services/transcripts"
)

// fakeSelector returns a fixed episode list
type fakeSelector struct {
	episodes []models.Episode
	err      error
}

func (f *fakeSelector) Select(_ context.Context, _ episodes.SelectorParams) ([]models.Episode, error) {
	return f.episodes, f.err
}

// fakeProvider returns per-GUID results and counts lookups
type fakeProvider struct {
	mu      sync.Mutex
	results map[string]*transcriptapi.Result
	calls   int
}

func (f *fakeProvider) Lookup(_ context.Context, _, guid string) (*transcriptapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if result, ok := f.results[guid]; ok {
		return result, nil
	}
	return &transcriptapi.Result{Kind: transcriptapi.KindNotFound}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTranscriber counts attempts and returns a fixed result
type fakeTranscriber struct {
	mu     sync.Mutex
	result *transcriber.Result
	calls  int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (*transcriber.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeBlobStore records writes in memory
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string]string)}
}

func (f *fakeBlobStore) Write(_ context.Context, showID uint, guid, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := transcripts.ObjectPath(showID, guid)
	f.objects[path] = text
	return path, nil
}

// fakeStore keeps transcript rows keyed by episode id
type fakeStore struct {
	mu      sync.Mutex
	rows    map[uint]*models.Transcript
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uint]*models.Transcript)}
}

func (f *fakeStore) Insert(_ context.Context, t *models.Transcript, recheck bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if _, exists := f.rows[t.EpisodeID]; exists && !recheck {
		return nil
	}
	clone := *t
	f.rows[t.EpisodeID] = &clone
	return nil
}

func (f *fakeStore) Update(_ context.Context, episodeID uint, update transcripts.FallbackUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[episodeID]
	if !ok {
		return fmt.Errorf("no transcript row to update for episode %d", episodeID)
	}
	row.CurrentStatus = update.Status
	row.Source = update.Source
	row.WordCount = update.WordCount
	if update.StoragePath != "" {
		row.StoragePath = update.StoragePath
	}
	row.ErrorDetail = update.ErrorDetail
	return nil
}

func (f *fakeStore) GetByEpisodeID(_ context.Context, episodeID uint) (*models.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[episodeID], nil
}

func (f *fakeStore) ActiveEpisodeIDs(_ context.Context) (map[uint]struct{}, error) {
	return nil, nil
}

// fakeLocker records acquire/release calls
type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquires int
	releases int
}

func (f *fakeLocker) TryAcquire(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.err != nil {
		return false, f.err
	}
	return !f.held, nil
}

func (f *fakeLocker) Release(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.BatchDelay = 0
	cfg.UseLock = false
	cfg.FallbackEnabled = false
	return cfg
}

func TestRun_FullTranscriptRoundTrip(t *testing.T) {
	episode := models.Episode{PodcastID: 7, GUID: "ep-1", AudioURL: "https://cdn.example.com/ep-1.mp3", FeedURL: "https://example.com/feed.xml"}
	episode.ID = 1

	selector := &fakeSelector{episodes: []models.Episode{episode}}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{
		"ep-1": {Kind: transcriptapi.KindFull, Text: "Hello world", WordCount: 2},
	}}
	blobs := newFakeBlobStore()
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, nil, blobs, store, nil, testConfig())
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.StatusCounts[models.TranscriptStatusFull])
	assert.Equal(t, 0, summary.ErrorCount())

	assert.Equal(t, "Hello world", blobs.objects["7/ep-1.jsonl.gz"])

	row, _ := store.GetByEpisodeID(context.Background(), 1)
	require.NotNil(t, row)
	assert.Equal(t, models.TranscriptStatusFull, row.CurrentStatus)
	assert.Equal(t, models.TranscriptSourcePrimary, row.Source)
	assert.Equal(t, 2, row.WordCount)
	assert.Equal(t, "7/ep-1.jsonl.gz", row.StoragePath)
}

func TestRun_BatchIsolation(t *testing.T) {
	eps := make([]models.Episode, 5)
	results := make(map[string]*transcriptapi.Result, 5)
	for i := range eps {
		guid := fmt.Sprintf("ep-%d", i+1)
		eps[i] = models.Episode{PodcastID: 1, GUID: guid, FeedURL: "https://example.com/feed.xml"}
		eps[i].ID = uint(i + 1)
		results[guid] = &transcriptapi.Result{Kind: transcriptapi.KindFull, Text: "text", WordCount: 1}
	}
	// One episode in the batch fails at the provider
	results["ep-3"] = &transcriptapi.Result{Kind: transcriptapi.KindError, Err: "connection reset"}

	selector := &fakeSelector{episodes: eps}
	provider := &fakeProvider{results: results}
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, nil, newFakeBlobStore(), store, nil, testConfig())
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 4, summary.StatusCounts[models.TranscriptStatusFull])
	assert.Equal(t, 1, summary.ErrorCount())
	assert.Equal(t, []string{"ep-3"}, summary.FailedGUIDs)
}

func TestRun_QuotaBreakerStopsNewBatches(t *testing.T) {
	eps := make([]models.Episode, 4)
	results := make(map[string]*transcriptapi.Result, 4)
	for i := range eps {
		guid := fmt.Sprintf("ep-%d", i+1)
		eps[i] = models.Episode{PodcastID: 1, GUID: guid, FeedURL: "https://example.com/feed.xml"}
		eps[i].ID = uint(i + 1)
		results[guid] = &transcriptapi.Result{Kind: transcriptapi.KindFull, Text: "text", WordCount: 1}
	}
	// First episode trips the breaker
	results["ep-1"] = &transcriptapi.Result{Kind: transcriptapi.KindError, Err: "API returned status 429 too many requests"}

	cfg := testConfig()
	cfg.BatchSize = 1 // one episode per batch so the breaker takes effect immediately

	selector := &fakeSelector{episodes: eps}
	provider := &fakeProvider{results: results}

	worker := NewTranscriptWorker(selector, provider, nil, newFakeBlobStore(), newFakeStore(), nil, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.QuotaExhausted)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, provider.callCount(), "no further provider calls after quota exhaustion")
}

func TestRun_FallbackSuccess(t *testing.T) {
	episode := models.Episode{PodcastID: 3, GUID: "ep-1", AudioURL: "https://cdn.example.com/ep-1.mp3", FeedURL: "https://example.com/feed.xml"}
	episode.ID = 1

	cfg := testConfig()
	cfg.FallbackEnabled = true
	cfg.MaxFallbacksPerRun = 5

	selector := &fakeSelector{episodes: []models.Episode{episode}}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{
		"ep-1": {Kind: transcriptapi.KindNotFound},
	}}
	fallback := &fakeTranscriber{result: &transcriber.Result{Success: true, Transcript: "fallback text"}}
	store := newFakeStore()
	blobs := newFakeBlobStore()

	worker := NewTranscriptWorker(selector, provider, fallback, blobs, store, nil, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FallbackAttempts)
	assert.Equal(t, 1, summary.FallbackSuccesses)

	row, _ := store.GetByEpisodeID(context.Background(), 1)
	require.NotNil(t, row)
	assert.Equal(t, models.TranscriptStatusFull, row.CurrentStatus)
	assert.Equal(t, models.TranscriptSourceFallback, row.Source)
	assert.Empty(t, row.ErrorDetail)
	assert.Equal(t, "fallback text", blobs.objects["3/ep-1.jsonl.gz"])
}

func TestRun_FallbackFailureKeepsPrimaryStatus(t *testing.T) {
	episode := models.Episode{PodcastID: 3, GUID: "ep-1", AudioURL: "https://cdn.example.com/ep-1.mp3", FeedURL: "https://example.com/feed.xml"}
	episode.ID = 1

	cfg := testConfig()
	cfg.FallbackEnabled = true
	cfg.MaxFallbacksPerRun = 5

	selector := &fakeSelector{episodes: []models.Episode{episode}}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{
		"ep-1": {Kind: transcriptapi.KindNoMatch},
	}}
	fallback := &fakeTranscriber{result: &transcriber.Result{Success: false, Err: "model overloaded"}}
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, fallback, newFakeBlobStore(), store, nil, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	// Externally the episode keeps its primary status
	assert.Equal(t, 1, summary.StatusCounts[models.TranscriptStatusNoMatch])
	assert.Equal(t, 1, summary.FallbackFailures)

	// The record carries the combined failure detail
	row, _ := store.GetByEpisodeID(context.Background(), 1)
	require.NotNil(t, row)
	assert.Equal(t, models.TranscriptStatusError, row.CurrentStatus)
	assert.Equal(t, models.TranscriptSourceFallback, row.Source)
	assert.Contains(t, row.ErrorDetail, "no_match")
	assert.Contains(t, row.ErrorDetail, "model overloaded")
}

func TestRun_FallbackBudget(t *testing.T) {
	eps := make([]models.Episode, 4)
	for i := range eps {
		eps[i] = models.Episode{PodcastID: 1, GUID: fmt.Sprintf("ep-%d", i+1),
			AudioURL: "https://cdn.example.com/a.mp3", FeedURL: "https://example.com/feed.xml"}
		eps[i].ID = uint(i + 1)
	}

	cfg := testConfig()
	cfg.FallbackEnabled = true
	cfg.MaxFallbacksPerRun = 2
	cfg.BatchSize = 1 // sequential batches make the budget deterministic

	selector := &fakeSelector{episodes: eps}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{}} // all not_found
	fallback := &fakeTranscriber{result: &transcriber.Result{Success: false, Err: "boom"}}
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, fallback, newFakeBlobStore(), store, nil, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FallbackAttempts)
	assert.Equal(t, 2, fallback.callCount())
	// Over-budget episodes keep their primary status
	assert.Equal(t, 4, summary.StatusCounts[models.TranscriptStatusNotFound])
}

func TestRun_FallbackBudgetZero(t *testing.T) {
	episode := models.Episode{PodcastID: 1, GUID: "ep-1", AudioURL: "https://cdn.example.com/a.mp3", FeedURL: "https://example.com/feed.xml"}
	episode.ID = 1

	cfg := testConfig()
	cfg.FallbackEnabled = true
	cfg.MaxFallbacksPerRun = 0

	selector := &fakeSelector{episodes: []models.Episode{episode}}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{
		"ep-1": {Kind: transcriptapi.KindNoMatch},
	}}
	fallback := &fakeTranscriber{result: &transcriber.Result{Success: true, Transcript: "never used"}}
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, fallback, newFakeBlobStore(), store, nil, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, fallback.callCount())
	assert.Zero(t, summary.FallbackAttempts)

	row, _ := store.GetByEpisodeID(context.Background(), 1)
	require.NotNil(t, row)
	assert.Equal(t, models.TranscriptStatusNoMatch, row.CurrentStatus)
}

func TestRun_LockHeldSkipsRun(t *testing.T) {
	cfg := testConfig()
	cfg.UseLock = true

	selector := &fakeSelector{episodes: testNEpisodes(1)}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{}}
	locker := &fakeLocker{held: true}

	worker := NewTranscriptWorker(selector, provider, nil, newFakeBlobStore(), newFakeStore(), locker, cfg)
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Skipped)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, provider.callCount())
	assert.Zero(t, locker.releases, "lock is not released when never acquired")
}

func TestRun_LockErrorSkipsRun(t *testing.T) {
	cfg := testConfig()
	cfg.UseLock = true

	locker := &fakeLocker{err: errors.New("connection refused")}
	worker := NewTranscriptWorker(&fakeSelector{}, &fakeProvider{}, nil, newFakeBlobStore(), newFakeStore(), locker, cfg)

	summary, err := worker.Run(context.Background())
	require.NoError(t, err, "lock errors skip the run, never crash it")
	assert.True(t, summary.Skipped)
}

func TestRun_LockReleasedAfterRun(t *testing.T) {
	cfg := testConfig()
	cfg.UseLock = true

	locker := &fakeLocker{}
	worker := NewTranscriptWorker(&fakeSelector{episodes: testNEpisodes(1)}, &fakeProvider{}, nil, newFakeBlobStore(), newFakeStore(), locker, cfg)

	_, err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 1, locker.releases)
}

func TestRun_LockReleasedOnSelectionFailure(t *testing.T) {
	cfg := testConfig()
	cfg.UseLock = true

	locker := &fakeLocker{}
	selector := &fakeSelector{err: errors.New("relation does not exist")}
	worker := NewTranscriptWorker(selector, &fakeProvider{}, nil, newFakeBlobStore(), newFakeStore(), locker, cfg)

	_, err := worker.Run(context.Background())
	require.Error(t, err, "selection failure is fatal for the run")
	assert.Equal(t, 1, locker.releases, "lock is released even when the run fails")
}

func TestRun_UploadFailureDoesNotAbortBatch(t *testing.T) {
	eps := testNEpisodes(2)

	selector := &fakeSelector{episodes: eps}
	provider := &fakeProvider{results: map[string]*transcriptapi.Result{
		"ep-1": {Kind: transcriptapi.KindFull, Text: "text", WordCount: 1},
		"ep-2": {Kind: transcriptapi.KindProcessing},
	}}
	blobs := newFakeBlobStore()
	blobs.err = errors.New("bucket unavailable")
	store := newFakeStore()

	worker := NewTranscriptWorker(selector, provider, nil, blobs, store, nil, testConfig())
	summary, err := worker.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.ErrorCount())
	assert.Equal(t, 1, summary.StatusCounts[models.TranscriptStatusProcessing])
}

func testNEpisodes(n int) []models.Episode {
	eps := make([]models.Episode, n)
	for i := range eps {
		eps[i] = models.Episode{PodcastID: 1, GUID: fmt.Sprintf("ep-%d", i+1),
			AudioURL: "https://cdn.example.com/a.mp3", FeedURL: "https://example.com/feed.xml"}
		eps[i].ID = uint(i + 1)
	}
	return eps
}
