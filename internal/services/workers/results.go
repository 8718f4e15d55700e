package workers

import (
	"time"

	"github.com/podletter/newsletter-api/internal/models"
)

// ProcessingResult is the transient outcome of processing one episode in
// one run. It is folded into the transcript record and the run summary,
// never persisted directly.
type ProcessingResult struct {
	EpisodeID         uint
	GUID              string
	Status            models.TranscriptStatus
	StoragePath       string
	WordCount         int
	ElapsedMs         int64
	Err               string
	FallbackAttempted bool
	FallbackSucceeded bool
}

// RunSummary aggregates one worker run. It is returned to the caller and
// logged; it exists only for the duration of the run.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// Skipped is true when the advisory lock was held elsewhere and the
	// run never started. Distinguishes "no run" from "ran with failures".
	Skipped bool

	Total     int
	Processed int

	StatusCounts map[models.TranscriptStatus]int
	FailedGUIDs  []string

	FallbackAttempts  int
	FallbackSuccesses int
	FallbackFailures  int

	// QuotaExhausted is true when the run stopped early because the
	// provider signaled quota or rate-limit exhaustion.
	QuotaExhausted bool

	TotalElapsedMs int64
	AvgElapsedMs   int64
}

func newRunSummary(total int) *RunSummary {
	return &RunSummary{
		StartedAt:    time.Now(),
		Total:        total,
		StatusCounts: make(map[models.TranscriptStatus]int),
	}
}

// add folds one settled episode result into the summary. Called only from
// the sequential aggregation step, never from per-episode goroutines.
func (s *RunSummary) add(result ProcessingResult) {
	s.Processed++
	s.StatusCounts[result.Status]++
	s.TotalElapsedMs += result.ElapsedMs

	if result.Status == models.TranscriptStatusError {
		s.FailedGUIDs = append(s.FailedGUIDs, result.GUID)
	}
	if result.FallbackAttempted {
		if result.FallbackSucceeded {
			s.FallbackSuccesses++
		} else {
			s.FallbackFailures++
		}
	}
}

func (s *RunSummary) finalize(fallbackAttempts int) {
	s.FinishedAt = time.Now()
	s.FallbackAttempts = fallbackAttempts
	if s.Processed > 0 {
		s.AvgElapsedMs = s.TotalElapsedMs / int64(s.Processed)
	}
}

// ErrorCount returns the number of episodes that ended in an error status
func (s *RunSummary) ErrorCount() int {
	return s.StatusCounts[models.TranscriptStatusError]
}
