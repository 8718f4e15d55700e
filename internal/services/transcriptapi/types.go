package transcriptapi

import (
	"strings"

	"github.com/podletter/newsletter-api/internal/models"
)

// Kind is the closed set of outcomes a provider lookup can produce.
type Kind string

const (
	KindFull       Kind = "full"
	KindPartial    Kind = "partial"
	KindProcessing Kind = "processing"
	KindNotFound   Kind = "not_found"
	KindNoMatch    Kind = "no_match"
	KindError      Kind = "error"
)

// Kinds returns every valid result kind.
func Kinds() []Kind {
	return []Kind{KindFull, KindPartial, KindProcessing, KindNotFound, KindNoMatch, KindError}
}

// Valid reports whether k is a known result kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFull, KindPartial, KindProcessing, KindNotFound, KindNoMatch, KindError:
		return true
	}
	return false
}

// Status maps a result kind to the persisted transcript status. The switch
// is exhaustive over Kinds(); an unknown kind reports ok=false so new
// provider outcomes fail loudly instead of being silently persisted.
func (k Kind) Status() (models.TranscriptStatus, bool) {
	switch k {
	case KindFull:
		return models.TranscriptStatusFull, true
	case KindPartial:
		return models.TranscriptStatusPartial, true
	case KindProcessing:
		return models.TranscriptStatusProcessing, true
	case KindNotFound:
		return models.TranscriptStatusNotFound, true
	case KindNoMatch:
		return models.TranscriptStatusNoMatch, true
	case KindError:
		return models.TranscriptStatusError, true
	}
	return "", false
}

// KindForStatus maps a persisted transcript status back to the provider
// result kind it came from. Used to parse fallback-eligibility config,
// which is written in status names.
func KindForStatus(status models.TranscriptStatus) (Kind, bool) {
	switch status {
	case models.TranscriptStatusFull:
		return KindFull, true
	case models.TranscriptStatusPartial:
		return KindPartial, true
	case models.TranscriptStatusProcessing:
		return KindProcessing, true
	case models.TranscriptStatusNotFound:
		return KindNotFound, true
	case models.TranscriptStatusNoMatch:
		return KindNoMatch, true
	case models.TranscriptStatusError:
		return KindError, true
	}
	return "", false
}

// HasText reports whether this kind carries transcript text.
func (k Kind) HasText() bool {
	return k == KindFull || k == KindPartial
}

// Result is the tagged outcome of a single provider lookup.
type Result struct {
	Kind      Kind   `json:"kind"`
	Text      string `json:"text,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
	Err       string `json:"error,omitempty"`
}

// quotaPatterns are matched case-insensitively against provider error
// strings to detect quota/rate-limit exhaustion.
var quotaPatterns = []string{
	"429",
	"credits exceeded",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"credits_exceeded",
	"quota_exceeded",
}

// IsQuotaError reports whether an error message signals provider quota or
// rate-limit exhaustion. Once detected the worker stops starting new
// batches for the rest of the run.
func IsQuotaError(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, pattern := range quotaPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
