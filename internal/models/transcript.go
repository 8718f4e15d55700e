package models

import (
	"time"

	"gorm.io/gorm"
)

// TranscriptStatus is the terminal state of a transcript acquisition attempt
type TranscriptStatus string

const (
	TranscriptStatusFull       TranscriptStatus = "full"
	TranscriptStatusPartial    TranscriptStatus = "partial"
	TranscriptStatusProcessing TranscriptStatus = "processing"
	TranscriptStatusNotFound   TranscriptStatus = "no_transcript_found"
	TranscriptStatusNoMatch    TranscriptStatus = "no_match"
	TranscriptStatusError      TranscriptStatus = "error"
)

// TranscriptSource identifies which provider produced the transcript text
type TranscriptSource string

const (
	TranscriptSourcePrimary  TranscriptSource = "primary"
	TranscriptSourceFallback TranscriptSource = "fallback"
)

// MaxErrorDetailLen bounds the persisted error string, including its
// category prefix. Shared convention with the notes pipeline.
const MaxErrorDetailLen = 260

// Error-detail category prefixes distinguishing failure phases.
const (
	ErrorPrefixDownload   = "download_error:"
	ErrorPrefixGeneration = "generation_error:"
)

// Transcript records the outcome of transcript acquisition for one episode.
// At most one active (non soft-deleted) row exists per episode; recheck mode
// soft-deletes and replaces. Soft-deleted rows remain for audit.
type Transcript struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	EpisodeID     uint             `gorm:"uniqueIndex:idx_transcripts_episode_active,where:deleted_at IS NULL" json:"episode_id"`
	StoragePath   string           `json:"storage_path"`
	InitialStatus TranscriptStatus `json:"initial_status"`
	CurrentStatus TranscriptStatus `json:"current_status" gorm:"index"`
	WordCount     int              `json:"word_count"`
	Source        TranscriptSource `json:"source"`
	ErrorDetail   string           `gorm:"size:260" json:"error_detail,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for Transcript
func (Transcript) TableName() string {
	return "transcripts"
}

// Active reports whether this is the live record for its episode.
func (t *Transcript) Active() bool {
	return !t.DeletedAt.Valid
}

// HasText reports whether transcript text was persisted to blob storage.
func (t *Transcript) HasText() bool {
	return t.CurrentStatus == TranscriptStatusFull || t.CurrentStatus == TranscriptStatusPartial
}
