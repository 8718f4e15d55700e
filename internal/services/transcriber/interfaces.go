package transcriber

import "context"

// Result describes one fallback transcription attempt. Failures are
// reported in-band: the attempt already incurred cost either way.
type Result struct {
	Success          bool
	Transcript       string
	Err              string
	DownloadFailed   bool // failure happened before generation started
	ProcessingTimeMs int64
	FileSizeMB       float64
}

// Transcriber produces a transcript directly from episode audio. It is the
// paid escalation path used when the primary provider yields no usable
// text; the per-run cost ceiling is enforced by the caller.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*Result, error)
}
