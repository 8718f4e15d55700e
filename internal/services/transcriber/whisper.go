package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/podletter/newsletter-api/pkg/download"
)

// Config holds configuration for the Whisper-compatible transcription API
type Config struct {
	APIURL        string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxFileSizeMB int
	TempDir       string
	UserAgent     string
}

// WhisperTranscriber downloads episode audio and submits it to a
// Whisper-compatible HTTP transcription API.
type WhisperTranscriber struct {
	httpClient *http.Client
	downloader *download.Downloader
	apiURL     string
	apiKey     string
	model      string
}

// Ensure WhisperTranscriber implements Transcriber
var _ Transcriber = (*WhisperTranscriber)(nil)

// NewWhisperTranscriber creates a fallback transcriber
func NewWhisperTranscriber(cfg Config) *WhisperTranscriber {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}

	downloadOpts := download.DefaultOptions()
	if cfg.MaxFileSizeMB > 0 {
		downloadOpts.MaxSize = int64(cfg.MaxFileSizeMB) * 1024 * 1024
	}
	if cfg.TempDir != "" {
		downloadOpts.TempDir = cfg.TempDir
	}
	if cfg.UserAgent != "" {
		downloadOpts.UserAgent = cfg.UserAgent
	}

	return &WhisperTranscriber{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		downloader: download.NewDownloader(downloadOpts),
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// transcriptionResponse is the Whisper API wire format
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe downloads the audio and submits it for transcription.
// Oversized files are rejected before upload so no generation cost is
// incurred for them.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioURL string) (*Result, error) {
	if audioURL == "" {
		return nil, errors.New("audio URL is required")
	}

	start := time.Now()

	dl, err := t.downloader.DownloadToTemp(ctx, audioURL)
	if err != nil {
		return &Result{
			Success:          false,
			Err:              fmt.Sprintf("audio download failed: %v", err),
			DownloadFailed:   true,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}
	defer func() {
		if err := download.CleanupTempFile(dl.FilePath); err != nil {
			log.Printf("[ERROR] Failed to cleanup temp file %s: %v", dl.FilePath, err)
		}
	}()

	log.Printf("[DEBUG] Downloaded audio for fallback transcription (%.2f MB)", dl.SizeMB())

	text, err := t.submit(ctx, dl.FilePath)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &Result{
			Success:          false,
			Err:              fmt.Sprintf("transcription failed: %v", err),
			ProcessingTimeMs: elapsed,
			FileSizeMB:       dl.SizeMB(),
		}, nil
	}

	return &Result{
		Success:          true,
		Transcript:       text,
		ProcessingTimeMs: elapsed,
		FileSizeMB:       dl.SizeMB(),
	}, nil
}

// submit posts the audio file to the transcription API as multipart form
// data and returns the transcript text.
func (t *WhisperTranscriber) submit(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Text == "" {
		return "", errors.New("API returned empty transcript")
	}

	return parsed.Text, nil
}
