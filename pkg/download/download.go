package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrFileTooLarge is returned when an audio file exceeds the configured
// size ceiling. Oversized files are rejected before any paid upload.
var ErrFileTooLarge = errors.New("audio file exceeds size limit")

// Options configures the download behavior
type Options struct {
	TempDir       string        // Directory for temporary files
	MaxSize       int64         // Maximum file size in bytes (0 = no limit)
	Timeout       time.Duration // Download timeout
	UserAgent     string        // User agent string
	ValidateAudio bool          // Validate content-type is audio
}

// DefaultOptions returns default download options
func DefaultOptions() Options {
	return Options{
		TempDir:       os.TempDir(),
		MaxSize:       100 * 1024 * 1024,
		Timeout:       5 * time.Minute,
		UserAgent:     "PodletterAPI/1.0",
		ValidateAudio: true,
	}
}

// Result contains information about a successful download
type Result struct {
	FilePath      string // Path to downloaded file
	ContentType   string // Content-Type from response
	ContentLength int64  // Size in bytes
}

// SizeMB returns the downloaded size in megabytes.
func (r *Result) SizeMB() float64 {
	return float64(r.ContentLength) / (1024 * 1024)
}

// Downloader fetches episode audio to temporary storage
type Downloader struct {
	client  *http.Client
	options Options
}

// NewDownloader creates a new downloader with the given options
func NewDownloader(options Options) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: options.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true, // Don't compress audio
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		options: options,
	}
}

// DownloadToTemp downloads a URL to a temporary file. Files larger than the
// configured ceiling fail with ErrFileTooLarge, either up front from the
// Content-Length header or mid-stream when the server does not report one.
func (d *Downloader) DownloadToTemp(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.options.UserAgent)
	req.Header.Set("Accept", "audio/*,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if d.options.ValidateAudio && !isAudioContentType(contentType) {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	if d.options.MaxSize > 0 && resp.ContentLength > d.options.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, resp.ContentLength, d.options.MaxSize)
	}

	tempFile, err := os.CreateTemp(d.options.TempDir, "episode_audio_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := d.copyBounded(resp.Body, tempFile)
	tempPath := tempFile.Name()
	tempFile.Close()

	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	return &Result{
		FilePath:      tempPath,
		ContentType:   contentType,
		ContentLength: written,
	}, nil
}

// copyBounded copies the body to file, failing once the ceiling is crossed.
func (d *Downloader) copyBounded(src io.Reader, dst *os.File) (int64, error) {
	if d.options.MaxSize <= 0 {
		n, err := io.Copy(dst, src)
		if err != nil {
			return n, fmt.Errorf("failed to download: %w", err)
		}
		return n, nil
	}

	limited := &io.LimitedReader{R: src, N: d.options.MaxSize + 1}
	n, err := io.Copy(dst, limited)
	if err != nil {
		return n, fmt.Errorf("failed to download: %w", err)
	}
	if n > d.options.MaxSize {
		return n, fmt.Errorf("%w: exceeded %d bytes", ErrFileTooLarge, d.options.MaxSize)
	}
	return n, nil
}

// CleanupTempFile removes a temporary file
func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}

	log.Printf("[DEBUG] Cleaning up temp file: %s", path)
	return os.Remove(path)
}

// isAudioContentType checks if content type is audio
func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "audio/") ||
		contentType == "application/octet-stream" // Some servers use this for audio
}
