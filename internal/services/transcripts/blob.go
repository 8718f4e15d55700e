package transcripts

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

const blobContentType = "application/gzip"

// objectUploader is the slice of the storage client the blob store needs,
// kept narrow so tests can fake it.
type objectUploader interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
}

// transcriptLine is the single JSON line written per transcript object
type transcriptLine struct {
	EpisodeID  string    `json:"episodeId"`
	ShowID     uint      `json:"showId"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SupabaseBlobStore writes transcript bodies as gzip-compressed JSONL
// objects to the transcripts bucket, one object per episode.
type SupabaseBlobStore struct {
	uploader objectUploader
	bucket   string
	now      func() time.Time
}

// Ensure SupabaseBlobStore implements BlobStore
var _ BlobStore = (*SupabaseBlobStore)(nil)

// NewSupabaseBlobStore creates a blob store backed by Supabase storage
func NewSupabaseBlobStore(storageURL, serviceKey, bucket string) *SupabaseBlobStore {
	client := storage_go.NewClient(storageURL, serviceKey, nil)
	return &SupabaseBlobStore{
		uploader: client,
		bucket:   bucket,
		now:      time.Now,
	}
}

// NewBlobStoreWithUploader creates a blob store with a custom uploader.
// Used by tests.
func NewBlobStoreWithUploader(uploader objectUploader, bucket string) *SupabaseBlobStore {
	return &SupabaseBlobStore{
		uploader: uploader,
		bucket:   bucket,
		now:      time.Now,
	}
}

// ObjectPath returns the storage path for an episode's transcript object
func ObjectPath(showID uint, episodeGUID string) string {
	return fmt.Sprintf("%d/%s.jsonl.gz", showID, episodeGUID)
}

// Write serializes the transcript as one gzip-compressed JSON line and
// uploads it, overwriting any existing object so re-runs after a partial
// failure safely replace it.
func (s *SupabaseBlobStore) Write(ctx context.Context, showID uint, episodeGUID, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line, err := json.Marshal(transcriptLine{
		EpisodeID:  episodeGUID,
		ShowID:     showID,
		Transcript: text,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding transcript line: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("compressing transcript: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compressing transcript: %w", err)
	}

	path := ObjectPath(showID, episodeGUID)
	contentType := blobContentType
	upsert := true
	compressed := buf.Len()

	_, err = s.uploader.UploadFile(s.bucket, path, &buf, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("uploading transcript blob %s: %w", path, err)
	}

	log.Printf("[DEBUG] Wrote transcript blob %s (%d bytes compressed)", path, compressed)
	return path, nil
}
