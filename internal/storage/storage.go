package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key         string    `json:"name"`
	Size        int64     `json:"size_bytes"`
	ContentType string    `json:"type,omitempty"`
	Created     time.Time `json:"uploaded,omitempty"`
}

// SizeMB returns the object size in mebibytes.
func (o ObjectInfo) SizeMB() float64 {
	return float64(o.Size) / (1024 * 1024)
}

// TransferStats is what a single put or get reports back.
type TransferStats struct {
	Bytes   int64         `json:"bytes"`
	Elapsed time.Duration `json:"elapsed"`
}

// ObjectStorage captures the object-store operations the migration tooling needs.
//
// Missing local files and missing remote objects fail with an error wrapping
// ErrNotFound; every other I/O or network fault wraps ErrTransfer.
type ObjectStorage interface {
	// Bucket names the container objects are written to.
	Bucket() string
	// URL renders a user-facing address for key, e.g. gs://bucket/key.
	URL(key string) string

	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key, destPath string) (TransferStats, error)
	UploadFile(ctx context.Context, srcPath, key string) (TransferStats, error)
	UploadObject(ctx context.Context, key string, r io.Reader) (TransferStats, error)
}
