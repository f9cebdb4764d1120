package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/chartmuseum/storage"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla / S3-compatible services
// and, through NewLocalClient, for a directory on the local filesystem.
//
// Listing is one level deep: nested keys are not returned.
type SevallaClient struct {
	backend storage.Backend
	bucket  string
	scheme  string
	// root is set for the filesystem backend so listings can report sizes.
	root string
}

// NewSevallaClient builds a new SevallaClient backed by chartmuseum's Amazon storage backend.
func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"", // no prefix
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return &SevallaClient{
		backend: backend,
		bucket:  cfg.Bucket,
		scheme:  "s3",
	}, nil
}

// NewLocalClient stores objects as files under dir.
func NewLocalClient(dir string) (*SevallaClient, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage dir %s: %w", dir, err)
	}
	return &SevallaClient{
		backend: storage.NewLocalFilesystemBackend(dir),
		bucket:  filepath.Base(dir),
		scheme:  "file",
		root:    dir,
	}, nil
}

func (c *SevallaClient) Bucket() string { return c.bucket }

func (c *SevallaClient) URL(key string) string {
	if c.root != "" {
		return fmt.Sprintf("file://%s", filepath.ToSlash(filepath.Join(c.root, key)))
	}
	return fmt.Sprintf("%s://%s/%s", c.scheme, c.bucket, key)
}

// ListObjects lists all objects for a given prefix.
func (c *SevallaClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, c.classify("list", prefix, err)
	}
	results := make([]ObjectInfo, 0)
	for _, object := range files {
		key := object.Path
		if prefix != "" {
			key = path.Join(prefix, object.Path)
		}
		results = append(results, ObjectInfo{
			Key:     key,
			Size:    c.sizeOf(key, object),
			Created: object.LastModified,
		})
	}
	return results, nil
}

func (c *SevallaClient) sizeOf(key string, object storage.Object) int64 {
	if len(object.Content) > 0 || c.root == "" {
		return int64(len(object.Content))
	}
	info, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(key)))
	if err != nil {
		return 0
	}
	return info.Size()
}

// DownloadObject downloads an object to the provided destination path.
func (c *SevallaClient) DownloadObject(ctx context.Context, key, destPath string) (TransferStats, error) {
	start := time.Now()

	object, err := c.backend.GetObject(key)
	if err != nil {
		return TransferStats{}, c.classify("download", key, err)
	}
	n, err := writeLocal(destPath, bytes.NewReader(object.Content))
	if err != nil {
		return TransferStats{}, transferFailed("download", c.bucket, key, err)
	}
	return TransferStats{Bytes: n, Elapsed: time.Since(start)}, nil
}

// UploadFile uploads a local file to key.
func (c *SevallaClient) UploadFile(ctx context.Context, srcPath, key string) (TransferStats, error) {
	start := time.Now()

	f, _, err := openLocal(srcPath)
	if err != nil {
		return TransferStats{}, localFailure("upload", c.bucket, key, err)
	}
	defer f.Close()

	return c.put(key, f, start)
}

// UploadObject buffers r and stores it under key.
func (c *SevallaClient) UploadObject(ctx context.Context, key string, r io.Reader) (TransferStats, error) {
	return c.put(key, r, time.Now())
}

func (c *SevallaClient) put(key string, r io.Reader, start time.Time) (TransferStats, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return TransferStats{}, transferFailed("upload", c.bucket, key, err)
	}
	if err := c.backend.PutObject(key, content); err != nil {
		return TransferStats{}, c.classify("upload", key, err)
	}
	return TransferStats{Bytes: int64(len(content)), Elapsed: time.Since(start)}, nil
}

func (c *SevallaClient) classify(op, key string, err error) error {
	var aerr awserr.Error
	if errors.Is(err, fs.ErrNotExist) ||
		(errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket)) {
		return notFound(op, c.bucket, key, err)
	}
	return transferFailed(op, c.bucket, key, err)
}

var _ ObjectStorage = (*SevallaClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
