package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig encapsulates the connection info for MinIO / S3-compatible storage.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioClient implements ObjectStorage on top of minio-go.
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient builds a MinioClient for cfg.Bucket.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	// minio-go wants a bare host; the scheme is carried by Secure.
	host := cfg.Endpoint
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(host, "https://"):
		host, secure = strings.TrimPrefix(host, "https://"), true
	case strings.HasPrefix(host, "http://"):
		host, secure = strings.TrimPrefix(host, "http://"), false
	}
	host = strings.TrimSuffix(host, "/")

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create minio client: %w", err)
	}

	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

func (c *MinioClient) Bucket() string { return c.bucket }

func (c *MinioClient) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", c.bucket, key)
}

// ListObjects lists all objects under prefix, recursively.
func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, c.classify("list", prefix, object.Err)
		}
		results = append(results, ObjectInfo{
			Key:         object.Key,
			Size:        object.Size,
			ContentType: object.ContentType,
			Created:     object.LastModified,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *MinioClient) DownloadObject(ctx context.Context, key, destPath string) (TransferStats, error) {
	start := time.Now()

	// GetObject is lazy; Stat surfaces a missing key before any local write.
	object, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return TransferStats{}, c.classify("download", key, err)
	}
	defer object.Close()
	if _, err := object.Stat(); err != nil {
		return TransferStats{}, c.classify("download", key, err)
	}

	n, err := writeLocal(destPath, object)
	if err != nil {
		return TransferStats{}, transferFailed("download", c.bucket, key, err)
	}
	return TransferStats{Bytes: n, Elapsed: time.Since(start)}, nil
}

// UploadFile uploads a local file to key.
func (c *MinioClient) UploadFile(ctx context.Context, srcPath, key string) (TransferStats, error) {
	start := time.Now()

	f, size, err := openLocal(srcPath)
	if err != nil {
		return TransferStats{}, localFailure("upload", c.bucket, key, err)
	}
	defer f.Close()

	info, err := c.client.PutObject(ctx, c.bucket, key, f, size, minio.PutObjectOptions{
		ContentType: detectFileType(srcPath),
	})
	if err != nil {
		return TransferStats{}, c.classify("upload", key, err)
	}
	return TransferStats{Bytes: info.Size, Elapsed: time.Since(start)}, nil
}

// UploadObject streams r to key with an unknown length.
func (c *MinioClient) UploadObject(ctx context.Context, key string, r io.Reader) (TransferStats, error) {
	start := time.Now()

	contentType, body, err := sniffReader(r)
	if err != nil {
		return TransferStats{}, transferFailed("upload", c.bucket, key, err)
	}
	info, err := c.client.PutObject(ctx, c.bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return TransferStats{}, c.classify("upload", key, err)
	}
	return TransferStats{Bytes: info.Size, Elapsed: time.Since(start)}, nil
}

func (c *MinioClient) classify(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return notFound(op, c.bucket, key, err)
	}
	return transferFailed(op, c.bucket, key, err)
}

var _ ObjectStorage = (*MinioClient)(nil)
