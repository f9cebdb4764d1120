package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig encapsulates the connection info for Google Cloud Storage.
type GCSConfig struct {
	Bucket    string
	ProjectID string
	// CredentialsJSON is a service-account key; empty means application default credentials.
	CredentialsJSON string
}

// GCSClient implements ObjectStorage for a single Google Cloud Storage bucket.
type GCSClient struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// NewGCSClient builds a client for cfg.Bucket billed to cfg.ProjectID.
func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcs project must be provided")
	}

	opts := []option.ClientOption{option.WithQuotaProject(cfg.ProjectID)}
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), gcs.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("unable to parse gcs credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create gcs client: %w", err)
	}

	return &GCSClient{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
	}, nil
}

func (c *GCSClient) Bucket() string { return c.name }

func (c *GCSClient) URL(key string) string {
	return fmt.Sprintf("gs://%s/%s", c.name, key)
}

// Close releases the underlying GCS client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}

// ListObjects lists all objects for a given prefix.
func (c *GCSClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := c.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	results := make([]ObjectInfo, 0)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, c.classify("list", prefix, err)
		}
		results = append(results, ObjectInfo{
			Key:         attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Created:     attrs.Created,
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *GCSClient) DownloadObject(ctx context.Context, key, destPath string) (TransferStats, error) {
	start := time.Now()

	reader, err := c.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return TransferStats{}, c.classify("download", key, err)
	}
	defer reader.Close()

	n, err := writeLocal(destPath, reader)
	if err != nil {
		return TransferStats{}, transferFailed("download", c.name, key, err)
	}
	return TransferStats{Bytes: n, Elapsed: time.Since(start)}, nil
}

// UploadFile uploads a local file to key.
func (c *GCSClient) UploadFile(ctx context.Context, srcPath, key string) (TransferStats, error) {
	start := time.Now()

	f, size, err := openLocal(srcPath)
	if err != nil {
		return TransferStats{}, localFailure("upload", c.name, key, err)
	}
	defer f.Close()

	if err := c.write(ctx, key, detectFileType(srcPath), f); err != nil {
		return TransferStats{}, err
	}
	return TransferStats{Bytes: size, Elapsed: time.Since(start)}, nil
}

// UploadObject streams r to key.
func (c *GCSClient) UploadObject(ctx context.Context, key string, r io.Reader) (TransferStats, error) {
	start := time.Now()

	contentType, body, err := sniffReader(r)
	if err != nil {
		return TransferStats{}, transferFailed("upload", c.name, key, err)
	}
	counter := &countingReader{r: body}
	if err := c.write(ctx, key, contentType, counter); err != nil {
		return TransferStats{}, err
	}
	return TransferStats{Bytes: counter.n, Elapsed: time.Since(start)}, nil
}

func (c *GCSClient) write(ctx context.Context, key, contentType string, r io.Reader) error {
	w := c.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return transferFailed("upload", c.name, key, err)
	}
	if err := w.Close(); err != nil {
		return c.classify("upload", key, err)
	}
	return nil
}

func (c *GCSClient) classify(op, key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return notFound(op, c.name, key, err)
	}
	return transferFailed(op, c.name, key, err)
}

var _ ObjectStorage = (*GCSClient)(nil)
