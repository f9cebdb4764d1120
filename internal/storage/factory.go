package storage

import (
	"context"

	"github.com/andresuchdata/cloudmigrate/internal/config"
)

// New builds the ObjectStorage selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store ObjectStorage
		err   error
	)
	switch cfg.Backend {
	case config.BackendMinio:
		store, err = asStorage(NewMinioClient(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		}))
	case config.BackendSevalla:
		store, err = asStorage(NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		}))
	case config.BackendLocal:
		store, err = asStorage(NewLocalClient(cfg.LocalDir))
	default:
		store, err = asStorage(NewGCSClient(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			ProjectID:       cfg.ProjectID,
			CredentialsJSON: cfg.CredentialsJSON,
		}))
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// asStorage keeps a typed nil client from leaking out as a non-nil interface.
func asStorage[T ObjectStorage](client T, err error) (ObjectStorage, error) {
	if err != nil {
		return nil, err
	}
	return client, nil
}
