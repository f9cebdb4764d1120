package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg := LoadFrom(viper.New())

	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, 1, cfg.Transfer.Workers)
	assert.Zero(t, cfg.Transfer.ItemTimeout)
	assert.Equal(t, "downloads", cfg.App.DownloadDir)
	assert.Equal(t, "data", cfg.App.DataDir)
	assert.Equal(t, uint64(42), cfg.App.Seed)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.ClaimTTL)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadFrom_Environment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", " MinIO ")
	t.Setenv("S3_BUCKET", "archive")
	t.Setenv("GCS_BUCKET_NAME", "ignored")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("TRANSFER_WORKERS", "8")
	t.Setenv("TRANSFER_ITEM_TIMEOUT", "30s")
	t.Setenv("GENERATOR_SEED", "7")

	cfg := LoadFrom(viper.New())

	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.Equal(t, "archive", cfg.Storage.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, 8, cfg.Transfer.Workers)
	assert.Equal(t, 30*time.Second, cfg.Transfer.ItemTimeout)
	assert.Equal(t, uint64(7), cfg.App.Seed)
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StorageConfig
		wantKey string
	}{
		{"gcs ok", StorageConfig{Backend: BackendGCS, Bucket: "b", ProjectID: "p"}, ""},
		{"gcs without bucket", StorageConfig{Backend: BackendGCS, ProjectID: "p"}, "GCS_BUCKET_NAME"},
		{"gcs without project", StorageConfig{Backend: BackendGCS, Bucket: "b"}, "GCP_PROJECT_ID"},
		{"minio without endpoint", StorageConfig{Backend: BackendMinio, Bucket: "b"}, "S3_ENDPOINT"},
		{"sevalla without keys", StorageConfig{Backend: BackendSevalla, Bucket: "b", Endpoint: "e"}, "S3_ACCESS_KEY"},
		{"local ok", StorageConfig{Backend: BackendLocal, LocalDir: "./x"}, ""},
		{"unknown backend", StorageConfig{Backend: "ftp"}, "STORAGE_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestConfigurationError_Message(t *testing.T) {
	err := &ConfigurationError{Key: "GCS_BUCKET_NAME", Reason: "must be set"}

	assert.Equal(t, "configuration: GCS_BUCKET_NAME must be set", err.Error())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "cloudmigrate", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cloudmigrate sslmode=disable", cfg.DSN())
}
