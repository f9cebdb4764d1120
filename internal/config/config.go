// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends understood by storage.New.
const (
	BackendGCS     = "gcs"
	BackendMinio   = "minio"
	BackendSevalla = "sevalla"
	BackendLocal   = "local"
)

type Config struct {
	Storage  StorageConfig
	Transfer TransferConfig
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Server   ServerConfig
	Drive    DriveConfig
	Log      LogConfig
}

type StorageConfig struct {
	Backend string

	// GCS
	Bucket          string
	ProjectID       string
	CredentialsJSON string

	// S3-compatible (minio, sevalla)
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// local filesystem backend
	LocalDir string
}

type TransferConfig struct {
	Workers     int
	ItemTimeout time.Duration
}

type AppConfig struct {
	DownloadDir string
	DataDir     string
	Seed        uint64
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the connection string accepted by the pgx stdlib driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ClaimTTL      time.Duration
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the process environment once and returns the shared Config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()
		instance = LoadFrom(viper.GetViper())
	})

	return instance
}

// LoadFrom builds a Config from v after applying defaults and AutomaticEnv.
func LoadFrom(v *viper.Viper) *Config {
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	backend := strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND")))
	bucket := v.GetString("GCS_BUCKET_NAME")
	if backend != BackendGCS && v.GetString("S3_BUCKET") != "" {
		bucket = v.GetString("S3_BUCKET")
	}

	return &Config{
		Storage: StorageConfig{
			Backend:         backend,
			Bucket:          strings.TrimSpace(bucket),
			ProjectID:       strings.TrimSpace(v.GetString("GCP_PROJECT_ID")),
			CredentialsJSON: v.GetString("GCP_CREDENTIALS_JSON"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKey:       v.GetString("S3_ACCESS_KEY"),
			SecretKey:       v.GetString("S3_SECRET_KEY"),
			Region:          v.GetString("S3_REGION"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			LocalDir:        v.GetString("LOCAL_STORAGE_DIR"),
		},
		Transfer: TransferConfig{
			Workers:     v.GetInt("TRANSFER_WORKERS"),
			ItemTimeout: v.GetDuration("TRANSFER_ITEM_TIMEOUT"),
		},
		App: AppConfig{
			DownloadDir: v.GetString("APP_DOWNLOAD_DIR"),
			DataDir:     v.GetString("APP_DATA_DIR"),
			Seed:        v.GetUint64("GENERATOR_SEED"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("LEDGER_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			ClaimTTL:      v.GetDuration("CACHE_CLAIM_TTL"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("STORAGE_BACKEND", BackendGCS)
	v.SetDefault("GCS_BUCKET_NAME", "")
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("GCP_CREDENTIALS_JSON", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("LOCAL_STORAGE_DIR", "./data/bucket")
	v.SetDefault("TRANSFER_WORKERS", 1)
	v.SetDefault("TRANSFER_ITEM_TIMEOUT", "0s")
	v.SetDefault("APP_DOWNLOAD_DIR", "downloads")
	v.SetDefault("APP_DATA_DIR", "data")
	v.SetDefault("GENERATOR_SEED", 42)
	v.SetDefault("LEDGER_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cloudmigrate")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_CLAIM_TTL", "10m")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 300)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate checks the settings every storage command depends on.
func (c *Config) Validate() error {
	return c.Storage.Validate()
}

// Validate reports the first missing or invalid storage setting.
func (s StorageConfig) Validate() error {
	switch s.Backend {
	case BackendGCS:
		if s.Bucket == "" {
			return &ConfigurationError{Key: "GCS_BUCKET_NAME", Reason: "must be set"}
		}
		if s.ProjectID == "" {
			return &ConfigurationError{Key: "GCP_PROJECT_ID", Reason: "must be set"}
		}
	case BackendMinio, BackendSevalla:
		if s.Bucket == "" {
			return &ConfigurationError{Key: "S3_BUCKET", Reason: "must be set"}
		}
		if s.Endpoint == "" {
			return &ConfigurationError{Key: "S3_ENDPOINT", Reason: "must be set"}
		}
		if s.AccessKey == "" || s.SecretKey == "" {
			return &ConfigurationError{Key: "S3_ACCESS_KEY", Reason: "credentials must be provided"}
		}
	case BackendLocal:
		if s.LocalDir == "" {
			return &ConfigurationError{Key: "LOCAL_STORAGE_DIR", Reason: "must be set"}
		}
	default:
		return &ConfigurationError{Key: "STORAGE_BACKEND", Reason: fmt.Sprintf("unknown backend %q", s.Backend)}
	}
	return nil
}

// ConfigurationError reports a missing or invalid setting found at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Key, e.Reason)
}
