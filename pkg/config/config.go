package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Export storage drivers.
const (
	ExportStorageLocal = "local"
	ExportStorageS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Store      StoreConfig
	Allocation AllocationConfig
	Cache      CacheConfig
	Exports    ExportsConfig
	Jobs       JobsConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the allocation store backend.
type StoreConfig struct {
	Driver string
}

// AllocationConfig tunes the consistency engine and the bulk processor.
type AllocationConfig struct {
	MaxTxRetries       int
	BulkMaxRows        int
	BulkChunkSize      int
	ResolveConcurrency int
	BcryptCost         int
}

// CacheConfig governs projection caching.
type CacheConfig struct {
	Enabled    bool
	SummaryTTL time.Duration
	SheetTTL   time.Duration
}

// ExportsConfig configures rendered projection storage.
type ExportsConfig struct {
	StorageDriver   string
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	S3              S3Config
}

// S3Config holds S3-compatible bucket settings for exports.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// JobsConfig sizes the background worker queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectTimeout: parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))}

	cfg.Allocation = AllocationConfig{
		MaxTxRetries:       v.GetInt("ALLOC_TX_MAX_RETRIES"),
		BulkMaxRows:        v.GetInt("ALLOC_BULK_MAX_ROWS"),
		BulkChunkSize:      v.GetInt("ALLOC_BULK_CHUNK_SIZE"),
		ResolveConcurrency: v.GetInt("ALLOC_RESOLVE_CONCURRENCY"),
		BcryptCost:         v.GetInt("ALLOC_BCRYPT_COST"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		SummaryTTL: parseDuration(v.GetString("CACHE_SUMMARY_TTL"), 5*time.Minute),
		SheetTTL:   parseDuration(v.GetString("CACHE_SHEET_TTL"), 2*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDriver:   strings.ToLower(v.GetString("EXPORTS_STORAGE_DRIVER")),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		S3: S3Config{
			Bucket:          v.GetString("EXPORTS_S3_BUCKET"),
			Region:          v.GetString("EXPORTS_S3_REGION"),
			Endpoint:        v.GetString("EXPORTS_S3_ENDPOINT"),
			PathStyle:       v.GetBool("EXPORTS_S3_PATH_STYLE"),
			AccessKeyID:     v.GetString("EXPORTS_S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("EXPORTS_S3_SECRET_ACCESS_KEY"),
		},
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hostel_allocation")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "hostel-allocation-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)

	v.SetDefault("ALLOC_TX_MAX_RETRIES", 3)
	v.SetDefault("ALLOC_BULK_MAX_ROWS", 2000)
	v.SetDefault("ALLOC_BULK_CHUNK_SIZE", 0)
	v.SetDefault("ALLOC_RESOLVE_CONCURRENCY", 4)
	v.SetDefault("ALLOC_BCRYPT_COST", 10)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_SUMMARY_TTL", "5m")
	v.SetDefault("CACHE_SHEET_TTL", "2m")

	v.SetDefault("EXPORTS_STORAGE_DRIVER", ExportStorageLocal)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_S3_BUCKET", "")
	v.SetDefault("EXPORTS_S3_REGION", "us-east-1")
	v.SetDefault("EXPORTS_S3_ENDPOINT", "")
	v.SetDefault("EXPORTS_S3_PATH_STYLE", false)

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
