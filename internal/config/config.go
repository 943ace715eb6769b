package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Catalog CatalogConfig `koanf:"catalog"`
	Spotify SpotifyConfig `koanf:"spotify"`
	Cache   CacheConfig   `koanf:"cache"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	// SessionTTL is how long an idle UI session keeps its cover-art memo.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig selects where the songs table and the index artifact come from.
type CatalogConfig struct {
	Source      string        `koanf:"source" validate:"oneof=local http hub s3 minio gridfs"`
	SongsFile   string        `koanf:"songs_file" validate:"required"`
	IndexFile   string        `koanf:"index_file" validate:"required"`
	Metric      string        `koanf:"metric" validate:"omitempty,oneof=cosine l2 euclidean"`
	LoadTimeout time.Duration `koanf:"load_timeout" validate:"gt=0"`
	// CacheDir receives downloads for the http and hub sources.
	CacheDir string `koanf:"cache_dir"`

	Local LocalSourceConfig `koanf:"local"`
	HTTP  HTTPSourceConfig  `koanf:"http"`
	Hub   HubSourceConfig   `koanf:"hub"`
	S3    S3SourceConfig    `koanf:"s3"`
	Minio MinioSourceConfig `koanf:"minio"`
	Mongo MongoSourceConfig `koanf:"mongo"`
}

type LocalSourceConfig struct {
	Dir string `koanf:"dir"`
}

// HTTPSourceConfig downloads <BaseURL>/<file>, or the explicit per-artifact URLs when set.
type HTTPSourceConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"omitempty,url"`
	SongsURL string        `koanf:"songs_url" validate:"omitempty,url"`
	IndexURL string        `koanf:"index_url" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout"`
}

type HubSourceConfig struct {
	Endpoint string `koanf:"endpoint" validate:"omitempty,url"`
	Repo     string `koanf:"repo"`
	RepoType string `koanf:"repo_type" validate:"omitempty,oneof=dataset model space"`
	Revision string `koanf:"revision"`
	Token    string `koanf:"token"`
}

type S3SourceConfig struct {
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

type MinioSourceConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type MongoSourceConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
	Bucket   string `koanf:"bucket"`
}

// SpotifyConfig holds the metadata-service credentials. Either ClientID+ClientSecret
// (client credentials flow) or a static Token; none of them means cover art is disabled
// and every lookup returns Placeholder.
type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Token        string        `koanf:"token"`
	TokenURL     string        `koanf:"token_url" validate:"url"`
	APIURL       string        `koanf:"api_url" validate:"url"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	Placeholder  string        `koanf:"placeholder" validate:"required,url"`
	RateLimit    float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst        int           `koanf:"burst" validate:"min=1"`
	// VerifyOnStart fetches a token at startup and aborts when the credentials are rejected.
	VerifyOnStart bool `koanf:"verify_on_start"`
}

// CacheConfig configures the shared cover-art tier behind the per-session memo.
type CacheConfig struct {
	Backend       string        `koanf:"backend" validate:"oneof=none redis badger"`
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"min=0"`
	BadgerPath    string        `koanf:"badger_path"`
}

// Enabled reports whether any credentials were configured.
func (s SpotifyConfig) Enabled() bool {
	return s.Token != "" || (s.ClientID != "" && s.ClientSecret != "")
}
