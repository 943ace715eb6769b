package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/songrec/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultPlaceholder is the cover shown when no artwork can be resolved.
const DefaultPlaceholder = "https://i.postimg.cc/0QNxYz4V/social.png"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			SessionTTL:        2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Source:      "local",
			SongsFile:   "songs_data.json",
			IndexFile:   "songs_index.srix",
			Metric:      "cosine",
			LoadTimeout: 5 * time.Minute,
			CacheDir:    ".cache/songrec",
			Local:       LocalSourceConfig{Dir: "data"},
			HTTP:        HTTPSourceConfig{Timeout: 5 * time.Minute},
			Hub: HubSourceConfig{
				Endpoint: "https://huggingface.co",
				RepoType: "dataset",
				Revision: "main",
			},
			S3:    S3SourceConfig{Region: "us-east-1"},
			Minio: MinioSourceConfig{UseSSL: true},
			Mongo: MongoSourceConfig{Database: "songrec", Bucket: "artifacts"},
		},
		Spotify: SpotifyConfig{
			TokenURL:      "https://accounts.spotify.com/api/token",
			APIURL:        "https://api.spotify.com/v1",
			Timeout:       5 * time.Second,
			Placeholder:   DefaultPlaceholder,
			RateLimit:     5,
			Burst:         5,
			VerifyOnStart: true,
		},
		Cache: CacheConfig{
			Backend:    "none",
			TTL:        7 * 24 * time.Hour,
			RedisAddr:  "localhost:6379",
			BadgerPath: ".cache/songrec/covers",
		},
	}
}

// Load builds the configuration from, lowest to highest priority: built-in defaults, an
// optional YAML file, then environment variables (a .env file in the working directory is
// read into the environment first).
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variables to config keys. Unlisted variables are ignored.
// SPOTIPY_* and HF_TOKEN keep the names the datasets' tooling already uses.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"session_ttl":           "server.session_ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"catalog_source":       "catalog.source",
	"catalog_songs_file":   "catalog.songs_file",
	"catalog_index_file":   "catalog.index_file",
	"catalog_metric":       "catalog.metric",
	"catalog_load_timeout": "catalog.load_timeout",
	"catalog_cache_dir":    "catalog.cache_dir",
	"catalog_dir":          "catalog.local.dir",

	"catalog_base_url":     "catalog.http.base_url",
	"catalog_songs_url":    "catalog.http.songs_url",
	"catalog_index_url":    "catalog.http.index_url",
	"catalog_http_timeout": "catalog.http.timeout",

	"hf_endpoint":  "catalog.hub.endpoint",
	"hf_repo":      "catalog.hub.repo",
	"hf_repo_type": "catalog.hub.repo_type",
	"hf_revision":  "catalog.hub.revision",
	"hf_token":     "catalog.hub.token",

	"s3_bucket":   "catalog.s3.bucket",
	"s3_prefix":   "catalog.s3.prefix",
	"s3_region":   "catalog.s3.region",
	"s3_endpoint": "catalog.s3.endpoint",

	"minio_endpoint":   "catalog.minio.endpoint",
	"minio_access_key": "catalog.minio.access_key",
	"minio_secret_key": "catalog.minio.secret_key",
	"minio_bucket":     "catalog.minio.bucket",
	"minio_prefix":     "catalog.minio.prefix",
	"minio_use_ssl":    "catalog.minio.use_ssl",

	"mongo_uri":    "catalog.mongo.uri",
	"mongo_db":     "catalog.mongo.database",
	"mongo_bucket": "catalog.mongo.bucket",

	"spotipy_client_id":       "spotify.client_id",
	"spotipy_client_secret":   "spotify.client_secret",
	"spotify_token":           "spotify.token",
	"spotify_token_url":       "spotify.token_url",
	"spotify_api_url":         "spotify.api_url",
	"spotify_timeout":         "spotify.timeout",
	"spotify_rate_limit":      "spotify.rate_limit",
	"spotify_burst":           "spotify.burst",
	"spotify_verify_on_start": "spotify.verify_on_start",
	"cover_placeholder_url":   "spotify.placeholder",

	"cover_cache_backend": "cache.backend",
	"cover_cache_ttl":     "cache.ttl",
	"redis_addr":          "cache.redis_addr",
	"redis_password":      "cache.redis_password",
	"redis_db":            "cache.redis_db",
	"badger_path":         "cache.badger_path",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
