package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"songrec/internal/config"
)

// New builds the Source selected by cfg.Source.
func New(ctx context.Context, cfg config.CatalogConfig) (Source, error) {
	switch cfg.Source {
	case "", "local":
		return NewLocal(cfg.Local.Dir), nil
	case "http":
		urls := map[string]string{}
		if cfg.HTTP.SongsURL != "" {
			urls[cfg.SongsFile] = cfg.HTTP.SongsURL
		}
		if cfg.HTTP.IndexURL != "" {
			urls[cfg.IndexFile] = cfg.HTTP.IndexURL
		}
		var client *http.Client
		if cfg.HTTP.Timeout > 0 {
			client = &http.Client{Timeout: cfg.HTTP.Timeout}
		}
		return NewHTTP(cfg.HTTP.BaseURL, urls, cfg.CacheDir, client), nil
	case "hub":
		return NewHub(HubOptions{
			Endpoint: cfg.Hub.Endpoint,
			Repo:     cfg.Hub.Repo,
			RepoType: cfg.Hub.RepoType,
			Revision: cfg.Hub.Revision,
			Token:    cfg.Hub.Token,
			CacheDir: cfg.CacheDir,
		}), nil
	case "s3":
		return wrap(NewS3FromEnv(ctx, cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.Bucket, cfg.S3.Prefix))
	case "minio":
		m := cfg.Minio
		return wrap(NewMinio(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.Prefix, m.UseSSL))
	case "gridfs":
		return wrap(NewGridFS(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Bucket))
	}
	return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
}

// wrap keeps a failed constructor from yielding a non-nil Source holding a nil pointer.
func wrap[S Source](src S, err error) (Source, error) {
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Describe names an artifact for logs, e.g. "hub:dataset:owner/songs@main/songs_data.json".
func Describe(src Source, name string) string {
	return strings.TrimRight(src.String(), "/") + "/" + strings.TrimLeft(name, "/")
}
