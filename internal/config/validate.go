package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints, then the settings the selected catalog source and
// cache backend need.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	checks := []func() error{
		c.validateSource,
		c.validateSpotify,
		c.validateCache,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSource() error {
	cat := c.Catalog
	switch cat.Source {
	case "local":
		if cat.Local.Dir == "" {
			return errors.New("catalog.local.dir is required for the local source")
		}
	case "http":
		if cat.HTTP.BaseURL == "" && (cat.HTTP.SongsURL == "" || cat.HTTP.IndexURL == "") {
			return errors.New("catalog.http needs base_url or both songs_url and index_url")
		}
		if cat.CacheDir == "" {
			return errors.New("catalog.cache_dir is required for the http source")
		}
	case "hub":
		if cat.Hub.Repo == "" {
			return errors.New("catalog.hub.repo is required for the hub source")
		}
		if cat.CacheDir == "" {
			return errors.New("catalog.cache_dir is required for the hub source")
		}
	case "s3":
		if cat.S3.Bucket == "" {
			return errors.New("catalog.s3.bucket is required for the s3 source")
		}
	case "minio":
		if cat.Minio.Endpoint == "" || cat.Minio.Bucket == "" {
			return errors.New("catalog.minio needs endpoint and bucket")
		}
	case "gridfs":
		if cat.Mongo.URI == "" || cat.Mongo.Database == "" {
			return errors.New("catalog.mongo needs uri and database for the gridfs source")
		}
	}
	return nil
}

func (c *Config) validateSpotify() error {
	s := c.Spotify
	if (s.ClientID == "") != (s.ClientSecret == "") {
		return errors.New("spotify.client_id and spotify.client_secret must be set together")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	case "badger":
		if c.Cache.BadgerPath == "" {
			return errors.New("cache.badger_path is required for the badger backend")
		}
	}
	return nil
}
