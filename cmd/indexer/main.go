// Command indexer builds the index artifact for a songs table.
//
//	indexer -songs data/songs_data.json -out data/songs_index.srix.zst -metric cosine
//	indexer -source config -out songs_index.srix -publish
//
// With -source config the songs table is read through the catalog source configured for the
// API (local, http, hub, s3, minio or gridfs). -publish uploads the result to the GridFS
// bucket under catalog.mongo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"songrec/internal/catalog"
	"songrec/internal/config"
	"songrec/internal/db"
	"songrec/internal/index"
	"songrec/internal/logging"
	"songrec/internal/repository"
	"songrec/internal/source"
)

type options struct {
	songs   string
	out     string
	metric  index.Metric
	fromCfg bool
	publish bool
}

func main() {
	var (
		opts    options
		metric  string
		srcKind string
		verbose bool
	)
	flag.StringVar(&opts.songs, "songs", "", "songs table path (local file, or artifact name with -source config)")
	flag.StringVar(&opts.out, "out", "songs_index.srix", "output path; .gz, .zst and .lz4 are compressed")
	flag.StringVar(&metric, "metric", "cosine", "distance metric: cosine or l2")
	flag.StringVar(&srcKind, "source", "file", "where to read the songs table: file or config")
	flag.BoolVar(&opts.publish, "publish", false, "upload the index to the configured GridFS bucket")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := "info"
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})

	m, err := index.ParseMetric(metric)
	if err != nil {
		logging.Fatal().Err(err).Msg("metric")
	}
	opts.metric = m
	switch srcKind {
	case "file":
	case "config":
		opts.fromCfg = true
	default:
		logging.Fatal().Str("source", srcKind).Msg("-source must be file or config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logging.Fatal().Err(err).Msg("indexer failed")
	}
}

func run(ctx context.Context, opts options) error {
	var (
		cfg *config.Config
		src source.Source
	)
	if opts.fromCfg || opts.publish {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
	}

	songs := opts.songs
	if opts.fromCfg {
		var err error
		if src, err = source.New(ctx, cfg.Catalog); err != nil {
			return err
		}
		defer source.Close(src)
		if songs == "" {
			songs = cfg.Catalog.SongsFile
		}
	} else {
		if songs == "" {
			return errors.New("-songs is required")
		}
		src = source.NewLocal(filepath.Dir(songs))
		songs = filepath.Base(songs)
	}

	idx, err := buildIndex(ctx, src, songs, opts.metric)
	if err != nil {
		return err
	}
	if err := writeIndex(idx, opts.out); err != nil {
		return err
	}
	logging.Info().
		Str("songs", source.Describe(src, songs)).
		Str("out", opts.out).
		Int("rows", idx.Len()).
		Int("dim", idx.Dim()).
		Str("metric", string(idx.Metric())).
		Msg("index written")

	if opts.publish {
		return publish(ctx, cfg.Catalog.Mongo, opts.out)
	}
	return nil
}

// buildIndex decodes the songs table named name and indexes its feature rows in order.
func buildIndex(ctx context.Context, src source.Source, name string, metric index.Metric) (*index.Index, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	r, err := source.Decompress(name, rc)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	table, shape, err := catalog.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	logging.Debug().Str("shape", shape.String()).Int("rows", len(table.Songs)).Msg("songs decoded")

	return index.Build(table.Features, metric)
}

// writeIndex writes idx to path through a temp file so a failed run leaves no partial artifact.
func writeIndex(idx *index.Index, path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w, err := source.Compress(path, f)
	if err != nil {
		return err
	}
	if _, err = idx.WriteTo(w); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err = w.Close(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func publish(ctx context.Context, cfg config.MongoSourceConfig, path string) error {
	client, err := db.ConnectMongo(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo, err := repository.NewArtifactRepository(client.Database(cfg.Database), cfg.Bucket)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	if err := repo.Put(ctx, name, f); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	logging.Info().Str("name", name).Str("bucket", cfg.Bucket).Msg("index published to gridfs")
	return nil
}
