// Package catalog holds the immutable song table, its feature matrix and the similarity
// index built over it. A Catalog is loaded once at startup and shared read-only.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"songrec/internal/index"
	"songrec/internal/logging"
	"songrec/internal/models"
	"songrec/internal/source"

	"golang.org/x/sync/errgroup"
)

// Options names the artifacts to load.
type Options struct {
	SongsFile string
	// IndexFile may be empty, in which case the index is built in memory with Metric.
	IndexFile string
	Metric    index.Metric
}

type Catalog struct {
	songs    []models.Song
	features [][]float32
	idx      *index.Index
	byName   map[string]int
}

// Load fetches the songs and index artifacts from src concurrently and checks that they
// describe the same rows.
func Load(ctx context.Context, src source.Source, opts Options) (*Catalog, error) {
	start := time.Now()

	var (
		table *Table
		shape Shape
		idx   *index.Index
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := fetch(gctx, src, opts.SongsFile)
		if err != nil {
			return err
		}
		table, shape, err = Decode(data)
		if err != nil {
			return formatErrorf(opts.SongsFile, err, "decode songs")
		}
		return nil
	})
	if opts.IndexFile != "" {
		g.Go(func() error {
			data, err := fetch(gctx, src, opts.IndexFile)
			if err != nil {
				return err
			}
			idx, err = index.Read(bytes.NewReader(data))
			if err != nil {
				return formatErrorf(opts.IndexFile, err, "decode index")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if idx == nil {
		metric := opts.Metric
		if metric == "" {
			metric = index.Cosine
		}
		var err error
		idx, err = index.Build(table.Features, metric)
		if err != nil {
			return nil, formatErrorf(opts.SongsFile, err, "build index")
		}
		logging.Warn().Str("metric", string(idx.Metric())).Msg("no index artifact configured, built index in memory")
	}

	c, err := New(table.Songs, table.Features, idx)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Artifact = opts.SongsFile + "+" + opts.IndexFile
		}
		return nil, err
	}

	logging.Info().
		Str("source", src.String()).
		Str("shape", shape.String()).
		Int("songs", c.Len()).
		Int("dim", c.Dim()).
		Str("metric", string(c.Metric())).
		Dur("took", time.Since(start)).
		Msg("catalog loaded")
	return c, nil
}

// fetch reads a whole artifact, decompressing by suffix.
func fetch(ctx context.Context, src source.Source, name string) ([]byte, error) {
	where := source.Describe(src, name)
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, &SourceUnavailableError{Artifact: where, Err: err}
	}
	// Decompress owns rc from here: closing r closes the decoder and then rc.
	r, err := source.Decompress(name, rc)
	if err != nil {
		return nil, formatErrorf(where, err, "decompress")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &SourceUnavailableError{Artifact: where, Err: err}
	}
	return data, nil
}

// New assembles a catalog from already decoded parts. songs, features and idx must have
// the same number of rows and every feature row must match idx.Dim().
func New(songs []models.Song, features [][]float32, idx *index.Index) (*Catalog, error) {
	if len(songs) != len(features) {
		return nil, formatErrorf("catalog", nil, "%d songs but %d feature rows", len(songs), len(features))
	}
	if idx.Len() != len(songs) {
		return nil, formatErrorf("catalog", nil, "%d songs but index holds %d vectors", len(songs), idx.Len())
	}
	for i, row := range features {
		if len(row) != idx.Dim() {
			return nil, formatErrorf("catalog", index.ErrDimensionMismatch, "row %d has %d components, index expects %d", i, len(row), idx.Dim())
		}
	}

	byName := make(map[string]int, len(songs))
	for i, s := range songs {
		if _, dup := byName[s.Name]; !dup {
			byName[s.Name] = i
		}
	}
	return &Catalog{songs: songs, features: features, idx: idx, byName: byName}, nil
}

func (c *Catalog) Len() int             { return len(c.songs) }
func (c *Catalog) Dim() int             { return c.idx.Dim() }
func (c *Catalog) Metric() index.Metric { return c.idx.Metric() }

// Song returns the record at row i.
func (c *Catalog) Song(i int) models.Song { return c.songs[i] }

// Vector returns a copy of the feature row i.
func (c *Catalog) Vector(i int) []float32 {
	return append([]float32(nil), c.features[i]...)
}

// Lookup returns the row of the first song named exactly name.
func (c *Catalog) Lookup(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// Names lists every song name in row order, duplicates included.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.songs))
	for i, s := range c.songs {
		names[i] = s.Name
	}
	return names
}

// Neighbors queries the index with row's feature vector. The row itself is normally the
// first hit.
func (c *Catalog) Neighbors(row, k int) ([]index.Hit, error) {
	return c.idx.Search(c.features[row], k)
}

// Search returns distinct names containing query (case-insensitive), names starting with
// query first, each group in row order. limit <= 0 means no limit.
func (c *Catalog) Search(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]struct{})
	var prefix, contains []string
	for _, s := range c.songs {
		if _, ok := seen[s.Name]; ok {
			continue
		}
		lower := strings.ToLower(s.Name)
		switch {
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, s.Name)
		case strings.Contains(lower, q):
			contains = append(contains, s.Name)
		default:
			continue
		}
		seen[s.Name] = struct{}{}
		if limit > 0 && len(prefix) >= limit {
			break
		}
	}

	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
