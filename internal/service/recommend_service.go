package service

import (
	"context"
	"fmt"
	"time"

	"songrec/internal/coverart"
	"songrec/internal/index"
	"songrec/internal/logging"
	"songrec/internal/metrics"
	"songrec/internal/models"
)

const (
	// QueryK is the neighbour count asked from the index: the song itself plus five.
	QueryK = 6
	// MaxResults caps the recommendation list.
	MaxResults = 5
)

// Catalog is the read-only view of the song table the recommender needs.
type Catalog interface {
	Lookup(name string) (int, bool)
	Song(row int) models.Song
	Neighbors(row, k int) ([]index.Hit, error)
}

// CoverResolver finds a cover URL for a pair; it never fails.
type CoverResolver interface {
	Lookup(ctx context.Context, memo *coverart.Memo, song, artist string) string
}

type RecommendService struct {
	catalog Catalog
	covers  CoverResolver
}

func NewRecommendService(c Catalog, covers CoverResolver) *RecommendService {
	return &RecommendService{catalog: c, covers: covers}
}

// neighbours returns up to MaxResults hits for name, without name's own row, in index order.
func (s *RecommendService) neighbours(name string) ([]index.Hit, bool, error) {
	row, ok := s.catalog.Lookup(name)
	if !ok {
		return nil, false, nil
	}

	hits, err := s.catalog.Neighbors(row, QueryK)
	if err != nil {
		return nil, true, fmt.Errorf("neighbours of %q: %w", name, err)
	}

	out := make([]index.Hit, 0, MaxResults)
	for _, h := range hits {
		if h.Row == row {
			continue
		}
		out = append(out, h)
		if len(out) == MaxResults {
			break
		}
	}
	return out, true, nil
}

// Stream resolves the recommendations for name one at a time, calling emit as soon as
// each cover is known. found=false means name is not in the catalog.
func (s *RecommendService) Stream(ctx context.Context, name string, memo *coverart.Memo, emit func(models.RecItem) error) (found bool, err error) {
	start := time.Now()
	hits, found, err := s.neighbours(name)
	if err != nil {
		metrics.Recommendations.WithLabelValues("error").Inc()
		return found, err
	}
	defer func() { metrics.RecordRecommendation(found, time.Since(start)) }()
	if !found {
		logging.Ctx(ctx).Debug().Str("song", name).Msg("song not in catalog")
		return false, nil
	}

	for i, h := range hits {
		song := s.catalog.Song(h.Row)
		artist := song.Artist()
		item := models.RecItem{
			Rank:     i + 1,
			Song:     song.Name,
			Artist:   artist,
			CoverURL: s.covers.Lookup(ctx, memo, song.Name, artist),
			Distance: h.Distance,
		}
		if err := emit(item); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RecommendItems collects Stream into a slice. Items is empty, never nil, when the song
// is unknown.
func (s *RecommendService) RecommendItems(ctx context.Context, name string, memo *coverart.Memo) ([]models.RecItem, bool, error) {
	items := make([]models.RecItem, 0, MaxResults)
	found, err := s.Stream(ctx, name, memo, func(it models.RecItem) error {
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, found, err
	}
	return items, found, nil
}

// Recommend returns the recommended song names and their cover URLs, index-aligned.
// Both are empty when name is unknown.
func (s *RecommendService) Recommend(ctx context.Context, name string, memo *coverart.Memo) ([]string, []string) {
	items, _, err := s.RecommendItems(ctx, name, memo)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("song", name).Msg("recommendation failed")
		return []string{}, []string{}
	}

	names := make([]string, len(items))
	covers := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Song
		covers[i] = it.CoverURL
	}
	return names, covers
}
