package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"songrec/internal/catalog"
	"songrec/internal/coverart"
	"songrec/internal/index"
	"songrec/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholder = "https://i.postimg.cc/0QNxYz4V/social.png"

// orthogonalCatalog has n songs "Song i" by "artisti" with unit basis vectors.
func orthogonalCatalog(t *testing.T, n int) *catalog.Catalog {
	t.Helper()
	songs := make([]models.Song, n)
	matrix := make([][]float32, n)
	for i := range songs {
		songs[i] = models.Song{Name: fmt.Sprintf("Song %d", i), Tags: fmt.Sprintf("artist%d indie", i)}
		matrix[i] = make([]float32, n)
		matrix[i][i] = 1
	}
	idx, err := index.Build(matrix, index.Cosine)
	require.NoError(t, err)
	c, err := catalog.New(songs, matrix, idx)
	require.NoError(t, err)
	return c
}

// lineCatalog places song i at x=i, so neighbours of song 0 are 1, 2, 3... in order.
func lineCatalog(t *testing.T, names ...string) *catalog.Catalog {
	t.Helper()
	songs := make([]models.Song, len(names))
	matrix := make([][]float32, len(names))
	for i, n := range names {
		songs[i] = models.Song{Name: n}
		matrix[i] = []float32{float32(i), 0}
	}
	idx, err := index.Build(matrix, index.L2)
	require.NoError(t, err)
	c, err := catalog.New(songs, matrix, idx)
	require.NoError(t, err)
	return c
}

type countingResolver struct {
	calls atomic.Int32
}

func (r *countingResolver) Lookup(_ context.Context, _ *coverart.Memo, song, artist string) string {
	r.calls.Add(1)
	return "https://img/" + artist + "/" + song
}

func TestRecommend_Orthogonal(t *testing.T) {
	c := orthogonalCatalog(t, 6)
	svc := NewRecommendService(c, &countingResolver{})

	names, covers := svc.Recommend(context.Background(), "Song 0", coverart.NewMemo())
	assert.ElementsMatch(t, []string{"Song 1", "Song 2", "Song 3", "Song 4", "Song 5"}, names)
	require.Len(t, covers, 5)
	for i, n := range names {
		assert.Contains(t, covers[i], n)
	}
}

func TestRecommend_OfflineMetadataService(t *testing.T) {
	c := orthogonalCatalog(t, 6)
	resolver := coverart.NewResolver(failingSearcher{}, coverart.Options{Placeholder: placeholder})
	svc := NewRecommendService(c, resolver)

	names, covers := svc.Recommend(context.Background(), "Song 0", coverart.NewMemo())
	assert.Len(t, names, 5)
	assert.Equal(t, []string{placeholder, placeholder, placeholder, placeholder, placeholder}, covers)
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("dial tcp: connection refused")
}

func TestRecommend_NotFound(t *testing.T) {
	r := &countingResolver{}
	svc := NewRecommendService(orthogonalCatalog(t, 6), r)

	names, covers := svc.Recommend(context.Background(), "No Such Song", nil)
	assert.Empty(t, names)
	assert.Empty(t, covers)
	assert.NotNil(t, names)
	assert.Equal(t, int32(0), r.calls.Load())

	items, found, err := svc.RecommendItems(context.Background(), "No Such Song", nil)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, items)
}

func TestRecommend_NeverIncludesQuery(t *testing.T) {
	c := orthogonalCatalog(t, 9)
	svc := NewRecommendService(c, &countingResolver{})

	for i := 0; i < 9; i++ {
		name := fmt.Sprintf("Song %d", i)
		names, _ := svc.Recommend(context.Background(), name, nil)
		assert.Len(t, names, MaxResults)
		assert.NotContains(t, names, name)
	}
}

func TestRecommend_SmallCatalog(t *testing.T) {
	tests := []struct {
		names []string
		want  []string
	}{
		{[]string{"only"}, []string{}},
		{[]string{"a", "b"}, []string{"b"}},
		{[]string{"a", "b", "c", "d"}, []string{"b", "c", "d"}},
	}
	for _, tt := range tests {
		svc := NewRecommendService(lineCatalog(t, tt.names...), &countingResolver{})
		names, covers := svc.Recommend(context.Background(), tt.names[0], nil)
		assert.Equal(t, tt.want, names)
		assert.Len(t, covers, len(tt.want))
	}
}

func TestRecommendItems_OrderAndArtist(t *testing.T) {
	c := lineCatalog(t, "q", "n1", "n2", "n3", "n4", "n5", "n6", "n7")
	svc := NewRecommendService(c, &countingResolver{})

	items, found, err := svc.RecommendItems(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, i+1, it.Rank)
		assert.Equal(t, fmt.Sprintf("n%d", i+1), it.Song)
		assert.Equal(t, "", it.Artist, "no tags means no artist")
		assert.InDelta(t, float64(i+1), float64(it.Distance), 1e-6)
	}
}

func TestRecommend_DuplicateNameUsesFirstRow(t *testing.T) {
	// the second "dup" sits next to the first, so it is a legitimate neighbour
	c := lineCatalog(t, "dup", "dup", "x", "y")
	svc := NewRecommendService(c, &countingResolver{})

	names, _ := svc.Recommend(context.Background(), "dup", nil)
	assert.Equal(t, []string{"dup", "x", "y"}, names)
}

func TestStream_StopsOnEmitError(t *testing.T) {
	r := &countingResolver{}
	svc := NewRecommendService(orthogonalCatalog(t, 6), r)
	stop := errors.New("client went away")

	n := 0
	found, err := svc.Stream(context.Background(), "Song 0", nil, func(models.RecItem) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	assert.True(t, found)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestRecommend_MemoBoundsCalls(t *testing.T) {
	searcher := &countingSearcher{}
	resolver := coverart.NewResolver(searcher, coverart.Options{Placeholder: placeholder})
	svc := NewRecommendService(orthogonalCatalog(t, 6), resolver)
	memo := coverart.NewMemo()

	svc.Recommend(context.Background(), "Song 0", memo)
	svc.Recommend(context.Background(), "Song 0", memo)
	assert.Equal(t, int32(5), searcher.calls.Load())
}

type countingSearcher struct {
	calls atomic.Int32
}

func (s *countingSearcher) Search(_ context.Context, song, _ string) (string, bool, error) {
	s.calls.Add(1)
	return "https://img/" + song, true, nil
}

func TestSongService(t *testing.T) {
	svc := NewSongService(lineCatalog(t, "Yellow", "Blue", "Yellow Submarine", "Yellow"))

	list := svc.Search("yellow", 0)
	assert.Equal(t, 4, list.Total)
	assert.Equal(t, []string{"Yellow", "Yellow Submarine"}, list.Songs)

	assert.Equal(t, []string{"Yellow"}, svc.Search("yel", 1).Songs)
	assert.NotNil(t, svc.Search("zzz", 5).Songs)
	assert.Equal(t, []string{"Yellow", "Blue", "Yellow Submarine"}, svc.All())
	assert.Equal(t, 4, svc.Count())
}
