package service

import (
	"songrec/internal/models"
)

const (
	DefaultSongLimit = 50
	MaxSongLimit     = 500
)

// SongDirectory is the part of the catalog used for listing and searching names.
type SongDirectory interface {
	Len() int
	Names() []string
	Search(query string, limit int) []string
}

type SongService struct {
	songs SongDirectory
}

func NewSongService(d SongDirectory) *SongService {
	return &SongService{songs: d}
}

// Search finds names containing q, prefix matches first. limit is clamped to
// [1, MaxSongLimit] and defaults to DefaultSongLimit.
func (s *SongService) Search(q string, limit int) models.SongList {
	if limit <= 0 {
		limit = DefaultSongLimit
	} else if limit > MaxSongLimit {
		limit = MaxSongLimit
	}
	names := s.songs.Search(q, limit)
	if names == nil {
		names = []string{}
	}
	return models.SongList{Total: s.songs.Len(), Songs: names}
}

// All lists every distinct name in catalog order, for the page selector.
func (s *SongService) All() []string {
	seen := make(map[string]struct{}, s.songs.Len())
	out := make([]string, 0, s.songs.Len())
	for _, n := range s.songs.Names() {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (s *SongService) Count() int { return s.songs.Len() }
