package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSongArtist(t *testing.T) {
	tests := []struct {
		tags string
		want string
	}{
		{"coldplay rock britpop", "coldplay"},
		{"  adele\tsoul", "adele"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Song{Name: "x", Tags: tt.tags}.Artist(), "tags %q", tt.tags)
	}
}
