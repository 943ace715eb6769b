package models

import "strings"

// Song is one catalog row. Features live in the catalog matrix, not here.
type Song struct {
	Name string `json:"song" bson:"song"`
	Tags string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Artist returns the first whitespace-delimited word of the tags, the catalog's
// convention for the primary artist; "" when there are no tags.
func (s Song) Artist() string {
	fields := strings.Fields(s.Tags)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SongList is the payload of /api/songs.
type SongList struct {
	Total int      `json:"total"`
	Songs []string `json:"songs"`
}
