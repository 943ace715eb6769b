package models

import "time"

// RecItem is one recommended song as returned by the API.
type RecItem struct {
	Rank     int     `json:"rank"`
	Song     string  `json:"song"`
	Artist   string  `json:"artist"`
	CoverURL string  `json:"coverUrl"`
	Distance float32 `json:"distance"`
}

// RecResult is the response of /api/recommendations. Found=false means the song is not in
// the catalog, which is different from a song without neighbours.
type RecResult struct {
	Song        string    `json:"song"`
	Found       bool      `json:"found"`
	Items       []RecItem `json:"items"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ====== WebSocket messages (/ws/recommendations) ======

type WSRequest struct {
	Song string `json:"song"`
}

type WSMessage struct {
	Type  string   `json:"type"` // start|item|done|not_found|error
	Song  string   `json:"song,omitempty"`
	Item  *RecItem `json:"item,omitempty"`
	Count int      `json:"count,omitempty"`
	Error string   `json:"error,omitempty"`
}
