package handler

import "net/http"

type healthResponse struct {
	Status      string `json:"status"`
	Songs       int    `json:"songs"`
	CoverArt    string `json:"coverArt"`
	IndexMetric string `json:"indexMetric"`
}

type HealthHandler struct {
	songs       func() int
	coversLive  bool
	indexMetric string
}

func NewHealthHandler(songs func() int, coversLive bool, indexMetric string) *HealthHandler {
	return &HealthHandler{songs: songs, coversLive: coversLive, indexMetric: indexMetric}
}

// @Summary Healthcheck
// @Tags health
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	covers := "live"
	if !h.coversLive {
		covers = "placeholder-only"
	}
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:      "ok",
		Songs:       h.songs(),
		CoverArt:    covers,
		IndexMetric: h.indexMetric,
	})
}
