package handler

import (
	"net/http"
	"strconv"

	"songrec/internal/service"
)

type SongHandler struct {
	svc *service.SongService
}

func NewSongHandler(s *service.SongService) *SongHandler { return &SongHandler{svc: s} }

// @Summary Search song names
// @Tags songs
// @Produce json
// @Param q query string false "substring, prefix matches first"
// @Param limit query int false "max results (default 50, max 500)"
// @Success 200 {object} models.SongList
// @Router /api/songs [get]
func (h *SongHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, r, http.StatusOK, h.svc.Search(r.URL.Query().Get("q"), limit))
}
