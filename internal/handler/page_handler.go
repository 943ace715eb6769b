package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"songrec/internal/logging"
	"songrec/internal/models"
	"songrec/internal/service"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type pageData struct {
	Songs      []string
	Selected   string
	Submitted  bool
	Found      bool
	Items      []models.RecItem
	CoversLive bool
}

// PageHandler renders the single-page UI. Submitting the form reloads / with ?song=.
type PageHandler struct {
	songs      *service.SongService
	recs       *service.RecommendService
	coversLive bool
	names      []string
}

func NewPageHandler(songs *service.SongService, recs *service.RecommendService, coversLive bool) *PageHandler {
	return &PageHandler{songs: songs, recs: recs, coversLive: coversLive, names: songs.All()}
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := pageData{Songs: h.names, CoversLive: h.coversLive}

	if r.URL.Query().Has("song") {
		data.Submitted = true
		data.Selected = r.URL.Query().Get("song")
		items, found, err := h.recs.RecommendItems(r.Context(), data.Selected, MemoFromContext(r.Context()))
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("song", data.Selected).Msg("recommendation failed")
			http.Error(w, "recommendation failed", http.StatusInternalServerError)
			return
		}
		data.Found, data.Items = found, items
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("render page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
