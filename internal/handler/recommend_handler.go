package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"songrec/internal/coverart"
	"songrec/internal/logging"
	"songrec/internal/metrics"
	"songrec/internal/models"
	"songrec/internal/service"

	"github.com/gorilla/websocket"
)

type RecommendHandler struct {
	svc      *service.RecommendService
	upgrader websocket.Upgrader
}

// NewRecommendHandler accepts WebSocket upgrades from allowedOrigins; empty or "*" allows any.
func NewRecommendHandler(s *service.RecommendService, allowedOrigins []string) *RecommendHandler {
	return &RecommendHandler{
		svc: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			allowed = nil
			break
		}
	}
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// @Summary Recommendations for a song
// @Tags recommend
// @Produce json
// @Param song query string true "exact song name"
// @Success 200 {object} models.RecResult
// @Router /api/recommendations [get]
func (h *RecommendHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	song := r.URL.Query().Get("song")
	if strings.TrimSpace(song) == "" {
		writeError(w, r, http.StatusBadRequest, "song is required")
		return
	}

	items, found, err := h.svc.RecommendItems(r.Context(), song, MemoFromContext(r.Context()))
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("song", song).Msg("recommendation failed")
		writeError(w, r, http.StatusInternalServerError, "recommendation failed")
		return
	}

	writeJSON(w, r, http.StatusOK, models.RecResult{
		Song:        song,
		Found:       found,
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	})
}

const (
	wsWriteWait = 10 * time.Second
	wsIdle      = 5 * time.Minute
)

// @Summary Streamed recommendations (WebSocket)
// @Description Send {"song": "..."}; receive start, one item per recommendation, then done or not_found.
// @Tags recommend
// @Router /ws/recommendations [get]
func (h *RecommendHandler) GetRecommendationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, upgradeHeader(w))
	if err != nil {
		// Upgrade already replied with an HTTP error
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	ctx := r.Context()
	memo := MemoFromContext(ctx)
	log := logging.Ctx(ctx)

	send := func(msg models.WSMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(msg)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsIdle)); err != nil {
			log.Debug().Err(err).Msg("websocket read deadline")
			return
		}
		var req models.WSRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		if strings.TrimSpace(req.Song) == "" {
			if send(models.WSMessage{Type: "error", Error: "song is required"}) != nil {
				return
			}
			continue
		}

		if err := h.stream(ctx, req.Song, memo, send); err != nil {
			log.Debug().Err(err).Str("song", req.Song).Msg("websocket stream aborted")
			return
		}
	}
}

// upgradeHeader carries cookies set by middleware into the handshake response, which
// Upgrade writes itself instead of flushing w's headers.
func upgradeHeader(w http.ResponseWriter) http.Header {
	cookies := w.Header().Values("Set-Cookie")
	if len(cookies) == 0 {
		return nil
	}
	return http.Header{"Set-Cookie": cookies}
}

func (h *RecommendHandler) stream(ctx context.Context, song string, memo *coverart.Memo, send func(models.WSMessage) error) error {
	if err := send(models.WSMessage{Type: "start", Song: song}); err != nil {
		return err
	}

	var sendErr error
	count := 0
	found, err := h.svc.Stream(ctx, song, memo, func(it models.RecItem) error {
		count++
		sendErr = send(models.WSMessage{Type: "item", Song: song, Item: &it})
		return sendErr
	})
	switch {
	case sendErr != nil:
		return sendErr
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("song", song).Msg("recommendation failed")
		return send(models.WSMessage{Type: "error", Song: song, Error: "recommendation failed"})
	case !found:
		return send(models.WSMessage{Type: "not_found", Song: song})
	}
	return send(models.WSMessage{Type: "done", Song: song, Count: count})
}
