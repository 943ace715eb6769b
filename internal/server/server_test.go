package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"songrec/internal/catalog"
	"songrec/internal/coverart"
	"songrec/internal/handler"
	"songrec/internal/index"
	"songrec/internal/models"
	"songrec/internal/service"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placeholder = "https://i.postimg.cc/0QNxYz4V/social.png"

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, song, artist string) (string, bool, error) {
	if artist == "unknown" {
		return "", false, nil
	}
	return "https://img/" + url.PathEscape(song) + ".jpg", true, nil
}

// countingSearcher counts lookups that reach the external service.
type countingSearcher struct {
	stubSearcher
	calls atomic.Int32
}

func (c *countingSearcher) Search(ctx context.Context, song, artist string) (string, bool, error) {
	c.calls.Add(1)
	return c.stubSearcher.Search(ctx, song, artist)
}

func testRouter(t *testing.T, searcher coverart.Searcher) http.Handler {
	t.Helper()
	return testRouterWith(t, searcher, coverart.NewSessions(time.Hour))
}

func testRouterWith(t *testing.T, searcher coverart.Searcher, sessions *coverart.Sessions) http.Handler {
	t.Helper()
	const n = 6
	songs := make([]models.Song, n)
	matrix := make([][]float32, n)
	for i := range songs {
		songs[i] = models.Song{Name: fmt.Sprintf("Song %d", i), Tags: fmt.Sprintf("artist%d rock", i)}
		matrix[i] = make([]float32, n)
		matrix[i][i] = 1
	}
	songs[5].Tags = "unknown"
	idx, err := index.Build(matrix, index.Cosine)
	require.NoError(t, err)
	cat, err := catalog.New(songs, matrix, idx)
	require.NoError(t, err)

	resolver := coverart.NewResolver(searcher, coverart.Options{Placeholder: placeholder})
	return NewRouter(Deps{
		Recommend:   service.NewRecommendService(cat, resolver),
		Songs:       service.NewSongService(cat),
		Sessions:    sessions,
		CoversLive:  resolver.Enabled(),
		IndexMetric: string(cat.Metric()),
		SessionTTL:  time.Hour,
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, testRouter(t, nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(6), body["songs"])
	assert.Equal(t, "placeholder-only", body["coverArt"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, testRouter(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "songrec_")
}

func TestAPIRecommendations(t *testing.T) {
	h := testRouter(t, stubSearcher{})

	rec := get(t, h, "/api/recommendations?song="+url.QueryEscape("Song 0"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"))

	var res models.RecResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Found)
	require.Len(t, res.Items, 5)
	for i, it := range res.Items {
		assert.Equal(t, i+1, it.Rank)
		assert.NotEqual(t, "Song 0", it.Song)
	}
	assert.Equal(t, placeholder, res.Items[4].CoverURL, "Song 5 has no match")
	assert.Equal(t, "https://img/Song%201.jpg", res.Items[0].CoverURL)
}

func TestAPIRecommendations_NotFound(t *testing.T) {
	rec := get(t, testRouter(t, stubSearcher{}), "/api/recommendations?song=Nope")
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.RecResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Found)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestAPIRecommendations_MissingSong(t *testing.T) {
	rec := get(t, testRouter(t, nil), "/api/recommendations")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPISongs(t *testing.T) {
	rec := get(t, testRouter(t, nil), "/api/songs?q=song&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var list models.SongList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 6, list.Total)
	assert.Equal(t, []string{"Song 0", "Song 1"}, list.Songs)
}

func TestPage(t *testing.T) {
	h := testRouter(t, nil)

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Show Recommendation")
	assert.Contains(t, body, `<option value="Song 3"`)
	assert.Contains(t, body, `data-state="service-unavailable"`)
	assert.NotContains(t, body, `class="card"`)

	rec = get(t, h, "/?song="+url.QueryEscape("Song 2"))
	body = rec.Body.String()
	assert.Equal(t, 5, strings.Count(body, `class="card"`))
	assert.Contains(t, body, placeholder)
	assert.Contains(t, body, `<option value="Song 2" selected>`)

	rec = get(t, h, "/?song=Missing")
	assert.Contains(t, rec.Body.String(), `data-state="not-found"`)
}

func TestSessionCookieReused(t *testing.T) {
	h := testRouter(t, stubSearcher{})

	first := get(t, h, "/api/recommendations?song="+url.QueryEscape("Song 0"))
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handler.SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations?song="+url.QueryEscape("Song 0"), nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies(), "existing session keeps its cookie")
}

func TestCookielessRepeatsShareMemo(t *testing.T) {
	searcher := &countingSearcher{}
	sessions := coverart.NewSessions(time.Hour)
	h := testRouterWith(t, searcher, sessions)

	for range 3 {
		rec := get(t, h, "/api/recommendations?song="+url.QueryEscape("Song 0"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Result().Cookies())
	}
	assert.LessOrEqual(t, searcher.calls.Load(), int32(5), "covers resolved once across cookieless calls")
	assert.Zero(t, sessions.Len(), "no session until the cookie comes back")

	first := get(t, h, "/api/recommendations?song="+url.QueryEscape("Song 0"))
	req := httptest.NewRequest(http.MethodGet, "/api/recommendations?song="+url.QueryEscape("Song 0"), nil)
	req.AddCookie(first.Result().Cookies()[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1, sessions.Len())
}

func TestWebSocketIssuesCookie(t *testing.T) {
	srv := httptest.NewServer(testRouter(t, stubSearcher{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/recommendations"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handler.SessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	header := http.Header{}
	header.Add("Cookie", cookies[0].Name+"="+cookies[0].Value)
	again, resp2, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer resp2.Body.Close()
	defer again.Close()
	assert.Empty(t, resp2.Cookies())
}

func TestWebSocketStream(t *testing.T) {
	srv := httptest.NewServer(testRouter(t, stubSearcher{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/recommendations"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(models.WSRequest{Song: "Song 1"}))

	var msgs []models.WSMessage
	for {
		var m models.WSMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&m))
		msgs = append(msgs, m)
		if m.Type == "done" || m.Type == "not_found" || m.Type == "error" {
			break
		}
	}
	require.Len(t, msgs, 7)
	assert.Equal(t, "start", msgs[0].Type)
	for _, m := range msgs[1:6] {
		assert.Equal(t, "item", m.Type)
		require.NotNil(t, m.Item)
		assert.NotEqual(t, "Song 1", m.Item.Song)
	}
	assert.Equal(t, "done", msgs[6].Type)
	assert.Equal(t, 5, msgs[6].Count)

	require.NoError(t, conn.WriteJSON(models.WSRequest{Song: "Nope"}))
	var m models.WSMessage
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "start", m.Type)
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "not_found", m.Type)
}

// ====== HTTPService ======

type fakeServer struct {
	listenErr error
	stop      chan struct{}
	shutdowns int
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns++
	close(f.stop)
	return nil
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	fs := &fakeServer{stop: make(chan struct{})}
	svc := NewHTTPService(fs, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 1, fs.shutdowns)
	assert.Equal(t, "http-server", svc.String())
}

func TestHTTPService_ListenError(t *testing.T) {
	fs := &fakeServer{listenErr: errors.New("address in use"), stop: make(chan struct{})}
	err := NewHTTPService(fs, ":0", time.Second).Serve(context.Background())
	assert.ErrorContains(t, err, "address in use")
}

func TestServiceFunc(t *testing.T) {
	called := false
	s := ServiceFunc{Name: "sweeper", Run: func(context.Context) error { called = true; return nil }}
	assert.NoError(t, s.Serve(context.Background()))
	assert.True(t, called)
	assert.Equal(t, "sweeper", s.String())
}
