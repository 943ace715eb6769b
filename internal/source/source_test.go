package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"songrec/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, src Source, name string) string {
	t.Helper()
	rc, err := src.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "songs.json"), []byte("[]"), 0o644))

	src := NewLocal(dir)
	assert.Equal(t, "[]", readAll(t, src, "songs.json"))
	assert.Equal(t, "[]", readAll(t, src, "../songs.json"), "paths stay inside root")

	_, err := src.Open(context.Background(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP_DownloadsOnceAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/artifacts/songs.json":
			_, _ = w.Write([]byte(`{"songs":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL+"/artifacts/", nil, t.TempDir(), srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc, err := src.Open(context.Background(), "songs.json")
			if assert.NoError(t, err) {
				_ = rc.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, `{"songs":[]}`, readAll(t, src, "songs.json"))
	assert.Equal(t, int32(1), hits.Load())

	_, err := src.Open(context.Background(), "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP_PerArtifactURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	src := NewHTTP("", map[string]string{"songs.json": srv.URL + "/uc?id=abc"}, t.TempDir(), nil)
	assert.Equal(t, "payload", readAll(t, src, "songs.json"))

	_, err := src.Open(context.Background(), "index.srix")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTP_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := NewHTTP(srv.URL, nil, dir, nil)
	_, err := src.Open(context.Background(), "songs.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(filepath.Join(dir, "http", "songs.json"))
	assert.True(t, os.IsNotExist(statErr), "failed downloads leave no cache file")
}

func TestHub_ResolveAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/acme/songs/resolve/v2/songs_index.srix", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("index"))
	}))
	defer srv.Close()

	hub := NewHub(HubOptions{Endpoint: srv.URL, Repo: "acme/songs", Revision: "v2", Token: "secret", CacheDir: t.TempDir()})
	assert.Equal(t, "index", readAll(t, hub, "songs_index.srix"))
	assert.Equal(t, "hub:dataset:acme/songs@v2", hub.String())
}

func TestHub_ModelRepoHasNoPrefix(t *testing.T) {
	hub := NewHub(HubOptions{Repo: "acme/emb", RepoType: "model"})
	assert.Equal(t, "https://huggingface.co/acme/emb/resolve/main/x.bin", hub.ResolveURL("x.bin"))
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestS3_Open(t *testing.T) {
	m := new(mockS3)
	src := NewS3(m, "bucket", "catalog")

	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "bucket" && *in.Key == "catalog/songs.json"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("ok")))}, nil).Once()
	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "catalog/missing"
	})).Return(nil, &types.NoSuchKey{}).Once()

	assert.Equal(t, "ok", readAll(t, src, "songs.json"))

	_, err := src.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	m.AssertExpectations(t)
}

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("song,tags,0.1,0.2\n"), 200)

	for _, name := range []string{"a.json.gz", "a.json.zst", "a.json.lz4", "a.json"} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := Compress(name, &buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			assert.Equal(t, name != "a.json", Compressed(name))

			rc, err := Decompress(name, io.NopCloser(&buf))
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	_, err := Decompress("x.gz", io.NopCloser(bytes.NewReader([]byte("not gzip"))))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	src, err := New(context.Background(), config.CatalogConfig{Source: "local", Local: config.LocalSourceConfig{Dir: "data"}})
	require.NoError(t, err)
	assert.Equal(t, "local:data", src.String())
	assert.Equal(t, "local:data/songs.json", Describe(src, "songs.json"))

	src, err = New(context.Background(), config.CatalogConfig{
		Source:    "http",
		SongsFile: "songs.json",
		HTTP:      config.HTTPSourceConfig{SongsURL: "https://example.com/s"},
	})
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, src)

	_, err = New(context.Background(), config.CatalogConfig{Source: "ftp"})
	assert.Error(t, err)
	assert.NoError(t, Close(src))
}
