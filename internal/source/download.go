package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"songrec/internal/logging"

	"golang.org/x/sync/singleflight"
)

// downloader fetches a URL into a cache file once; later opens are served from disk.
// Concurrent opens of the same artifact share one download.
type downloader struct {
	client    *http.Client
	cacheDir  string
	authorize func(*http.Request)
	group     singleflight.Group
}

func newDownloader(client *http.Client, cacheDir string, authorize func(*http.Request)) *downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &downloader{client: client, cacheDir: cacheDir, authorize: authorize}
}

// cachePath maps a relative key to a file under cacheDir.
func (d *downloader) cachePath(key string) string {
	return filepath.Join(d.cacheDir, filepath.FromSlash(path.Clean("/"+key)))
}

func (d *downloader) open(ctx context.Context, rawURL, key string) (io.ReadCloser, error) {
	dst := d.cachePath(key)
	if f, err := os.Open(dst); err == nil {
		return f, nil
	}

	_, err, _ := d.group.Do(dst, func() (any, error) {
		return nil, d.download(ctx, rawURL, dst)
	})
	if err != nil {
		return nil, err
	}
	return os.Open(dst)
}

func (d *downloader) download(ctx context.Context, rawURL, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if d.authorize != nil {
		d.authorize(req)
	}

	start := time.Now()
	shown := redact(rawURL)
	logging.Info().Str("url", shown).Str("dest", dst).Msg("downloading artifact")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", shown, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, shown)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("GET %s: unexpected status %s", shown, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("GET %s: %w", shown, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	logging.Info().Str("url", shown).Int64("bytes", n).Dur("took", time.Since(start)).Msg("artifact downloaded")
	return nil
}

// redact drops the query string, which may carry tokens.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// HTTP downloads artifacts from plain URLs into a local cache directory.
type HTTP struct {
	baseURL string
	urls    map[string]string
	dl      *downloader
}

// NewHTTP resolves name to urls[name] when present, otherwise to baseURL/name.
func NewHTTP(baseURL string, urls map[string]string, cacheDir string, client *http.Client) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		urls:    urls,
		dl:      newDownloader(client, cacheDir, nil),
	}
}

func (s *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u, ok := s.urls[name]
	if !ok || u == "" {
		if s.baseURL == "" {
			return nil, fmt.Errorf("%w: no url configured for %s", ErrNotFound, name)
		}
		u = s.baseURL + "/" + strings.TrimLeft(name, "/")
	}
	return s.dl.open(ctx, u, path.Join("http", name))
}

func (s *HTTP) String() string {
	if s.baseURL != "" {
		return "http:" + redact(s.baseURL)
	}
	return "http:per-artifact-urls"
}
