package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// HubOptions locates a repository on a Hugging Face compatible artifact hub.
type HubOptions struct {
	Endpoint string // default https://huggingface.co
	Repo     string // "owner/name"
	RepoType string // dataset (default), model or space
	Revision string // branch, tag or commit; default main
	Token    string // optional bearer token for private repos
	CacheDir string
	Client   *http.Client
}

// Hub downloads files by repository/filename coordinates through the hub's resolve
// endpoint and caches them per revision.
type Hub struct {
	opts HubOptions
	dl   *downloader
}

func NewHub(opts HubOptions) *Hub {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://huggingface.co"
	}
	if opts.RepoType == "" {
		opts.RepoType = "dataset"
	}
	if opts.Revision == "" {
		opts.Revision = "main"
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")

	token := opts.Token
	auth := func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return &Hub{opts: opts, dl: newDownloader(opts.Client, opts.CacheDir, auth)}
}

// ResolveURL is the download URL of a file, e.g.
// https://huggingface.co/datasets/owner/name/resolve/main/songs.json
func (s *Hub) ResolveURL(name string) string {
	var prefix string
	switch s.opts.RepoType {
	case "dataset":
		prefix = "/datasets"
	case "space":
		prefix = "/spaces"
	}
	return fmt.Sprintf("%s%s/%s/resolve/%s/%s",
		s.opts.Endpoint, prefix, s.opts.Repo, url.PathEscape(s.opts.Revision), strings.TrimLeft(name, "/"))
}

func (s *Hub) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join("hub", s.opts.RepoType, s.opts.Repo, s.opts.Revision, name)
	return s.dl.open(ctx, s.ResolveURL(name), key)
}

func (s *Hub) String() string {
	return fmt.Sprintf("hub:%s:%s@%s", s.opts.RepoType, s.opts.Repo, s.opts.Revision)
}
