package coverart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"songrec/internal/config"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoCredentials is returned by NewSpotify when neither client credentials nor a
// static token are configured.
var ErrNoCredentials = errors.New("spotify credentials not configured")

// Spotify searches the Spotify Web API for album art.
type Spotify struct {
	http   *http.Client
	apiURL string
	tokens oauth2.TokenSource
}

// NewSpotify builds a client authenticated with the client credentials flow, or with a
// static bearer token when cfg.Token is set. base supplies transport and timeout settings.
func NewSpotify(cfg config.SpotifyConfig, base *http.Client) (*Spotify, error) {
	if !cfg.Enabled() {
		return nil, ErrNoCredentials
	}
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var ts oauth2.TokenSource
	if cfg.Token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	} else {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ts = cc.TokenSource(ctx)
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = base.Timeout
	return &Spotify{
		http:   client,
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		tokens: ts,
	}, nil
}

// Verify fetches an access token, failing when the credentials are rejected.
func (s *Spotify) Verify() error {
	if _, err := s.tokens.Token(); err != nil {
		return fmt.Errorf("spotify token: %w", err)
	}
	return nil
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

// Search returns the first image of the first matching track's album.
func (s *Spotify) Search(ctx context.Context, song, artist string) (string, bool, error) {
	q := url.Values{}
	q.Set("q", "track:"+song+" artist:"+artist)
	q.Set("type", "track")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return "", false, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", false, fmt.Errorf("spotify search: unexpected status %s", resp.Status)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("spotify search: decode: %w", err)
	}
	items := body.Tracks.Items
	if len(items) == 0 || len(items[0].Album.Images) == 0 || items[0].Album.Images[0].URL == "" {
		return "", false, nil
	}
	return items[0].Album.Images[0].URL, true, nil
}
