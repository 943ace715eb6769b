package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"songrec/internal/cache"
	"songrec/internal/catalog"
	"songrec/internal/config"
	"songrec/internal/coverart"
	"songrec/internal/index"
	"songrec/internal/logging"
	"songrec/internal/metrics"
	"songrec/internal/server"
	"songrec/internal/service"
	"songrec/internal/source"
)

// sessionSweepInterval is how often idle UI sessions are dropped.
const sessionSweepInterval = time.Minute

// @title Song Recommender API
// @version 1.0
// @description Content-based song recommendations with album cover art
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============================
	// Catalog: songs table + index
	// ============================
	cat, closeSource := loadCatalog(ctx, cfg.Catalog)
	defer closeSource()

	// ============================
	// Cover art: Spotify + shared cache
	// ============================
	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("open cover cache")
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logging.Warn().Err(err).Msg("close cover cache")
			}
		}()
	}

	opts := coverart.Options{
		Placeholder: cfg.Spotify.Placeholder,
		RateLimit:   cfg.Spotify.RateLimit,
		Burst:       cfg.Spotify.Burst,
	}
	if store != nil {
		opts.Store = store
	}
	resolver := coverart.NewResolver(newSearcher(cfg.Spotify), opts)

	// services
	recSvc := service.NewRecommendService(cat, resolver)
	songSvc := service.NewSongService(cat)
	sessions := coverart.NewSessions(cfg.Server.SessionTTL)

	router := server.NewRouter(server.Deps{
		Recommend:         recSvc,
		Songs:             songSvc,
		Sessions:          sessions,
		CoversLive:        resolver.Enabled(),
		IndexMetric:       string(cat.Metric()),
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		SessionTTL:        cfg.Server.SessionTTL,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	sup := server.NewSupervisor("songrec", cfg.Server.ShutdownTimeout)
	sup.Add(server.NewHTTPService(httpSrv, addr, cfg.Server.ShutdownTimeout))
	sup.Add(server.ServiceFunc{
		Name: "session-sweeper",
		Run: func(ctx context.Context) error {
			sessions.Run(ctx, sessionSweepInterval)
			return ctx.Err()
		},
	})

	logging.Info().
		Str("addr", addr).
		Int("songs", cat.Len()).
		Bool("cover_art", resolver.Enabled()).
		Msg("songrec starting")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("songrec stopped")
}

// loadCatalog builds the configured source and loads the catalog through it. Any failure
// is fatal: the service has nothing to serve without a catalog.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig) (*catalog.Catalog, func()) {
	loadCtx, cancel := context.WithTimeout(ctx, cfg.LoadTimeout)
	defer cancel()

	src, err := source.New(loadCtx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("source", cfg.Source).Msg("open catalog source")
	}
	closeSource := func() {
		if err := source.Close(src); err != nil {
			logging.Warn().Err(err).Msg("close catalog source")
		}
	}

	var metric index.Metric
	if cfg.Metric != "" {
		metric, err = index.ParseMetric(cfg.Metric)
		if err != nil {
			logging.Fatal().Err(err).Msg("catalog metric")
		}
	}

	start := time.Now()
	cat, err := catalog.Load(loadCtx, src, catalog.Options{
		SongsFile: cfg.SongsFile,
		IndexFile: cfg.IndexFile,
		Metric:    metric,
	})
	if err != nil {
		closeSource()
		var (
			unavailable *catalog.SourceUnavailableError
			format      *catalog.FormatError
		)
		ev := logging.Fatal().Err(err).Str("source", src.String())
		switch {
		case errors.As(err, &unavailable):
			ev.Str("artifact", unavailable.Artifact).Msg("catalog source unavailable")
		case errors.As(err, &format):
			ev.Str("artifact", format.Artifact).Msg("catalog artifact malformed")
		default:
			ev.Msg("load catalog")
		}
	}
	metrics.RecordCatalogLoad(cat.Len(), time.Since(start))
	return cat, closeSource
}

// newSearcher returns the Spotify client, or nil when no credentials are configured, which
// leaves the resolver in placeholder-only mode.
func newSearcher(cfg config.SpotifyConfig) coverart.Searcher {
	if !cfg.Enabled() {
		logging.Warn().Msg("no spotify credentials, cover art limited to the placeholder")
		return nil
	}
	sp, err := coverart.NewSpotify(cfg, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		logging.Fatal().Err(err).Msg("spotify client")
	}
	if cfg.VerifyOnStart {
		if err := sp.Verify(); err != nil {
			logging.Fatal().Err(err).Msg("spotify credentials rejected")
		}
		logging.Info().Msg("spotify credentials verified")
	}
	return sp
}
