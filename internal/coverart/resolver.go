// Package coverart resolves album cover URLs for (song, artist) pairs.
//
// Lookups never fail: any problem with the metadata service yields the placeholder URL.
// Answers are memoized per session (Memo) and, when configured, shared across sessions and
// restarts through a Store. Only real matches are written to the Store.
package coverart

import (
	"context"
	"errors"
	"net/url"
	"time"

	"songrec/internal/logging"
	"songrec/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Searcher queries a metadata service. found=false with a nil error means no match.
type Searcher interface {
	Search(ctx context.Context, song, artist string) (coverURL string, found bool, err error)
}

// Store is a shared cover URL cache keyed by StoreKey.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// StoreKey is the shared-cache key for a pair.
func StoreKey(song, artist string) string {
	return "cover:" + url.PathEscape(artist) + "/" + url.PathEscape(song)
}

type Options struct {
	Placeholder string
	// RateLimit is the outbound searches per second; 0 disables throttling.
	RateLimit float64
	Burst     int
	Store     Store
}

type Resolver struct {
	searcher    Searcher
	store       Store
	placeholder string
	limiter     *rate.Limiter
	cb          *gobreaker.CircuitBreaker[searchResult]
}

type searchResult struct {
	url   string
	found bool
}

const breakerName = "spotify-search"

// NewResolver returns a resolver backed by searcher. A nil searcher gives a degraded
// resolver that always answers with the placeholder.
func NewResolver(searcher Searcher, opts Options) *Resolver {
	r := &Resolver{
		searcher:    searcher,
		store:       opts.Store,
		placeholder: opts.Placeholder,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	r.cb = gobreaker.NewCircuitBreaker[searchResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return r
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Placeholder is the URL returned when no cover can be found.
func (r *Resolver) Placeholder() string { return r.placeholder }

// Enabled reports whether the resolver talks to a metadata service at all.
func (r *Resolver) Enabled() bool { return r.searcher != nil }

// Lookup returns the cover URL for the pair, or the placeholder. memo may be nil.
func (r *Resolver) Lookup(ctx context.Context, memo *Memo, song, artist string) string {
	if memo != nil {
		if u, ok := memo.Get(song, artist); ok {
			metrics.RecordCoverLookup("memo")
			return u
		}
	}

	u := r.resolve(ctx, song, artist)
	if memo != nil {
		memo.Put(song, artist, u)
	}
	return u
}

func (r *Resolver) resolve(ctx context.Context, song, artist string) string {
	log := logging.Ctx(ctx).With().Str("song", song).Str("artist", artist).Logger()

	if r.store != nil {
		u, ok, err := r.store.Get(ctx, StoreKey(song, artist))
		if err != nil {
			log.Warn().Err(err).Msg("cover store read failed")
		} else if ok {
			metrics.RecordCoverLookup("store")
			return u
		}
	}

	if r.searcher == nil {
		metrics.RecordCoverLookup("disabled")
		return r.placeholder
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			log.Debug().Err(err).Msg("cover lookup throttled")
			metrics.RecordCoverLookup("error")
			return r.placeholder
		}
	}

	start := time.Now()
	res, err := r.cb.Execute(func() (searchResult, error) {
		u, found, err := r.searcher.Search(ctx, song, artist)
		return searchResult{url: u, found: found}, err
	})
	metrics.CoverFetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Debug().Err(err).Msg("cover lookup skipped, breaker open")
		metrics.RecordCoverLookup("error")
		return r.placeholder
	case err != nil:
		log.Warn().Err(err).Msg("cover lookup failed")
		metrics.RecordCoverLookup("error")
		return r.placeholder
	case !res.found:
		metrics.RecordCoverLookup("no_match")
		return r.placeholder
	}

	metrics.RecordCoverLookup("found")
	if r.store != nil {
		if err := r.store.Set(ctx, StoreKey(song, artist), res.url); err != nil {
			log.Warn().Err(err).Msg("cover store write failed")
		}
	}
	return res.url
}
