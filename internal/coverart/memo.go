package coverart

import (
	"context"
	"sync"
	"time"

	"songrec/internal/logging"
	"songrec/internal/metrics"

	"github.com/google/uuid"
)

type key struct {
	song, artist string
}

// Memo remembers resolved cover URLs, placeholders included, for the lifetime of one
// session. Entries are never evicted.
type Memo struct {
	mu      sync.Mutex
	entries map[key]string
}

func NewMemo() *Memo {
	return &Memo{entries: make(map[key]string)}
}

func (m *Memo) Get(song, artist string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.entries[key{song, artist}]
	return url, ok
}

func (m *Memo) Put(song, artist, url string) {
	m.mu.Lock()
	m.entries[key{song, artist}] = url
	m.mu.Unlock()
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ====== Sessions ======

type session struct {
	memo     *Memo
	lastSeen time.Time
}

// Sessions hands out one Memo per session id and forgets sessions idle for longer than ttl.
// Callers without a session share one process-wide Memo.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	shared   *Memo
	now      func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, sessions: make(map[string]*session), shared: NewMemo(), now: time.Now}
}

// Shared is the memo for requests that carry no session id. It is never swept.
func (s *Sessions) Shared() *Memo {
	return s.shared
}

// NewID returns a fresh session id.
func (s *Sessions) NewID() string {
	return uuid.NewString()
}

// Memo returns the memo of session id, creating it on first use.
func (s *Sessions) Memo(id string) *Memo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{memo: NewMemo()}
		s.sessions[id] = sess
		metrics.CoverSessions.Set(float64(len(s.sessions)))
	}
	sess.lastSeen = now
	return sess.memo
}

// Sweep drops sessions idle since before now-ttl and returns how many were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	dropped := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			dropped++
		}
	}
	metrics.CoverSessions.Set(float64(len(s.sessions)))
	return dropped
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logging.Debug().Int("dropped", n).Int("live", s.Len()).Msg("expired idle sessions")
			}
		}
	}
}
