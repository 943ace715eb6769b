package handler

import (
	"context"
	"net/http"
	"time"

	"songrec/internal/coverart"
)

// SessionCookie carries the UI session id that selects the cover-art memo.
const SessionCookie = "songrec_session"

type memoKey struct{}

// Sessions attaches the caller's cover-art memo to the request context. A request without
// the cookie gets one issued and uses the registry's shared memo; the per-session memo is
// only created once the cookie comes back, so cookieless API clients never grow the registry.
func Sessions(reg *coverart.Sessions, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memo := reg.Shared()
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				memo = reg.Memo(c.Value)
			} else {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    reg.NewID(),
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), memoKey{}, memo)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MemoFromContext returns the session memo, or nil outside a session.
func MemoFromContext(ctx context.Context) *coverart.Memo {
	m, _ := ctx.Value(memoKey{}).(*coverart.Memo)
	return m
}
