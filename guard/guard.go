// Package guard decides whether protected views may be shown. It only looks
// at whether a session is present; an expired token is discovered later by
// the API client when the server rejects it.
package guard

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zlnvch/notesync/client"
)

// SessionSource is the part of session.Store the guard reads.
type SessionSource interface {
	IsAuthenticated() bool
}

type Guard struct {
	sessions SessionSource
	logger   zerolog.Logger
}

func New(sessions SessionSource, logger zerolog.Logger) *Guard {
	return &Guard{sessions: sessions, logger: logger.With().Str("component", "guard").Logger()}
}

func (g *Guard) Allow() bool {
	return g.sessions.IsAuthenticated()
}

// Resolve returns path when the session allows it and the login route
// otherwise.
func (g *Guard) Resolve(path string) string {
	if g.Allow() {
		return path
	}
	return client.LoginRoute
}

// Middleware redirects requests for protected views to the login route while
// signed out.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if target := g.Resolve(r.URL.Path); target != r.URL.Path {
			g.logger.Debug().Str("path", r.URL.Path).Msg("Redirecting unauthenticated view")
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
