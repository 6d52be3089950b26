// Package session holds the client's single authenticated session: the access
// and refresh tokens plus the cached user profile. Nothing else in the module
// reads or writes the persisted session fields.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/zlnvch/notesync/models"
)

// ErrNoSession is returned by a Persister when nothing has been saved yet.
var ErrNoSession = errors.New("no persisted session")

// Persister is where a session survives between process runs.
// Clear must remove tokens and profile in one operation.
type Persister interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, sess models.Session) error
	Clear(ctx context.Context) error
}

// ChangeFunc is called after every login, token refresh and logout with the
// current user; ok is false once the session is gone.
type ChangeFunc func(user models.User, ok bool)

type Store struct {
	// writeMu serializes writers across their persister call so a Clear can
	// never be overwritten by a save that started before it.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	persister Persister
	current   models.Session
	listeners []ChangeFunc
	logger    zerolog.Logger
}

func NewStore(persister Persister, logger zerolog.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	return &Store{
		persister: persister,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Init loads a previously persisted session. A missing session is not an error.
func (s *Store) Init(ctx context.Context) error {
	sess, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if !sess.IsZero() {
		s.logger.Info().Str("userId", sess.User.Id).Msg("Restored persisted session")
		s.notify()
	}
	return nil
}

// Establish replaces the session after a successful login.
func (s *Store) Establish(ctx context.Context, sess models.Session) error {
	s.writeMu.Lock()
	if err := s.persister.Save(ctx, sess); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Info().Str("userId", sess.User.Id).Time("accessExpiry", tokenExpiry(sess.AccessToken)).Msg("Session established")
	s.notify()
	return nil
}

// UpdateAccessToken swaps in a renewed access token, keeping the refresh
// token and profile.
func (s *Store) UpdateAccessToken(ctx context.Context, token string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	sess := s.current
	s.mu.RUnlock()

	if sess.RefreshToken == "" {
		return errors.New("cannot update access token: no active session")
	}
	sess.AccessToken = token

	if err := s.persister.Save(ctx, sess); err != nil {
		return fmt.Errorf("save refreshed session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Debug().Time("accessExpiry", tokenExpiry(token)).Msg("Access token renewed")
	return nil
}

// UpdateUser refreshes the cached profile.
func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	s.writeMu.Lock()
	s.mu.RLock()
	sess := s.current
	s.mu.RUnlock()

	if sess.IsZero() {
		s.writeMu.Unlock()
		return errors.New("cannot update user: no active session")
	}
	sess.User = user

	if err := s.persister.Save(ctx, sess); err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("save session profile: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify()
	return nil
}

// Clear tears the session down locally. In-memory state is dropped even when
// the persister fails.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	s.mu.Lock()
	wasActive := !s.current.IsZero()
	s.current = models.Session{}
	s.mu.Unlock()

	err := s.persister.Clear(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear persisted session")
	}

	if wasActive {
		s.logger.Info().Msg("Session cleared")
		s.notify()
	}

	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.User, s.current.User.Id != ""
}

// IsAuthenticated only checks that an access token is present. Expiry is
// discovered by the API client when the server answers 401.
func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// Token returns an oauth2 view of the session, or nil when signed out.
// Expiry is read from the access token claims without verification and is
// informational only.
func (s *Store) Token() *oauth2.Token {
	s.mu.RLock()
	sess := s.current
	s.mu.RUnlock()

	if sess.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  sess.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: sess.RefreshToken,
		Expiry:       tokenExpiry(sess.AccessToken),
	}
}

// OnChange registers fn and immediately calls it with the current state.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	user := s.current.User
	s.mu.Unlock()

	fn(user, user.Id != "")
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]ChangeFunc, len(s.listeners))
	copy(listeners, s.listeners)
	user := s.current.User
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(user, user.Id != "")
	}
}

// tokenExpiry reads the exp claim of a JWT access token. Opaque tokens and
// tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
