// Package clienttest runs an in-memory notes API for tests. It issues real
// signed JWTs, enforces bearer auth and records every request it receives.
package clienttest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zlnvch/notesync/models"
)

type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestId     string
	Body          []byte
}

type account struct {
	user     models.User
	password string
}

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	secret        []byte
	clock         time.Time
	seq           int
	accounts      map[string]*account // by email
	accessTokens  map[string]string   // token -> user id
	refreshTokens map[string]string   // token -> user id
	notes         map[string]models.Note
	teams         map[string]models.Team
	members       map[string][]models.TeamMember
	teamNotes     map[string]map[string]models.TeamNote
	requests      []Request

	refreshStatus int
	refreshDelay  time.Duration
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		secret:        []byte("clienttest-secret"),
		clock:         time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		accounts:      make(map[string]*account),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		notes:         make(map[string]models.Note),
		teams:         make(map[string]models.Team),
		members:       make(map[string][]models.TeamMember),
		teamNotes:     make(map[string]map[string]models.TeamNote),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Post("/api/v1/register", s.handleRegister)
	r.Post("/api/v1/login", s.handleLogin)
	r.Post("/api/v1/token/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/api/v1/logout", s.handleLogout)
		r.Put("/api/v1/user/me", s.handleUpdateUser)

		r.Get("/api/v1/notes", s.handleListNotes)
		r.Post("/api/v1/notes", s.handleCreateNote)
		r.Get("/api/v1/notes/{id}", s.handleGetNote)
		r.Put("/api/v1/notes/{id}", s.handleUpdateNote)
		r.Delete("/api/v1/notes/{id}", s.handleDeleteNote)

		r.Get("/api/v1/teams", s.handleListTeams)
		r.Post("/api/v1/teams", s.handleCreateTeam)
		r.Get("/api/v1/teams/{id}", s.handleGetTeam)
		r.Delete("/api/v1/teams/{id}", s.handleDeleteTeam)
		r.Get("/api/v1/teams/{id}/members", s.handleListMembers)
		r.Post("/api/v1/teams/{id}/members", s.handleAddMember)
		r.Delete("/api/v1/teams/{id}/members/{memberId}", s.handleRemoveMember)
		r.Get("/api/v1/teams/{id}/notes", s.handleListTeamNotes)
		r.Post("/api/v1/teams/{id}/notes", s.handleCreateTeamNote)
		r.Get("/api/v1/teams/{id}/notes/{noteId}", s.handleGetTeamNote)
		r.Put("/api/v1/teams/{id}/notes/{noteId}", s.handleUpdateTeamNote)
		r.Delete("/api/v1/teams/{id}/notes/{noteId}", s.handleDeleteTeamNote)
	})

	return r
}

// AddUser registers an account directly and returns its id.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password).user.Id
}

func (s *Server) addUserLocked(email, password string) *account {
	acc := &account{
		user: models.User{
			Id:        s.nextIdLocked("user"),
			Email:     email,
			CreatedAt: s.clock,
			UpdatedAt: s.clock,
		},
		password: password,
	}
	s.accounts[email] = acc
	return acc
}

// ExpireAccessTokens revokes every issued access token so the next
// authenticated request gets a 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.accessTokens)
}

func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refreshTokens)
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Count returns how many requests hit method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// SeedNote stores a note owned by userId without going through the API.
func (s *Server) SeedNote(userId, body string) models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	note := models.Note{
		Id:        s.nextIdLocked("note"),
		Body:      body,
		UserId:    userId,
		CreatedAt: s.tickLocked(),
	}
	note.UpdatedAt = note.CreatedAt
	s.notes[note.Id] = note
	return note
}

// SeedTeam creates a team owned by userId.
func (s *Server) SeedTeam(userId, name string) models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTeamLocked(userId, name, false)
}

func (s *Server) SeedTeamNote(teamId, userId, body string) models.TeamNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTeamNoteLocked(teamId, userId, body)
}

func (s *Server) Note(id string) (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	return note, ok
}

func (s *Server) TeamNote(teamId, id string) (models.TeamNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.teamNotes[teamId][id]
	return note, ok
}

// IssueTokens signs a fresh token pair for userId, as a login would.
func (s *Server) IssueTokens(userId string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueAccessLocked(userId), s.issueRefreshLocked(userId)
}

func (s *Server) nextIdLocked(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *Server) tickLocked() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *Server) sign(userId, kind string, ttl time.Duration) string {
	s.seq++
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userId,
		ID:        kind + "-" + strconv.Itoa(s.seq),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) issueAccessLocked(userId string) string {
	token := s.sign(userId, "access", 15*time.Minute)
	s.accessTokens[token] = userId
	return token
}

func (s *Server) issueRefreshLocked(userId string) string {
	token := s.sign(userId, "refresh", 7*24*time.Hour)
	s.refreshTokens[token] = userId
	return token
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestId:     r.Header.Get("X-Request-Id"),
			Body:          body,
		})
		s.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

type userIdKey struct{}

func withUserId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIdKey{}, userId)
}

func userIdFrom(r *http.Request) string {
	userId, _ := r.Context().Value(userIdKey{}).(string)
	return userId
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		s.mu.Lock()
		userId, valid := s.accessTokens[token]
		s.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserId(r.Context(), userId)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
