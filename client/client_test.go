package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/client/clienttest"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navRecorder) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func newClient(baseURL string) (*client.Client, *session.Store, *navRecorder) {
	store := session.NewStore(nil, zerolog.Nop())
	nav := &navRecorder{}
	c := client.New(baseURL, store, client.Options{Navigator: nav, Logger: zerolog.Nop()})
	return c, store, nav
}

func setupClient(t *testing.T) (*client.Client, *clienttest.Server, *session.Store, *navRecorder) {
	srv := clienttest.NewServer(t)
	c, store, nav := newClient(srv.URL)
	return c, srv, store, nav
}

func loginUser(t *testing.T, c *client.Client, srv *clienttest.Server) models.Session {
	srv.AddUser("ada@example.com", "hunter2")
	sess, err := c.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	return sess
}

func TestLogin_Success(t *testing.T) {
	c, srv, store, _ := setupClient(t)

	sess := loginUser(t, c, srv)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, "ada@example.com", sess.User.Email)

	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, sess.AccessToken, store.AccessToken())
	user, ok := store.User()
	require.True(t, ok)
	assert.Equal(t, sess.User.Id, user.Id)

	// Login itself never carries a bearer token
	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c, srv, store, nav := setupClient(t)
	srv.AddUser("ada@example.com", "hunter2")

	_, err := c.Login(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 0, srv.Count(http.MethodPost, "/api/v1/token/refresh"))
	assert.Empty(t, nav.Paths())
}

func TestLogin_ValidationFailsWithoutRequest(t *testing.T) {
	c, srv, _, _ := setupClient(t)

	_, err := c.Login(context.Background(), "not-an-email", "")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Empty(t, srv.Requests())
}

func TestLogin_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, store, _ := newClient(baseURL)
	_, err := c.Login(context.Background(), "ada@example.com", "hunter2")
	assert.ErrorIs(t, err, errors.ErrNetwork)
	assert.False(t, store.IsAuthenticated())
}

func TestRegisterThenLogin(t *testing.T) {
	c, srv, store, _ := setupClient(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "new@example.com", "pw"))
	err := c.Register(ctx, "new@example.com", "pw")
	assert.ErrorIs(t, err, errors.ErrHTTP)
	assert.Equal(t, http.StatusConflict, errors.StatusOf(err))

	_, err = c.Login(ctx, "new@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, 2, srv.Count(http.MethodPost, "/api/v1/register"))
}

func TestDo_SetsHeaders(t *testing.T) {
	c, srv, store, _ := setupClient(t)
	loginUser(t, c, srv)

	user, _ := store.User()
	_, err := c.ListNotes(context.Background(), user.Id)
	require.NoError(t, err)

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/api/v1/notes", last.Path)
	assert.Equal(t, "authorId="+user.Id, last.Query)
	assert.Equal(t, "Bearer "+store.AccessToken(), last.Authorization)

	id, err := uuid.FromString(last.RequestId)
	require.NoError(t, err)
	assert.Equal(t, byte(uuid.V4), id.Version())

	// Every request carries its own id
	assert.NotEqual(t, reqs[0].RequestId, last.RequestId)
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	c, srv, store, nav := setupClient(t)
	sess := loginUser(t, c, srv)
	srv.SeedNote(sess.User.Id, "Groceries\nmilk")

	srv.ExpireAccessTokens()

	notes, err := c.ListNotes(context.Background(), sess.User.Id)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries\nmilk", notes[0].Body)

	assert.Equal(t, 1, srv.Count(http.MethodPost, "/api/v1/token/refresh"))
	assert.Equal(t, 2, srv.Count(http.MethodGet, "/api/v1/notes"))
	assert.NotEqual(t, sess.AccessToken, store.AccessToken())
	assert.Equal(t, sess.RefreshToken, store.RefreshToken())
	assert.Empty(t, nav.Paths())

	// The refresh call carries the refresh token, not the access token
	for _, req := range srv.Requests() {
		if req.Path == "/api/v1/token/refresh" {
			assert.Equal(t, "Bearer "+sess.RefreshToken, req.Authorization)
		}
	}
}

func TestDo_RefreshFailureEndsSession(t *testing.T) {
	c, srv, store, nav := setupClient(t)
	sess := loginUser(t, c, srv)

	srv.SetRefreshStatus(http.StatusUnauthorized)
	srv.ExpireAccessTokens()

	_, err := c.ListNotes(context.Background(), sess.User.Id)
	assert.ErrorIs(t, err, errors.ErrAuth)

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.RefreshToken())
	_, ok := store.User()
	assert.False(t, ok)
	assert.Equal(t, []string{"/login"}, nav.Paths())
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/api/v1/notes"))
}

func TestDo_SecondUnauthorizedEndsSession(t *testing.T) {
	var notesCalls, refreshCalls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/token/refresh" {
			refreshCalls++
			_ = json.NewEncoder(w).Encode(models.RefreshResponse{Token: "renewed"})
			return
		}
		notesCalls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"forbidden forever"}`))
	}))
	t.Cleanup(srv.Close)

	c, store, nav := newClient(srv.URL)
	require.NoError(t, store.Establish(context.Background(), models.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		User:         models.User{Id: "u1"},
	}))

	_, err := c.ListNotes(context.Background(), "u1")
	assert.ErrorIs(t, err, errors.ErrAuth)
	assert.Contains(t, err.Error(), "forbidden forever")

	mu.Lock()
	assert.Equal(t, 2, notesCalls)
	assert.Equal(t, 1, refreshCalls)
	mu.Unlock()
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, []string{"/login"}, nav.Paths())
}

// stallingRefreshServer answers every API call with 401 and holds the refresh
// call until release is closed.
func stallingRefreshServer(t *testing.T) (*httptest.Server, chan struct{}) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/token/refresh" {
			<-release
			_ = json.NewEncoder(w).Encode(models.RefreshResponse{Token: "renewed"})
			return
		}
		if r.Header.Get("Authorization") == "Bearer renewed" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	return srv, release
}

func TestDo_CallerTimeoutDuringRefreshKeepsSession(t *testing.T) {
	srv, _ := stallingRefreshServer(t)
	c, store, nav := newClient(srv.URL)
	require.NoError(t, store.Establish(context.Background(), models.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		User:         models.User{Id: "u1"},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.ListNotes(ctx, "u1")

	assert.ErrorIs(t, err, errors.ErrNetwork)
	assert.NotErrorIs(t, err, errors.ErrAuth)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "refresh", store.RefreshToken())
	assert.Empty(t, nav.Paths())
}

func TestDo_CancelledWaiterDoesNotFailSharedRefresh(t *testing.T) {
	srv, release := stallingRefreshServer(t)
	c, store, nav := newClient(srv.URL)
	require.NoError(t, store.Establish(context.Background(), models.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		User:         models.User{Id: "u1"},
	}))

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	shortErr := make(chan error, 1)
	go func() {
		_, err := c.ListNotes(shortCtx, "u1")
		shortErr <- err
	}()

	longErr := make(chan error, 1)
	go func() {
		_, err := c.ListNotes(context.Background(), "u1")
		longErr <- err
	}()

	assert.ErrorIs(t, <-shortErr, errors.ErrNetwork)
	close(release)

	select {
	case err := <-longErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request waiting on the shared refresh never returned")
	}
	assert.Equal(t, "renewed", store.AccessToken())
	assert.Empty(t, nav.Paths())
}

func TestDo_UnauthorizedWithoutRefreshToken(t *testing.T) {
	c, srv, store, nav := setupClient(t)
	require.NoError(t, store.Establish(context.Background(), models.Session{
		AccessToken: "never-issued",
		User:        models.User{Id: "u1"},
	}))

	_, err := c.ListNotes(context.Background(), "u1")
	assert.ErrorIs(t, err, errors.ErrHTTP)
	assert.Equal(t, http.StatusUnauthorized, errors.StatusOf(err))
	assert.Equal(t, 0, srv.Count(http.MethodPost, "/api/v1/token/refresh"))
	assert.True(t, store.IsAuthenticated())
	assert.Empty(t, nav.Paths())
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	c, srv, store, nav := setupClient(t)
	sess := loginUser(t, c, srv)
	srv.SeedNote(sess.User.Id, "shared")

	srv.SetRefreshDelay(100 * time.Millisecond)
	srv.ExpireAccessTokens()

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.ListNotes(context.Background(), sess.User.Id)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/api/v1/token/refresh"))
	assert.True(t, store.IsAuthenticated())
	assert.Empty(t, nav.Paths())
}

func TestDo_ErrorResponses(t *testing.T) {
	c, srv, _, _ := setupClient(t)
	loginUser(t, c, srv)

	err := c.DeleteNote(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrHTTP)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, "note not found", err.Error())
}

func TestDo_EmptyBodies(t *testing.T) {
	var out map[string]string

	t.Run("No Content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()
		c, _, _ := newClient(srv.URL)
		assert.NoError(t, c.Do(context.Background(), http.MethodDelete, "/anything", nil, &out))
	})

	t.Run("Empty OK", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()
		c, _, _ := newClient(srv.URL)
		assert.NoError(t, c.Do(context.Background(), http.MethodPost, "/anything", map[string]string{"a": "b"}, &out))
	})

	t.Run("Error Without Message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		c, _, _ := newClient(srv.URL)
		err := c.Do(context.Background(), http.MethodGet, "/anything", nil, &out)
		assert.Equal(t, http.StatusInternalServerError, errors.StatusOf(err))
		assert.Equal(t, "HTTP error! status: 500", err.Error())
	})
}

func TestLogout(t *testing.T) {
	t.Run("Server Call And Local Clear", func(t *testing.T) {
		c, srv, store, _ := setupClient(t)
		loginUser(t, c, srv)

		require.NoError(t, c.Logout(context.Background()))
		assert.False(t, store.IsAuthenticated())
		assert.Equal(t, 1, srv.Count(http.MethodPost, "/api/v1/logout"))
	})

	t.Run("Expired Token Does Not Refresh", func(t *testing.T) {
		c, srv, store, nav := setupClient(t)
		loginUser(t, c, srv)
		srv.ExpireAccessTokens()

		require.NoError(t, c.Logout(context.Background()))
		assert.False(t, store.IsAuthenticated())
		assert.Equal(t, 0, srv.Count(http.MethodPost, "/api/v1/token/refresh"))
		assert.Empty(t, nav.Paths())
	})

	t.Run("Server Unreachable", func(t *testing.T) {
		c, srv, store, _ := setupClient(t)
		loginUser(t, c, srv)
		srv.Close()

		require.NoError(t, c.Logout(context.Background()))
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("Signed Out Skips Server", func(t *testing.T) {
		c, srv, _, _ := setupClient(t)
		require.NoError(t, c.Logout(context.Background()))
		assert.Empty(t, srv.Requests())
	})
}

func TestUpdateUser(t *testing.T) {
	c, srv, store, _ := setupClient(t)
	ctx := context.Background()

	_, err := c.UpdateUser(ctx, "x@example.com", "pw")
	assert.ErrorIs(t, err, errors.ErrAuth)

	loginUser(t, c, srv)
	user, err := c.UpdateUser(ctx, "grace@example.com", "n3w")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)

	cached, _ := store.User()
	assert.Equal(t, "grace@example.com", cached.Email)
}

func TestTeamEndpointsEchoTeamId(t *testing.T) {
	c, srv, store, _ := setupClient(t)
	ctx := context.Background()
	loginUser(t, c, srv)
	user, _ := store.User()

	require.NoError(t, c.CreateTeam(ctx, models.CreateTeamRequest{Name: "Design", UserId: user.Id}))
	teams, err := c.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	teamId := teams[0].Id

	team, err := c.GetTeam(ctx, teamId)
	require.NoError(t, err)
	assert.Equal(t, "Design", team.Name)

	require.NoError(t, c.AddTeamMember(ctx, teamId, models.AddTeamMemberRequest{UserId: "friend", Role: models.RoleMember}))
	members, err := c.ListTeamMembers(ctx, teamId)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	require.NoError(t, c.RemoveTeamMember(ctx, teamId, "friend"))

	for _, req := range srv.Requests() {
		if strings.HasPrefix(req.Path, "/api/v1/teams/"+teamId) && !strings.Contains(req.Path, "/notes") {
			assert.Equal(t, "team_id="+teamId, req.Query, req.Path)
		}
	}

	require.NoError(t, c.CreateTeamNote(ctx, teamId, models.CreateTeamNoteRequest{Body: "agenda", UserId: user.Id}))
	notes, err := c.ListTeamNotes(ctx, teamId)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	note, err := c.GetTeamNote(ctx, teamId, notes[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "agenda", note.Body)

	require.NoError(t, c.UpdateTeamNote(ctx, teamId, note.Id, models.UpdateTeamNoteRequest{Body: "agenda v2"}))
	require.NoError(t, c.DeleteTeamNote(ctx, teamId, note.Id))
	require.NoError(t, c.DeleteTeam(ctx, teamId))
}
