package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/notesync/api"
	"github.com/zlnvch/notesync/api/ws"
	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/client/clienttest"
	"github.com/zlnvch/notesync/guard"
	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/session"
)

type env struct {
	backend *clienttest.Server
	client  *client.Client
	store   *session.Store
	notes   *hooks.Notes
	ui      *httptest.Server
}

func setupEnv(t *testing.T) env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	backend := clienttest.NewServer(t)
	store := session.NewStore(nil, zerolog.Nop())
	c := client.New(backend.URL, store, client.Options{Logger: zerolog.Nop()})
	notes := hooks.NewNotes(c, hooks.Options{Logger: zerolog.Nop()})
	teams := hooks.NewTeams(c, hooks.Options{Logger: zerolog.Nop()})
	notes.BindSession(ctx, store)
	teams.BindSession(ctx, store)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	srv, err := api.NewServer(api.Config{
		BackendURL:     backend.URL,
		StaticDir:      dir,
		AllowedOrigins: []string{"http://localhost:5173"},
	}, api.Deps{
		Sessions: store,
		Guard:    guard.New(store, zerolog.Nop()),
		Notes:    notes,
		Teams:    teams,
	}, ctx, zerolog.Nop())
	require.NoError(t, err)

	ui := httptest.NewServer(srv)
	t.Cleanup(ui.Close)

	return env{backend: backend, client: c, store: store, notes: notes, ui: ui}
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := noRedirect().Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func login(t *testing.T, e env) string {
	t.Helper()
	userId := e.backend.AddUser("ada@example.com", "hunter2")
	_, err := e.client.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	return userId
}

func TestNewServer_InvalidBackend(t *testing.T) {
	_, err := api.NewServer(api.Config{BackendURL: "not a url"}, api.Deps{}, context.Background(), zerolog.Nop())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	e := setupEnv(t)
	resp, body := get(t, e.ui.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestProxy_ForwardsToBackend(t *testing.T) {
	e := setupEnv(t)
	e.backend.AddUser("ada@example.com", "hunter2")

	resp, err := http.Post(e.ui.URL+"/api/v1/login", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"hunter2"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, e.backend.Count(http.MethodPost, "/api/v1/login"))
}

func TestStatic(t *testing.T) {
	e := setupEnv(t)

	t.Run("asset", func(t *testing.T) {
		resp, body := get(t, e.ui.URL+"/assets/app.js")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "console.log(1)", body)
	})

	t.Run("client route falls back to index", func(t *testing.T) {
		resp, body := get(t, e.ui.URL+"/login")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "<html>app</html>", body)
	})
}

func TestProtectedViews(t *testing.T) {
	e := setupEnv(t)
	paths := []string{"/dashboard", "/private-notes", "/groups", "/groups/t1", "/note/n1"}

	for _, p := range paths {
		resp, _ := get(t, e.ui.URL+p)
		assert.Equal(t, http.StatusFound, resp.StatusCode, p)
		assert.Equal(t, "/login", resp.Header.Get("Location"), p)
	}

	login(t, e)
	for _, p := range paths {
		resp, body := get(t, e.ui.URL+p)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, "<html>app</html>", body, p)
	}
}

func dial(t *testing.T, e env) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ui.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == msgType {
			return f
		}
	}
}

func TestWebsocket_InitialSnapshot(t *testing.T) {
	e := setupEnv(t)
	conn := dial(t, e)

	var got []string
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		got = append(got, f.Type)
	}
	assert.Equal(t, []string{ws.TypeSessionState, ws.TypeNotesState, ws.TypeTeamsState}, got)
}

func TestWebsocket_BroadcastsSessionAndNotes(t *testing.T) {
	e := setupEnv(t)
	conn := dial(t, e)
	readUntil(t, conn, ws.TypeTeamsState)

	userId := login(t, e)

	f := readUntil(t, conn, ws.TypeSessionState)
	var sess struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			Id string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &sess))
	assert.True(t, sess.Authenticated)
	assert.Equal(t, userId, sess.User.Id)

	require.NoError(t, e.notes.Create(context.Background(), "from the feed"))
	for {
		f := readUntil(t, conn, ws.TypeNotesState)
		if strings.Contains(string(f.Data), "from the feed") {
			break
		}
	}
}

func TestWebsocket_Refresh(t *testing.T) {
	e := setupEnv(t)
	userId := login(t, e)
	conn := dial(t, e)
	readUntil(t, conn, ws.TypeTeamsState)

	e.backend.SeedNote(userId, "seeded elsewhere")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "refresh", "data": map[string]string{"target": "notes"}}))

	f := readUntil(t, conn, "refresh_response")
	var resp struct {
		Success bool   `json:"success"`
		Target  string `json:"target"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "notes", resp.Target)
	assert.Len(t, e.notes.State().Items, 1)
}

func TestWebsocket_RefreshRateLimited(t *testing.T) {
	e := setupEnv(t)
	login(t, e)
	conn := dial(t, e)
	readUntil(t, conn, ws.TypeTeamsState)

	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "refresh", "data": map[string]string{"target": "teams"}}))
	}

	limited := 0
	for i := 0; i < 5; i++ {
		f := readUntil(t, conn, "refresh_response")
		if strings.Contains(string(f.Data), "rate limited") {
			limited++
		}
	}
	assert.GreaterOrEqual(t, limited, 1)
}

func TestWebsocket_RejectsForeignOrigin(t *testing.T) {
	e := setupEnv(t)
	url := "ws" + strings.TrimPrefix(e.ui.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
