package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
	"github.com/zlnvch/notesync/session/mocks"
)

func testSession() models.Session {
	return models.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         models.User{Id: "u1", Email: "a@b.co"},
	}
}

func TestStore_EstablishAndClear(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, zerolog.Nop())

	var events []bool
	store.OnChange(func(user models.User, ok bool) {
		events = append(events, ok)
	})

	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.Token())

	require.NoError(t, store.Establish(ctx, testSession()))
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "access-1", store.AccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
	user, ok := store.User()
	assert.True(t, ok)
	assert.Equal(t, "u1", user.Id)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.RefreshToken())
	_, ok = store.User()
	assert.False(t, ok)

	// Clearing twice only notifies once
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, []bool{false, true, false}, events)
}

func TestStore_UpdateAccessToken(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, zerolog.Nop())

	assert.Error(t, store.UpdateAccessToken(ctx, "nope"))

	require.NoError(t, store.Establish(ctx, testSession()))
	require.NoError(t, store.UpdateAccessToken(ctx, "access-2"))
	assert.Equal(t, "access-2", store.AccessToken())
	assert.Equal(t, "refresh-1", store.RefreshToken())
}

func TestStore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, zerolog.Nop())

	assert.Error(t, store.UpdateUser(ctx, models.User{Id: "u1"}))

	require.NoError(t, store.Establish(ctx, testSession()))
	require.NoError(t, store.UpdateUser(ctx, models.User{Id: "u1", Email: "new@b.co", HasPremium: true}))
	user, _ := store.User()
	assert.Equal(t, "new@b.co", user.Email)
	assert.True(t, user.HasPremium)
	assert.Equal(t, "access-1", store.AccessToken())
}

func TestStore_ClearDropsStateWhenPersisterFails(t *testing.T) {
	ctx := context.Background()
	persister := new(mocks.MockPersister)
	persister.On("Save", mock.Anything, mock.Anything).Return(nil)
	persister.On("Clear", mock.Anything).Return(errors.New("disk gone"))

	store := session.NewStore(persister, zerolog.Nop())
	require.NoError(t, store.Establish(ctx, testSession()))

	err := store.Clear(ctx)
	assert.Error(t, err)
	assert.False(t, store.IsAuthenticated())
	persister.AssertExpectations(t)
}

// gatedPersister blocks Save of the given access token until release is closed.
type gatedPersister struct {
	*session.MemoryPersister
	token   string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) Save(ctx context.Context, sess models.Session) error {
	if sess.AccessToken == g.token {
		close(g.entered)
		<-g.release
	}
	return g.MemoryPersister.Save(ctx, sess)
}

func TestStore_ClearWinsOverInFlightTokenUpdate(t *testing.T) {
	ctx := context.Background()
	persister := &gatedPersister{
		MemoryPersister: session.NewMemoryPersister(),
		token:           "renewed",
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	store := session.NewStore(persister, zerolog.Nop())
	require.NoError(t, store.Establish(ctx, testSession()))

	updated := make(chan error, 1)
	go func() { updated <- store.UpdateAccessToken(ctx, "renewed") }()
	<-persister.entered

	cleared := make(chan error, 1)
	go func() { cleared <- store.Clear(ctx) }()

	close(persister.release)
	require.NoError(t, <-updated)
	require.NoError(t, <-cleared)

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
	_, err := persister.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestStore_UpdateAccessTokenAfterClearFails(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, zerolog.Nop())
	require.NoError(t, store.Establish(ctx, testSession()))
	require.NoError(t, store.Clear(ctx))

	assert.Error(t, store.UpdateAccessToken(ctx, "renewed"))
	assert.False(t, store.IsAuthenticated())
}

func TestStore_EstablishFailsWhenSaveFails(t *testing.T) {
	persister := new(mocks.MockPersister)
	persister.On("Save", mock.Anything, mock.Anything).Return(errors.New("read-only"))

	store := session.NewStore(persister, zerolog.Nop())
	err := store.Establish(context.Background(), testSession())
	assert.Error(t, err)
	assert.False(t, store.IsAuthenticated())
}

func TestStore_InitRestores(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Session", func(t *testing.T) {
		persister := new(mocks.MockPersister)
		persister.On("Load", mock.Anything).Return(models.Session{}, session.ErrNoSession)
		store := session.NewStore(persister, zerolog.Nop())
		assert.NoError(t, store.Init(ctx))
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("Load Error", func(t *testing.T) {
		persister := new(mocks.MockPersister)
		persister.On("Load", mock.Anything).Return(models.Session{}, errors.New("boom"))
		store := session.NewStore(persister, zerolog.Nop())
		assert.Error(t, store.Init(ctx))
	})

	t.Run("Restored", func(t *testing.T) {
		persister := new(mocks.MockPersister)
		persister.On("Load", mock.Anything).Return(testSession(), nil)
		store := session.NewStore(persister, zerolog.Nop())
		require.NoError(t, store.Init(ctx))
		assert.Equal(t, "access-1", store.AccessToken())
	})
}

func TestStore_TokenExpiry(t *testing.T) {
	ctx := context.Background()
	expiry := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(expiry),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	store := session.NewStore(nil, zerolog.Nop())
	sess := testSession()
	sess.AccessToken = signed
	require.NoError(t, store.Establish(ctx, sess))

	tok := store.Token()
	require.NotNil(t, tok)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))

	// Opaque tokens have no known expiry
	require.NoError(t, store.UpdateAccessToken(ctx, "opaque"))
	assert.True(t, store.Token().Expiry.IsZero())
}

func TestFilePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	persister := session.NewFilePersister(path)

	_, err := persister.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	sess := testSession()
	sess.User.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, persister.Save(ctx, sess))

	loaded, err := persister.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, loaded.AccessToken)
	assert.Equal(t, sess.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, sess.User.Email, loaded.User.Email)
	assert.True(t, sess.User.CreatedAt.Equal(loaded.User.CreatedAt))

	require.NoError(t, persister.Clear(ctx))
	require.NoError(t, persister.Clear(ctx))
	_, err = persister.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestStore_SurvivesRestartWithFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.yaml")

	first := session.NewStore(session.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, first.Establish(ctx, testSession()))

	second := session.NewStore(session.NewFilePersister(path), zerolog.Nop())
	require.NoError(t, second.Init(ctx))
	assert.Equal(t, "access-1", second.AccessToken())
	user, ok := second.User()
	assert.True(t, ok)
	assert.Equal(t, "a@b.co", user.Email)
}
