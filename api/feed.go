package api

import (
	"context"

	"github.com/zlnvch/notesync/api/ws"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

type sessionState struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

// stateFeed mirrors the session and the collection hooks onto the websocket
// hub.
type stateFeed struct {
	sessions *session.Store
	notes    *hooks.Notes
	teams    *hooks.Teams
	hub      *ws.Hub
}

func newStateFeed(sessions *session.Store, notes *hooks.Notes, teams *hooks.Teams, hub *ws.Hub) *stateFeed {
	return &stateFeed{sessions: sessions, notes: notes, teams: teams, hub: hub}
}

func (f *stateFeed) bind() {
	f.sessions.OnChange(func(user models.User, ok bool) {
		f.hub.Broadcast(ws.TypeSessionState, toSessionState(user, ok))
	})
	f.notes.Subscribe(func(state hooks.State[models.Note]) {
		f.hub.Broadcast(ws.TypeNotesState, state)
	})
	f.teams.Subscribe(func(state hooks.State[models.Team]) {
		f.hub.Broadcast(ws.TypeTeamsState, state)
	})
}

func toSessionState(user models.User, ok bool) sessionState {
	if !ok {
		return sessionState{}
	}
	return sessionState{Authenticated: true, User: &user}
}

func (f *stateFeed) Snapshot() []ws.Message {
	user, ok := f.sessions.User()
	return []ws.Message{
		{Type: ws.TypeSessionState, Data: toSessionState(user, ok)},
		{Type: ws.TypeNotesState, Data: f.notes.State()},
		{Type: ws.TypeTeamsState, Data: f.teams.State()},
	}
}

func (f *stateFeed) Refresh(ctx context.Context, target string) error {
	switch target {
	case "notes", "teams", "all":
	default:
		return errors.InvalidArgumentf("Unknown refresh target %q", target)
	}
	if !f.sessions.IsAuthenticated() {
		return errors.Auth("User not authenticated")
	}

	var errs []error
	if target == "notes" || target == "all" {
		f.notes.FetchAll(ctx)
		if msg := f.notes.State().Error; msg != "" {
			errs = append(errs, errors.New(msg))
		}
	}
	if target == "teams" || target == "all" {
		f.teams.FetchAll(ctx)
		if msg := f.teams.State().Error; msg != "" {
			errs = append(errs, errors.New(msg))
		}
	}
	return errors.Join(errs...)
}
