package hooks

import (
	"context"

	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

// TeamNotes is the note list of one team. Its scope is the team id.
type TeamNotes struct {
	*collection[models.TeamNote]
	api      client.TeamNotesAPI
	sessions *session.Store
}

func NewTeamNotes(api client.TeamNotesAPI, sessions *session.Store, opts Options) *TeamNotes {
	tn := &TeamNotes{api: api, sessions: sessions}
	tn.collection = newCollection("team_notes", func(ctx context.Context, teamId string) ([]models.TeamNote, error) {
		return api.ListTeamNotes(ctx, teamId)
	}, opts)
	return tn
}

func (tn *TeamNotes) TeamId() string {
	return tn.Scope()
}

func (tn *TeamNotes) Create(ctx context.Context, body string) error {
	teamId := tn.Scope()
	if err := checkId("team", teamId); err != nil {
		return err
	}
	user, ok := tn.sessions.User()
	if !ok {
		return errors.Auth("User not authenticated")
	}
	req := models.CreateTeamNoteRequest{Body: body, UserId: user.Id}
	if err := models.Validate(req); err != nil {
		return err
	}
	return tn.mutate(ctx, func(ctx context.Context) error {
		return tn.api.CreateTeamNote(ctx, teamId, req)
	})
}

func (tn *TeamNotes) Update(ctx context.Context, noteId, body string) error {
	teamId := tn.Scope()
	if err := checkId("team", teamId); err != nil {
		return err
	}
	if err := checkId("note", noteId); err != nil {
		return err
	}
	req := models.UpdateTeamNoteRequest{Body: body}
	if err := models.Validate(req); err != nil {
		return err
	}
	return tn.mutate(ctx, func(ctx context.Context) error {
		return tn.api.UpdateTeamNote(ctx, teamId, noteId, req)
	})
}

func (tn *TeamNotes) Delete(ctx context.Context, noteId string) error {
	teamId := tn.Scope()
	if err := checkId("team", teamId); err != nil {
		return err
	}
	if err := checkId("note", noteId); err != nil {
		return err
	}
	return tn.mutate(ctx, func(ctx context.Context) error {
		return tn.api.DeleteTeamNote(ctx, teamId, noteId)
	})
}

func (tn *TeamNotes) GetOne(ctx context.Context, noteId string) (models.TeamNote, error) {
	teamId := tn.Scope()
	if err := checkId("team", teamId); err != nil {
		return models.TeamNote{}, err
	}
	if err := checkId("note", noteId); err != nil {
		return models.TeamNote{}, err
	}
	return tn.api.GetTeamNote(ctx, teamId, noteId)
}
