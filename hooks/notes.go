package hooks

import (
	"context"

	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

// Notes is the signed-in user's personal notes. Its scope is the user id.
type Notes struct {
	*collection[models.Note]
	api client.NotesAPI
}

func NewNotes(api client.NotesAPI, opts Options) *Notes {
	n := &Notes{api: api}
	n.collection = newCollection("notes", func(ctx context.Context, authorId string) ([]models.Note, error) {
		return api.ListNotes(ctx, authorId)
	}, opts)
	return n
}

// BindSession scopes the notes to whoever is signed in, following logins and
// logouts.
func (n *Notes) BindSession(ctx context.Context, sessions *session.Store) {
	sessions.OnChange(func(user models.User, ok bool) {
		if !ok {
			n.SetScope(ctx, "")
			return
		}
		n.SetScope(ctx, user.Id)
	})
}

func (n *Notes) Create(ctx context.Context, body string) error {
	userId := n.Scope()
	if userId == "" {
		return errors.Auth("User not authenticated")
	}
	req := models.CreateNoteRequest{Body: body, UserId: userId}
	if err := models.Validate(req); err != nil {
		return err
	}
	return n.mutate(ctx, func(ctx context.Context) error {
		return n.api.CreateNote(ctx, req)
	})
}

// Update replaces a note body. The list title is derived from the body.
func (n *Notes) Update(ctx context.Context, noteId, body string) error {
	return n.UpdateTitled(ctx, noteId, body, models.ListTitle(body))
}

// UpdateTitled replaces a note body and sends an explicit title with it.
func (n *Notes) UpdateTitled(ctx context.Context, noteId, body, title string) error {
	if err := checkId("note", noteId); err != nil {
		return err
	}
	req := models.UpdateNoteRequest{NoteId: noteId, Body: body, Title: title}
	if err := models.Validate(req); err != nil {
		return err
	}
	return n.mutate(ctx, func(ctx context.Context) error {
		return n.api.UpdateNote(ctx, noteId, req)
	})
}

func (n *Notes) Delete(ctx context.Context, noteId string) error {
	if err := checkId("note", noteId); err != nil {
		return err
	}
	return n.mutate(ctx, func(ctx context.Context) error {
		return n.api.DeleteNote(ctx, noteId)
	})
}

// GetOne reads a single note straight from the server; the list is not
// consulted or changed.
func (n *Notes) GetOne(ctx context.Context, noteId string) (models.Note, error) {
	if err := checkId("note", noteId); err != nil {
		return models.Note{}, err
	}
	return n.api.GetNote(ctx, noteId)
}
