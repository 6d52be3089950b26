package editor

import (
	"context"
	"time"

	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/models"
)

// Document is the editable part of a note, whichever collection owns it.
type Document struct {
	ID        string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteSource loads and persists the note being edited.
type NoteSource interface {
	GetOne(ctx context.Context, id string) (Document, error)
	Update(ctx context.Context, id, body, title string) error
	Delete(ctx context.Context, id string) error
	// CollectionPath is the view to return to after the note is deleted.
	CollectionPath() string
	// Kind names the note in confirmation prompts ("note" or "team note").
	Kind() string
}

type personalSource struct {
	notes *hooks.Notes
}

// PersonalNotes edits notes from the user's personal collection.
func PersonalNotes(notes *hooks.Notes) NoteSource {
	return personalSource{notes: notes}
}

func (p personalSource) GetOne(ctx context.Context, id string) (Document, error) {
	n, err := p.notes.GetOne(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: n.Id, Body: n.Body, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt}, nil
}

func (p personalSource) Update(ctx context.Context, id, body, title string) error {
	return p.notes.UpdateTitled(ctx, id, body, title)
}

func (p personalSource) Delete(ctx context.Context, id string) error {
	return p.notes.Delete(ctx, id)
}

func (p personalSource) CollectionPath() string { return "/private-notes" }
func (p personalSource) Kind() string           { return "note" }

type teamSource struct {
	teamNotes *hooks.TeamNotes
}

// TeamNotes edits notes of the team teamNotes is scoped to. Team notes have
// no stored title, so the title is only used locally.
func TeamNotes(teamNotes *hooks.TeamNotes) NoteSource {
	return teamSource{teamNotes: teamNotes}
}

func (t teamSource) GetOne(ctx context.Context, id string) (Document, error) {
	n, err := t.teamNotes.GetOne(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return teamDocument(n), nil
}

func teamDocument(n models.TeamNote) Document {
	return Document{ID: n.Id, Body: n.Body, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt}
}

func (t teamSource) Update(ctx context.Context, id, body, _ string) error {
	return t.teamNotes.Update(ctx, id, body)
}

func (t teamSource) Delete(ctx context.Context, id string) error {
	return t.teamNotes.Delete(ctx, id)
}

func (t teamSource) CollectionPath() string { return "/groups/" + t.teamNotes.TeamId() }
func (t teamSource) Kind() string           { return "team note" }
