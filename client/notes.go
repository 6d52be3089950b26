package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/zlnvch/notesync/models"
)

func (c *Client) ListNotes(ctx context.Context, authorId string) ([]models.Note, error) {
	notes := []models.Note{}
	err := c.Do(ctx, http.MethodGet, "/api/v1/notes?authorId="+url.QueryEscape(authorId), nil, &notes)
	return notes, err
}

func (c *Client) GetNote(ctx context.Context, noteId string) (models.Note, error) {
	var note models.Note
	err := c.Do(ctx, http.MethodGet, "/api/v1/notes/"+url.PathEscape(noteId), nil, &note)
	return note, err
}

func (c *Client) CreateNote(ctx context.Context, req models.CreateNoteRequest) error {
	return c.Do(ctx, http.MethodPost, "/api/v1/notes", req, nil)
}

func (c *Client) UpdateNote(ctx context.Context, noteId string, req models.UpdateNoteRequest) error {
	return c.Do(ctx, http.MethodPut, "/api/v1/notes/"+url.PathEscape(noteId), req, nil)
}

func (c *Client) DeleteNote(ctx context.Context, noteId string) error {
	return c.Do(ctx, http.MethodDelete, "/api/v1/notes/"+url.PathEscape(noteId), nil, nil)
}
