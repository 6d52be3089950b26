package client

import (
	"context"

	"github.com/zlnvch/notesync/models"
)

type NotesAPI interface {
	ListNotes(ctx context.Context, authorId string) ([]models.Note, error)
	GetNote(ctx context.Context, noteId string) (models.Note, error)
	CreateNote(ctx context.Context, req models.CreateNoteRequest) error
	UpdateNote(ctx context.Context, noteId string, req models.UpdateNoteRequest) error
	DeleteNote(ctx context.Context, noteId string) error
}

type TeamsAPI interface {
	ListTeams(ctx context.Context) ([]models.Team, error)
	GetTeam(ctx context.Context, teamId string) (models.Team, error)
	CreateTeam(ctx context.Context, req models.CreateTeamRequest) error
	DeleteTeam(ctx context.Context, teamId string) error
	ListTeamMembers(ctx context.Context, teamId string) ([]models.TeamMember, error)
	AddTeamMember(ctx context.Context, teamId string, req models.AddTeamMemberRequest) error
	RemoveTeamMember(ctx context.Context, teamId string, memberId string) error
}

type TeamNotesAPI interface {
	ListTeamNotes(ctx context.Context, teamId string) ([]models.TeamNote, error)
	GetTeamNote(ctx context.Context, teamId string, noteId string) (models.TeamNote, error)
	CreateTeamNote(ctx context.Context, teamId string, req models.CreateTeamNoteRequest) error
	UpdateTeamNote(ctx context.Context, teamId string, noteId string, req models.UpdateTeamNoteRequest) error
	DeleteTeamNote(ctx context.Context, teamId string, noteId string) error
}

var (
	_ NotesAPI     = (*Client)(nil)
	_ TeamsAPI     = (*Client)(nil)
	_ TeamNotesAPI = (*Client)(nil)
)
