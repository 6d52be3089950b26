package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zlnvch/notesync/models"
)

type MockNotesAPI struct {
	mock.Mock
}

func (m *MockNotesAPI) ListNotes(ctx context.Context, authorId string) ([]models.Note, error) {
	args := m.Called(ctx, authorId)
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockNotesAPI) GetNote(ctx context.Context, noteId string) (models.Note, error) {
	args := m.Called(ctx, noteId)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockNotesAPI) CreateNote(ctx context.Context, req models.CreateNoteRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockNotesAPI) UpdateNote(ctx context.Context, noteId string, req models.UpdateNoteRequest) error {
	args := m.Called(ctx, noteId, req)
	return args.Error(0)
}

func (m *MockNotesAPI) DeleteNote(ctx context.Context, noteId string) error {
	args := m.Called(ctx, noteId)
	return args.Error(0)
}

type MockTeamsAPI struct {
	mock.Mock
}

func (m *MockTeamsAPI) ListTeams(ctx context.Context) ([]models.Team, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Team), args.Error(1)
}

func (m *MockTeamsAPI) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).(models.Team), args.Error(1)
}

func (m *MockTeamsAPI) CreateTeam(ctx context.Context, req models.CreateTeamRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockTeamsAPI) DeleteTeam(ctx context.Context, teamId string) error {
	args := m.Called(ctx, teamId)
	return args.Error(0)
}

func (m *MockTeamsAPI) ListTeamMembers(ctx context.Context, teamId string) ([]models.TeamMember, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).([]models.TeamMember), args.Error(1)
}

func (m *MockTeamsAPI) AddTeamMember(ctx context.Context, teamId string, req models.AddTeamMemberRequest) error {
	args := m.Called(ctx, teamId, req)
	return args.Error(0)
}

func (m *MockTeamsAPI) RemoveTeamMember(ctx context.Context, teamId string, memberId string) error {
	args := m.Called(ctx, teamId, memberId)
	return args.Error(0)
}

type MockTeamNotesAPI struct {
	mock.Mock
}

func (m *MockTeamNotesAPI) ListTeamNotes(ctx context.Context, teamId string) ([]models.TeamNote, error) {
	args := m.Called(ctx, teamId)
	return args.Get(0).([]models.TeamNote), args.Error(1)
}

func (m *MockTeamNotesAPI) GetTeamNote(ctx context.Context, teamId string, noteId string) (models.TeamNote, error) {
	args := m.Called(ctx, teamId, noteId)
	return args.Get(0).(models.TeamNote), args.Error(1)
}

func (m *MockTeamNotesAPI) CreateTeamNote(ctx context.Context, teamId string, req models.CreateTeamNoteRequest) error {
	args := m.Called(ctx, teamId, req)
	return args.Error(0)
}

func (m *MockTeamNotesAPI) UpdateTeamNote(ctx context.Context, teamId string, noteId string, req models.UpdateTeamNoteRequest) error {
	args := m.Called(ctx, teamId, noteId, req)
	return args.Error(0)
}

func (m *MockTeamNotesAPI) DeleteTeamNote(ctx context.Context, teamId string, noteId string) error {
	args := m.Called(ctx, teamId, noteId)
	return args.Error(0)
}
