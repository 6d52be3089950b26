package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/zlnvch/notesync/models"
)

// teamPath builds a team-scoped endpoint. The server also expects the team id
// repeated as the team_id query parameter on these routes.
func teamPath(teamId string, suffix string) string {
	return "/api/v1/teams/" + url.PathEscape(teamId) + suffix + "?team_id=" + url.QueryEscape(teamId)
}

func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams := []models.Team{}
	err := c.Do(ctx, http.MethodGet, "/api/v1/teams", nil, &teams)
	return teams, err
}

func (c *Client) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	var team models.Team
	err := c.Do(ctx, http.MethodGet, teamPath(teamId, ""), nil, &team)
	return team, err
}

func (c *Client) CreateTeam(ctx context.Context, req models.CreateTeamRequest) error {
	return c.Do(ctx, http.MethodPost, "/api/v1/teams", req, nil)
}

func (c *Client) DeleteTeam(ctx context.Context, teamId string) error {
	return c.Do(ctx, http.MethodDelete, teamPath(teamId, ""), nil, nil)
}

func (c *Client) ListTeamMembers(ctx context.Context, teamId string) ([]models.TeamMember, error) {
	members := []models.TeamMember{}
	err := c.Do(ctx, http.MethodGet, teamPath(teamId, "/members"), nil, &members)
	return members, err
}

func (c *Client) AddTeamMember(ctx context.Context, teamId string, req models.AddTeamMemberRequest) error {
	return c.Do(ctx, http.MethodPost, teamPath(teamId, "/members"), req, nil)
}

func (c *Client) RemoveTeamMember(ctx context.Context, teamId string, memberId string) error {
	return c.Do(ctx, http.MethodDelete, teamPath(teamId, "/members/"+url.PathEscape(memberId)), nil, nil)
}

func (c *Client) ListTeamNotes(ctx context.Context, teamId string) ([]models.TeamNote, error) {
	notes := []models.TeamNote{}
	err := c.Do(ctx, http.MethodGet, "/api/v1/teams/"+url.PathEscape(teamId)+"/notes", nil, &notes)
	return notes, err
}

func (c *Client) GetTeamNote(ctx context.Context, teamId string, noteId string) (models.TeamNote, error) {
	var note models.TeamNote
	err := c.Do(ctx, http.MethodGet, teamNotePath(teamId, noteId), nil, &note)
	return note, err
}

func (c *Client) CreateTeamNote(ctx context.Context, teamId string, req models.CreateTeamNoteRequest) error {
	return c.Do(ctx, http.MethodPost, "/api/v1/teams/"+url.PathEscape(teamId)+"/notes", req, nil)
}

func (c *Client) UpdateTeamNote(ctx context.Context, teamId string, noteId string, req models.UpdateTeamNoteRequest) error {
	return c.Do(ctx, http.MethodPut, teamNotePath(teamId, noteId), req, nil)
}

func (c *Client) DeleteTeamNote(ctx context.Context, teamId string, noteId string) error {
	return c.Do(ctx, http.MethodDelete, teamNotePath(teamId, noteId), nil, nil)
}

func teamNotePath(teamId, noteId string) string {
	return "/api/v1/teams/" + url.PathEscape(teamId) + "/notes/" + url.PathEscape(noteId)
}
