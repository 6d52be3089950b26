package hooks

import (
	"context"

	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

// Teams is the list of teams the signed-in user belongs to. It is scoped by
// user id even though the server infers the user from the token.
type Teams struct {
	*collection[models.Team]
	api client.TeamsAPI
}

func NewTeams(api client.TeamsAPI, opts Options) *Teams {
	t := &Teams{api: api}
	t.collection = newCollection("teams", func(ctx context.Context, _ string) ([]models.Team, error) {
		return api.ListTeams(ctx)
	}, opts)
	return t
}

func (t *Teams) BindSession(ctx context.Context, sessions *session.Store) {
	sessions.OnChange(func(user models.User, ok bool) {
		if !ok {
			t.SetScope(ctx, "")
			return
		}
		t.SetScope(ctx, user.Id)
	})
}

func (t *Teams) Create(ctx context.Context, name string, isPrivate bool) error {
	userId := t.Scope()
	if userId == "" {
		return errors.Auth("User not authenticated")
	}
	req := models.CreateTeamRequest{Name: name, UserId: userId, IsPrivate: isPrivate}
	if err := models.Validate(req); err != nil {
		return err
	}
	return t.mutate(ctx, func(ctx context.Context) error {
		return t.api.CreateTeam(ctx, req)
	})
}

func (t *Teams) Delete(ctx context.Context, teamId string) error {
	if err := checkId("team", teamId); err != nil {
		return err
	}
	return t.mutate(ctx, func(ctx context.Context) error {
		return t.api.DeleteTeam(ctx, teamId)
	})
}

func (t *Teams) GetOne(ctx context.Context, teamId string) (models.Team, error) {
	if err := checkId("team", teamId); err != nil {
		return models.Team{}, err
	}
	return t.api.GetTeam(ctx, teamId)
}

// GetTeam is GetOne under the name the group pages use.
func (t *Teams) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	return t.GetOne(ctx, teamId)
}

func (t *Teams) Members(ctx context.Context, teamId string) ([]models.TeamMember, error) {
	if err := checkId("team", teamId); err != nil {
		return nil, err
	}
	return t.api.ListTeamMembers(ctx, teamId)
}

// AddMember adds userId to the team; an empty role means "member". Member
// changes do not re-fetch the teams list.
func (t *Teams) AddMember(ctx context.Context, teamId, userId, role string) error {
	if err := checkId("team", teamId); err != nil {
		return err
	}
	if role == "" {
		role = models.RoleMember
	}
	req := models.AddTeamMemberRequest{UserId: userId, Role: role}
	if err := models.Validate(req); err != nil {
		return err
	}
	return t.api.AddTeamMember(ctx, teamId, req)
}

func (t *Teams) RemoveMember(ctx context.Context, teamId, memberId string) error {
	if err := checkId("team", teamId); err != nil {
		return err
	}
	if err := checkId("member", memberId); err != nil {
		return err
	}
	return t.api.RemoveTeamMember(ctx, teamId, memberId)
}
