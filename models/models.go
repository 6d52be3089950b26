package models

import "time"

type User struct {
	Id         string    `json:"id" yaml:"id" dynamodbav:"Id"`
	Email      string    `json:"email" yaml:"email" dynamodbav:"Email"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at" dynamodbav:"UpdatedAt"`
	HasPremium bool      `json:"has_notes_premium" yaml:"has_notes_premium" dynamodbav:"HasPremium"`
}

// Session is the authenticated state of the client: one access/refresh token
// pair plus the cached profile of the user it belongs to.
type Session struct {
	AccessToken  string `json:"access_token" yaml:"access_token"`
	RefreshToken string `json:"refresh_token" yaml:"refresh_token"`
	User         User   `json:"user" yaml:"user"`
}

func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User.Id == ""
}

type Note struct {
	Id        string    `json:"id"`
	Body      string    `json:"body"`
	UserId    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamNote is a Note owned by a team. The server names its id field note_id.
type TeamNote struct {
	Id        string    `json:"note_id"`
	Body      string    `json:"body"`
	UserId    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Team struct {
	Id        string    `json:"team_id"`
	Name      string    `json:"team_name"`
	CreatedBy string    `json:"created_by"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleOwner is only special for display; roles are free-form strings.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type TeamMember struct {
	UserId string `json:"user_id"`
	TeamId string `json:"team_id"`
	Role   string `json:"role"`
}

// Request bodies sent to the notes API.

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	Id           string    `json:"id"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HasPremium   bool      `json:"has_notes_premium"`
}

func (r LoginResponse) Session() Session {
	return Session{
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
		User: User{
			Id:         r.Id,
			Email:      r.Email,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
			HasPremium: r.HasPremium,
		},
	}
}

type RefreshResponse struct {
	Token string `json:"token"`
}

type CreateNoteRequest struct {
	Body   string `json:"body" validate:"notblank"`
	UserId string `json:"user_id" validate:"required"`
}

type UpdateNoteRequest struct {
	NoteId string `json:"note_id" validate:"required"`
	Body   string `json:"body" validate:"notblank"`
	Title  string `json:"title,omitempty"`
}

type CreateTeamRequest struct {
	Name      string `json:"team_name" validate:"notblank"`
	UserId    string `json:"user_id" validate:"required"`
	IsPrivate bool   `json:"is_private"`
}

type AddTeamMemberRequest struct {
	UserId string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

type CreateTeamNoteRequest struct {
	Body   string `json:"body" validate:"notblank"`
	UserId string `json:"user_id" validate:"required"`
}

type UpdateTeamNoteRequest struct {
	Body string `json:"body" validate:"notblank"`
}

// Text, Created and Updated let list helpers treat personal and team notes
// alike.
func (n Note) Text() string       { return n.Body }
func (n Note) Created() time.Time { return n.CreatedAt }
func (n Note) Updated() time.Time { return n.UpdatedAt }

func (n TeamNote) Text() string       { return n.Body }
func (n TeamNote) Created() time.Time { return n.CreatedAt }
func (n TeamNote) Updated() time.Time { return n.UpdatedAt }
