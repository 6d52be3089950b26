package client

import (
	"context"
	"net/http"

	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
)

// Login exchanges credentials for a session and persists it. A rejected login
// is reported as INVALID_CREDENTIALS.
func (c *Client) Login(ctx context.Context, email, password string) (models.Session, error) {
	creds := models.Credentials{Email: email, Password: password}
	if err := models.Validate(creds); err != nil {
		return models.Session{}, err
	}

	var resp models.LoginResponse
	if err := c.Do(ctx, http.MethodPost, pathLogin, creds, &resp); err != nil {
		switch errors.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusBadRequest:
			var httpErr *errors.Error
			errors.As(err, &httpErr)
			return models.Session{}, errors.InvalidCredentials(httpErr.Message).WithCause(err)
		}
		return models.Session{}, err
	}

	sess := resp.Session()
	if err := c.sessions.Establish(ctx, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	creds := models.Credentials{Email: email, Password: password}
	if err := models.Validate(creds); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodPost, pathRegister, creds, nil)
}

// Logout tells the server the session is over, then clears it locally no
// matter how the server call went. The server call never triggers a refresh.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessions.AccessToken() != "" {
		if err := c.do(ctx, http.MethodPost, pathLogout, nil, nil, false); err != nil {
			c.logger.Warn().Err(err).Msg("Server logout failed, clearing local session anyway")
		}
	}
	return c.sessions.Clear(ctx)
}

// UpdateUser changes the signed-in user's email and password and refreshes
// the cached profile.
func (c *Client) UpdateUser(ctx context.Context, email, password string) (models.User, error) {
	creds := models.Credentials{Email: email, Password: password}
	if err := models.Validate(creds); err != nil {
		return models.User{}, err
	}
	if _, ok := c.sessions.User(); !ok {
		return models.User{}, errors.Auth("User not authenticated")
	}

	var user models.User
	if err := c.Do(ctx, http.MethodPut, pathUserMe, creds, &user); err != nil {
		return models.User{}, err
	}
	if user.Id != "" {
		if err := c.sessions.UpdateUser(ctx, user); err != nil {
			return models.User{}, err
		}
	}
	return user, nil
}
