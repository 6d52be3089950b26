// Package client is the HTTP client for the notes API. It injects the bearer
// token from the session store, renews an expired access token once per
// failed request and tears the session down when renewal is impossible.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

const (
	pathRegister = "/api/v1/register"
	pathLogin    = "/api/v1/login"
	pathLogout   = "/api/v1/logout"
	pathRefresh  = "/api/v1/token/refresh"
	pathUserMe   = "/api/v1/user/me"

	LoginRoute = "/login"

	HeaderRequestId = "X-Request-Id"

	refreshTimeout = 15 * time.Second
)

// Navigator moves the UI to another route.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Options struct {
	HTTPClient *http.Client
	Navigator  Navigator
	Logger     zerolog.Logger
	// RateLimit and Burst shape outbound traffic. Zero values use 20 rps and a
	// burst of 40.
	RateLimit rate.Limit
	Burst     int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Store
	navigator  Navigator
	limiter    *rate.Limiter
	refreshes  singleflight.Group
	logger     zerolog.Logger
}

func New(baseURL string, sessions *session.Store, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 20
	}
	if opts.Burst == 0 {
		opts.Burst = 40
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		sessions:   sessions,
		navigator:  opts.Navigator,
		limiter:    rate.NewLimiter(opts.RateLimit, opts.Burst),
		logger:     opts.Logger.With().Str("component", "client").Logger(),
	}
}

func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// skipsAuth reports whether endpoint is one of the unauthenticated auth
// endpoints. They never carry the access token and never trigger a refresh.
func skipsAuth(endpoint string) bool {
	path, _, _ := strings.Cut(endpoint, "?")
	switch path {
	case pathRegister, pathLogin, pathRefresh:
		return true
	}
	return false
}

// Do sends one API request and decodes a JSON response into out (which may be
// nil). A 401 is answered by at most one token refresh and one retry.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, out any) error {
	return c.do(ctx, method, endpoint, body, out, true)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any, allowRefresh bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	public := skipsAuth(endpoint)
	token := ""
	if !public {
		token = c.sessions.AccessToken()
	}

	status, data, err := c.send(ctx, method, endpoint, payload, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !public && allowRefresh && c.sessions.RefreshToken() != "" {
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			if ctx.Err() != nil || errors.CodeOf(err) == errors.CodeNetwork {
				c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Token refresh did not complete")
				return errors.Network(err)
			}
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Token refresh failed, ending session")
			c.teardown(ctx)
			return errors.Auth("session expired").WithCause(err)
		}

		status, data, err = c.send(ctx, method, endpoint, payload, fresh)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request rejected after token refresh, ending session")
			c.teardown(ctx)
			return errors.Auth(errorMessage(status, data))
		}
	}

	return decodeResponse(status, data, out)
}

// send performs a single round trip and returns the status and raw body.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, token string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, errors.Network(err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	requestId, err := uuid.NewV4()
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestId, requestId.String())
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("Request failed")
		return 0, nil, errors.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Network(err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Str("requestId", requestId.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	return resp.StatusCode, data, nil
}

// refresh renews the access token that failed. Concurrent callers share one
// refresh call, and a caller whose token was already replaced just gets the
// current one back. The shared call is detached from any single caller's
// context; a caller that gives up stops waiting without cancelling it.
func (c *Client) refresh(ctx context.Context, failed string) (string, error) {
	if current := c.sessions.AccessToken(); current != "" && current != failed {
		return current, nil
	}

	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if current := c.sessions.AccessToken(); current != "" && current != failed {
			return current, nil
		}

		refreshToken := c.sessions.RefreshToken()
		if refreshToken == "" {
			return "", errors.New("no refresh token available")
		}

		status, data, err := c.send(ctx, http.MethodPost, pathRefresh, nil, refreshToken)
		if err != nil {
			return "", err
		}
		if status < 200 || status >= 300 {
			return "", errors.HTTP(status, "Failed to refresh token")
		}

		var resp models.RefreshResponse
		if err := json.Unmarshal(data, &resp); err != nil || resp.Token == "" {
			return "", errors.New("refresh response carried no token")
		}
		if err := c.sessions.UpdateAccessToken(ctx, resp.Token); err != nil {
			return "", err
		}
		return resp.Token, nil
	})

	select {
	case <-ctx.Done():
		return "", errors.Network(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.logger.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// teardown ends the session locally and sends the UI to the login page.
func (c *Client) teardown(ctx context.Context) {
	if err := c.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear session")
	}
	c.navigator.Navigate(LoginRoute)
}

func decodeResponse(status int, data []byte, out any) error {
	if status < 200 || status >= 300 {
		return errors.HTTP(status, errorMessage(status, data))
	}
	if status == http.StatusNoContent || out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(status int, data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}
