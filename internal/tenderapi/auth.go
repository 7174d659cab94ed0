package tenderapi

import (
	"context"
	"errors"
	"strings"
)

// ErrNoToken is returned when login succeeds without an access token.
var ErrNoToken = errors.New("tender api: login returned no access token")

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResponse
	if err := c.postJSON(ctx, "/login", body, &out); err != nil {
		return LoginResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return LoginResponse{}, ErrNoToken
	}
	return out, nil
}

// Verify checks that the client's bearer token is still accepted.
func (c *Client) Verify(ctx context.Context) error {
	return c.getJSON(ctx, "/verify", nil)
}
