// Package lookup fetches the current user and room metadata from the REST
// API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"musicroom-sync-client/internal/protocol"
)

var (
	ErrUnauthorized = errors.New("lookup: unauthorized")
	ErrNotFound     = errors.New("lookup: not found")
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// CurrentUser returns the user the access token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (protocol.User, error) {
	var u protocol.User
	if err := c.get(ctx, "/users", &u); err != nil {
		return protocol.User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

func (c *Client) Room(ctx context.Context, roomID string) (protocol.Room, error) {
	if roomID == "" {
		return protocol.Room{}, fmt.Errorf("room: %w", ErrNotFound)
	}
	var r protocol.Room
	if err := c.get(ctx, "/rooms/"+url.PathEscape(roomID), &r); err != nil {
		return protocol.Room{}, fmt.Errorf("room %s: %w", roomID, err)
	}
	return r, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
